// Package config handles service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file or individual fields are absent.
const (
	DefaultListenAddr = ":8000"
	DefaultUploadDir  = "uploads"
	DefaultDataDir    = "data"

	// DefaultAdminToken and DefaultPublicToken are development-only
	// credentials. Serving with them warrants a loud warning.
	DefaultAdminToken  = "admin123"
	DefaultPublicToken = "public123"

	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultCompletionModel = "gpt-3.5-turbo"

	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// LedgerFile and IndexFile live under DataDir.
	LedgerFile = "processed_papers.json"
	IndexFile  = "chunks.db"
)

// EmbeddingConfig tunes the embedding provider.
type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// CompletionConfig tunes the completion provider.
type CompletionConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// ChunkConfig tunes text splitting.
type ChunkConfig struct {
	Size    int `yaml:"size,omitempty"`
	Overlap int `yaml:"overlap,omitempty"`
}

// Config is the full service configuration, stored as YAML.
type Config struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	UploadDir  string `yaml:"upload_dir,omitempty"`
	DataDir    string `yaml:"data_dir,omitempty"`

	AdminToken  string `yaml:"admin_token,omitempty"`
	PublicToken string `yaml:"public_token,omitempty"`

	// OpenAIAPIKey is read from the OPENAI_API_KEY environment variable
	// only; it is never written to the config file.
	OpenAIAPIKey string `yaml:"-"`

	Embedding  EmbeddingConfig  `yaml:"embedding,omitempty"`
	Completion CompletionConfig `yaml:"completion,omitempty"`
	Chunk      ChunkConfig      `yaml:"chunk,omitempty"`

	// BonusTerms is the topic vocabulary whose occurrences count double
	// in fallback relevance scoring. Empty is fine.
	BonusTerms []string `yaml:"bonus_terms,omitempty"`
}

// Default returns a config with every field at its default.
func Default() *Config {
	return &Config{
		ListenAddr:  DefaultListenAddr,
		UploadDir:   DefaultUploadDir,
		DataDir:     DefaultDataDir,
		AdminToken:  DefaultAdminToken,
		PublicToken: DefaultPublicToken,
		Embedding:   EmbeddingConfig{Model: DefaultEmbeddingModel},
		Completion:  CompletionConfig{Model: DefaultCompletionModel},
		Chunk:       ChunkConfig{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap},
	}
}

// Load reads configuration from path, fills unset fields with defaults,
// and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in any field the file left empty.
func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.UploadDir == "" {
		c.UploadDir = DefaultUploadDir
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	if c.AdminToken == "" {
		c.AdminToken = DefaultAdminToken
	}
	if c.PublicToken == "" {
		c.PublicToken = DefaultPublicToken
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = DefaultEmbeddingModel
	}
	if c.Completion.Model == "" {
		c.Completion.Model = DefaultCompletionModel
	}
	if c.Chunk.Size == 0 {
		c.Chunk.Size = DefaultChunkSize
	}
	if c.Chunk.Overlap == 0 {
		c.Chunk.Overlap = DefaultChunkOverlap
	}
}

// applyEnv overrides fields from the environment. Environment always
// wins over the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIAPIKey = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.AdminToken = v
	}
	if v := os.Getenv("PUBLIC_TOKEN"); v != "" {
		c.PublicToken = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv("CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunk.Size = n
		}
	}
}

// validate rejects configurations that cannot work at all.
func (c *Config) validate() error {
	if c.Chunk.Overlap >= c.Chunk.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Chunk.Overlap, c.Chunk.Size)
	}
	return nil
}

// UsingDefaultTokens reports whether either access token is still a
// development default.
func (c *Config) UsingDefaultTokens() bool {
	return c.AdminToken == DefaultAdminToken || c.PublicToken == DefaultPublicToken
}

// LedgerPath returns the processing ledger location under DataDir.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, LedgerFile)
}

// IndexPath returns the vector index database location under DataDir.
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, IndexFile)
}

// EnsureDirs creates the upload and data directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.UploadDir, c.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
