package main

import (
	"fmt"
	"log"

	"paperchat/internal/chunker"
	"paperchat/internal/config"
	"paperchat/internal/embedding"
	"paperchat/internal/ledger"
	"paperchat/internal/llm"
	"paperchat/internal/pdfload"
	"paperchat/internal/processor"
	"paperchat/internal/vecindex"
)

// buildPipeline wires the full pipeline from configuration. A vector
// index that cannot be opened is logged and left nil; the query engine
// then runs on its keyword fallback.
func buildPipeline(cfg *config.Config) (*processor.Processor, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing directories: %w", err)
	}

	var embedOpts []embedding.OpenAIOption
	if cfg.OpenAIAPIKey != "" {
		embedOpts = append(embedOpts, embedding.WithAPIKey(cfg.OpenAIAPIKey))
	}
	if cfg.Embedding.BaseURL != "" {
		embedOpts = append(embedOpts, embedding.WithBaseURL(cfg.Embedding.BaseURL))
	}
	if cfg.Embedding.Model != "" {
		embedOpts = append(embedOpts, embedding.WithModel(cfg.Embedding.Model))
	}
	provider := embedding.NewOpenAIProvider(embedOpts...)

	var llmOpts []llm.OpenAIOption
	if cfg.OpenAIAPIKey != "" {
		llmOpts = append(llmOpts, llm.WithAPIKey(cfg.OpenAIAPIKey))
	}
	if cfg.Completion.BaseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(cfg.Completion.BaseURL))
	}
	if cfg.Completion.Model != "" {
		llmOpts = append(llmOpts, llm.WithModel(cfg.Completion.Model))
	}
	client := llm.NewOpenAIClient(llmOpts...)

	var index processor.Index
	if idx, err := vecindex.Open(cfg.IndexPath(), provider); err != nil {
		log.Printf("[paperchat] vector index unavailable, falling back to keyword search: %v", err)
	} else {
		index = idx
	}

	led := ledger.Open(cfg.LedgerPath())
	splitter := chunker.NewSplitter(cfg.Chunk.Size, cfg.Chunk.Overlap)
	loader := pdfload.NewLoader()

	return processor.New(loader, splitter, index, led, client, cfg.UploadDir, cfg.BonusTerms), nil
}

// loadConfig reads the config file named by the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.OpenAIAPIKey == "" {
		log.Printf("[paperchat] OPENAI_API_KEY not set; answers will degrade")
	}
	return cfg, nil
}
