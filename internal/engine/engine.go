// Package engine answers natural-language questions about the paper
// corpus. The primary path retrieves similar chunks from the vector index
// and grounds one completion call on them; when the index is unavailable
// or empty it falls back to keyword scoring over the full text of every
// processed paper. A completion failure always degrades to an apologetic
// answer rather than an error.
package engine

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"paperchat/internal/ledger"
	"paperchat/internal/llm"
	"paperchat/internal/vecindex"
)

const (
	// DefaultTopK is the number of chunks retrieved on the vector path.
	DefaultTopK = 4

	// DefaultMaxPapers caps the candidate papers used by the fallback.
	DefaultMaxPapers = 3

	// snippetLength bounds citation content for display.
	snippetLength = 200

	// excerptLength bounds the per-paper excerpt fed to the completion
	// provider on the fallback path.
	excerptLength = 2000

	// GeneralKnowledgeSource marks an answer grounded in no paper.
	GeneralKnowledgeSource = "general-knowledge"
)

// SourceCitation points an answer back at a source document.
type SourceCitation struct {
	Content     string `json:"content"`
	Source      string `json:"source"`
	ChunkID     int    `json:"chunk_id"`
	PDFLink     string `json:"pdf_link,omitempty"`
	SummaryLink string `json:"summary_link,omitempty"`
}

// QueryResult is a grounded answer with its citations. It is transient,
// never persisted.
type QueryResult struct {
	Answer   string           `json:"answer"`
	Sources  []SourceCitation `json:"sources"`
	Question string           `json:"question"`
}

// SearchIndex is the vector index surface the engine depends on.
type SearchIndex interface {
	Search(ctx context.Context, query string, k int) ([]vecindex.Entry, error)
}

// TextLoader re-loads a paper's full text for the fallback path.
type TextLoader interface {
	FullText(path string) (string, error)
}

// Config tunes the engine.
type Config struct {
	// UploadDir is where raw PDFs live, keyed by filename.
	UploadDir string

	// BonusTerms is a secondary vocabulary of topic-specific terms whose
	// occurrences count double in fallback relevance scoring. May be
	// empty, reducing the fallback to pure keyword frequency.
	BonusTerms []string

	// TopK is the vector search depth. Defaults to DefaultTopK.
	TopK int

	// MaxPapers caps fallback candidates. Defaults to DefaultMaxPapers.
	MaxPapers int
}

// Engine orchestrates retrieval and completion.
type Engine struct {
	index  SearchIndex // nil when the vector path is unavailable
	ledger *ledger.Ledger
	loader TextLoader
	llm    llm.Client
	cfg    Config
}

// New creates a query engine. index may be nil, in which case every
// question takes the fallback path.
func New(index SearchIndex, led *ledger.Ledger, loader TextLoader, client llm.Client, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = DefaultMaxPapers
	}
	return &Engine{
		index:  index,
		ledger: led,
		loader: loader,
		llm:    client,
		cfg:    cfg,
	}
}

// Answer resolves a question against the corpus. It never returns an
// error: provider failures yield a degraded answer with no citations.
func (e *Engine) Answer(ctx context.Context, question string) QueryResult {
	if e.index != nil {
		entries, err := e.index.Search(ctx, question, e.cfg.TopK)
		if err != nil {
			log.Printf("[engine] vector search failed, using fallback: %v", err)
		} else if len(entries) > 0 {
			return e.answerFromChunks(ctx, question, entries)
		}
	}

	papers := e.rankPapers(question)
	if len(papers) == 0 {
		return e.answerGeneral(ctx, question)
	}
	return e.answerFromPapers(ctx, question, papers)
}

// answerFromChunks grounds one completion call on retrieved chunks.
func (e *Engine) answerFromChunks(ctx context.Context, question string, entries []vecindex.Entry) QueryResult {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: chunkContextPrompt(entries)},
		{Role: llm.RoleUser, Content: question},
	}

	answer, err := e.llm.Complete(ctx, messages, llm.Options{MaxTokens: 600, Temperature: 0.3})
	if err != nil {
		return e.degraded(question, err)
	}

	sources := make([]SourceCitation, 0, len(entries))
	for _, entry := range entries {
		sources = append(sources, SourceCitation{
			Content: truncateUTF8(entry.Content, snippetLength),
			Source:  entry.Source,
			ChunkID: entry.ChunkID,
		})
	}

	return QueryResult{Answer: answer, Sources: sources, Question: question}
}

// candidate is a fallback-scored paper.
type candidate struct {
	filename string
	score    int
	content  string
}

// rankPapers scores every processed paper's full text against the
// question terms. Occurrences of bonus vocabulary terms count double.
// Papers with zero score are dropped; ties keep ledger insertion order.
func (e *Engine) rankPapers(question string) []candidate {
	terms := strings.Fields(strings.ToLower(question))

	var candidates []candidate
	for _, entry := range e.ledger.All() {
		if entry.Record.Status != ledger.StatusProcessed {
			continue
		}

		content, err := e.loader.FullText(filepath.Join(e.cfg.UploadDir, entry.Filename))
		if err != nil {
			log.Printf("[engine] loading %s for fallback search: %v", entry.Filename, err)
			continue
		}

		lower := strings.ToLower(content)
		score := 0
		for _, term := range terms {
			score += strings.Count(lower, term)
		}
		for _, term := range e.cfg.BonusTerms {
			score += strings.Count(lower, strings.ToLower(term)) * 2
		}

		if score > 0 {
			candidates = append(candidates, candidate{
				filename: entry.Filename,
				score:    score,
				content:  content,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > e.cfg.MaxPapers {
		candidates = candidates[:e.cfg.MaxPapers]
	}
	return candidates
}

// answerFromPapers grounds one completion call on the top fallback
// candidates and cites each of them.
func (e *Engine) answerFromPapers(ctx context.Context, question string, papers []candidate) QueryResult {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: paperContextPrompt(papers)},
		{Role: llm.RoleUser, Content: question},
	}

	answer, err := e.llm.Complete(ctx, messages, llm.Options{MaxTokens: 600, Temperature: 0.3})
	if err != nil {
		return e.degraded(question, err)
	}

	sources := make([]SourceCitation, 0, len(papers))
	for i, p := range papers {
		sources = append(sources, SourceCitation{
			Content:     truncateUTF8(p.content, snippetLength),
			Source:      p.filename,
			ChunkID:     i,
			PDFLink:     "/paper/" + p.filename,
			SummaryLink: "/paper/" + p.filename + "/summary",
		})
	}

	return QueryResult{Answer: answer, Sources: sources, Question: question}
}

// answerGeneral answers from model knowledge alone, with a single
// synthetic citation marking the absence of paper grounding.
func (e *Engine) answerGeneral(ctx context.Context, question string) QueryResult {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: generalPrompt},
		{Role: llm.RoleUser, Content: question},
	}

	answer, err := e.llm.Complete(ctx, messages, llm.Options{MaxTokens: 500, Temperature: 0.3})
	if err != nil {
		return e.degraded(question, err)
	}

	return QueryResult{
		Answer: answer,
		Sources: []SourceCitation{{
			Content: "General background knowledge",
			Source:  GeneralKnowledgeSource,
			ChunkID: 0,
		}},
		Question: question,
	}
}

// degraded is the answer of last resort when the completion provider is
// unreachable. It embeds the error detail and carries no citations.
func (e *Engine) degraded(question string, err error) QueryResult {
	return QueryResult{
		Answer:   fmt.Sprintf("I'm sorry, I'm having trouble answering right now. Please try again later. Error: %v", err),
		Sources:  []SourceCitation{},
		Question: question,
	}
}

// truncateUTF8 safely truncates text to approximately maxLen bytes
// without splitting multi-byte UTF-8 characters. Adds "..." if truncated.
func truncateUTF8(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	validLen := maxLen
	for validLen > 0 && !utf8.RuneStart(text[validLen]) {
		validLen--
	}

	if validLen == 0 {
		return ""
	}

	return text[:validLen] + "..."
}
