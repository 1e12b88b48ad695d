// Package processor is the public facade over the paper pipeline:
// process one PDF, query the corpus, summarize one paper, list processed
// papers, reprocess everything. Processing failures are recorded in the
// ledger and returned as structured results, never raised past this
// boundary.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"paperchat/internal/chunker"
	"paperchat/internal/engine"
	"paperchat/internal/ledger"
	"paperchat/internal/llm"
)

// Errors surfaced to the HTTP boundary.
var (
	// ErrPaperNotFound means the filename has no ledger entry.
	ErrPaperNotFound = errors.New("paper not found")

	// ErrEmptyQuestion rejects blank questions before they reach the
	// query engine.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// summaryTextLimit bounds the full text fed to the direct summarization
// fallback.
const summaryTextLimit = 4000

// Loader extracts text from PDFs on disk.
type Loader interface {
	Pages(path string) ([]string, error)
	FullText(path string) (string, error)
}

// Index is the vector index surface the processor writes to.
type Index interface {
	engine.SearchIndex
	Add(ctx context.Context, chunks []chunker.Chunk) error
	Clear(ctx context.Context) error
}

// Result is the outcome of processing one PDF.
type Result struct {
	Status          string `json:"status"` // success or error
	Filename        string `json:"filename"`
	ChunksProcessed int    `json:"chunks_processed,omitempty"`
	TotalCharacters int    `json:"total_characters,omitempty"`
	Error           string `json:"error,omitempty"`
}

// PaperInfo is one entry of the processed-papers listing.
type PaperInfo struct {
	Filename    string    `json:"filename"`
	ProcessedAt time.Time `json:"processed_at"`
	ChunkCount  int       `json:"chunks_processed"`
}

// SummaryResult is a paper summary with its citations.
type SummaryResult struct {
	Filename string                  `json:"filename"`
	Summary  string                  `json:"summary"`
	Sources  []engine.SourceCitation `json:"sources"`
}

// ReprocessResult is the outcome of a full rebuild.
type ReprocessResult struct {
	Status     string   `json:"status"`
	TotalFiles int      `json:"total_files"`
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// Processor composes the loader, splitter, vector index, ledger and
// query engine. Index may be nil when the vector store is unavailable;
// processing then records chunks in the ledger only and queries take the
// engine's fallback path.
type Processor struct {
	loader    Loader
	splitter  *chunker.Splitter
	index     Index
	ledger    *ledger.Ledger
	engine    *engine.Engine
	llm       llm.Client
	uploadDir string
}

// New creates a processor.
func New(loader Loader, splitter *chunker.Splitter, index Index, led *ledger.Ledger, client llm.Client, uploadDir string, bonusTerms []string) *Processor {
	var searchIndex engine.SearchIndex
	if index != nil {
		searchIndex = index
	}

	eng := engine.New(searchIndex, led, loader, client, engine.Config{
		UploadDir:  uploadDir,
		BonusTerms: bonusTerms,
	})

	return &Processor{
		loader:    loader,
		splitter:  splitter,
		index:     index,
		ledger:    led,
		engine:    eng,
		llm:       client,
		uploadDir: uploadDir,
	}
}

// Process loads, chunks and indexes one PDF, then records the outcome in
// the ledger. Failures are recorded with status=error and returned as a
// structured result.
func (p *Processor) Process(ctx context.Context, path string) Result {
	filename := filepath.Base(path)
	log.Printf("[processor] processing %s", filename)

	pages, err := p.loader.Pages(path)
	if err != nil {
		return p.recordFailure(filename, fmt.Errorf("loading pdf: %w", err))
	}

	chunks := p.splitter.Split(filename, pages)

	if p.index != nil {
		if err := p.index.Add(ctx, chunks); err != nil {
			return p.recordFailure(filename, fmt.Errorf("indexing chunks: %w", err))
		}
	}

	totalChars := 0
	for _, c := range chunks {
		totalChars += len(c.Content)
	}

	rec := ledger.Record{
		ProcessedAt:     time.Now(),
		ChunkCount:      len(chunks),
		TotalCharacters: totalChars,
		Status:          ledger.StatusProcessed,
	}
	if err := p.ledger.Record(filename, rec); err != nil {
		log.Printf("[processor] recording %s: %v", filename, err)
	}

	log.Printf("[processor] processed %d chunks from %s", len(chunks), filename)

	return Result{
		Status:          "success",
		Filename:        filename,
		ChunksProcessed: len(chunks),
		TotalCharacters: totalChars,
	}
}

// recordFailure writes an error record to the ledger and returns the
// matching result.
func (p *Processor) recordFailure(filename string, err error) Result {
	log.Printf("[processor] processing %s failed: %v", filename, err)

	rec := ledger.Record{
		ProcessedAt: time.Now(),
		Status:      ledger.StatusError,
		Error:       err.Error(),
	}
	if recErr := p.ledger.Record(filename, rec); recErr != nil {
		log.Printf("[processor] recording failure for %s: %v", filename, recErr)
	}

	return Result{Status: "error", Filename: filename, Error: err.Error()}
}

// Query answers a question about the corpus. Blank questions are
// rejected with ErrEmptyQuestion before reaching the engine.
func (p *Processor) Query(ctx context.Context, question string) (engine.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return engine.QueryResult{}, ErrEmptyQuestion
	}
	return p.engine.Answer(ctx, question), nil
}

// Summarize produces a summary of one processed paper. It first asks the
// query engine with a summarization request; when that yields no
// citations, it falls back to one direct completion call over the
// paper's full text.
func (p *Processor) Summarize(ctx context.Context, filename string) (SummaryResult, error) {
	if _, ok := p.ledger.Get(filename); !ok {
		return SummaryResult{}, fmt.Errorf("%w: %s", ErrPaperNotFound, filename)
	}

	question := fmt.Sprintf("Provide a comprehensive summary of the research paper %s. Include the main research question, methodology, key findings, and conclusions.", filename)
	result := p.engine.Answer(ctx, question)
	if groundedInPapers(result.Sources) {
		return SummaryResult{Filename: filename, Summary: result.Answer, Sources: result.Sources}, nil
	}

	return p.summarizeDirect(ctx, filename)
}

// groundedInPapers reports whether citations point at actual papers. A
// lone general-knowledge citation means retrieval found nothing.
func groundedInPapers(sources []engine.SourceCitation) bool {
	for _, s := range sources {
		if s.Source != engine.GeneralKnowledgeSource {
			return true
		}
	}
	return false
}

// summarizeDirect summarizes the paper's full text (truncated) with one
// completion call, bypassing retrieval.
func (p *Processor) summarizeDirect(ctx context.Context, filename string) (SummaryResult, error) {
	text, err := p.loader.FullText(filepath.Join(p.uploadDir, filename))
	if err != nil {
		return SummaryResult{
			Filename: filename,
			Summary:  fmt.Sprintf("Unable to generate summary: %v", err),
			Sources:  []engine.SourceCitation{},
		}, nil
	}

	if len(text) > summaryTextLimit {
		text = text[:summaryTextLimit] + "..."
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a research assistant. Provide a comprehensive summary of research papers."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Please provide a comprehensive summary of this research paper:\n\n%s", text)},
	}

	summary, err := p.llm.Complete(ctx, messages, llm.Options{MaxTokens: 500, Temperature: 0.3})
	if err != nil {
		return SummaryResult{
			Filename: filename,
			Summary:  fmt.Sprintf("Unable to generate summary: %v", err),
			Sources:  []engine.SourceCitation{},
		}, nil
	}

	return SummaryResult{
		Filename: filename,
		Summary:  summary,
		Sources: []engine.SourceCitation{{
			Content: "Summary generated from full paper content",
			Source:  filename,
			ChunkID: 0,
		}},
	}, nil
}

// ListProcessed returns ledger entries with status=processed, in
// insertion order.
func (p *Processor) ListProcessed() []PaperInfo {
	var papers []PaperInfo
	for _, entry := range p.ledger.All() {
		if entry.Record.Status != ledger.StatusProcessed {
			continue
		}
		papers = append(papers, PaperInfo{
			Filename:    entry.Filename,
			ProcessedAt: entry.Record.ProcessedAt,
			ChunkCount:  entry.Record.ChunkCount,
		})
	}
	return papers
}

// Ledger exposes read access to processing records for listings.
func (p *Processor) Ledger() *ledger.Ledger {
	return p.ledger
}

// UploadDir returns the raw PDF storage directory.
func (p *Processor) UploadDir() string {
	return p.uploadDir
}

// ReprocessAll clears the vector index and the ledger, then processes
// every PDF currently in upload storage. A single file's failure never
// aborts the batch; per-file outcomes are collected in the result.
func (p *Processor) ReprocessAll(ctx context.Context) ReprocessResult {
	if p.index != nil {
		if err := p.index.Clear(ctx); err != nil {
			log.Printf("[processor] clearing index: %v", err)
		}
	}
	if err := p.ledger.Clear(); err != nil {
		log.Printf("[processor] clearing ledger: %v", err)
	}

	pdfs, err := filepath.Glob(filepath.Join(p.uploadDir, "*.pdf"))
	if err != nil {
		log.Printf("[processor] listing upload dir: %v", err)
	}
	sort.Strings(pdfs)

	result := ReprocessResult{
		Status:     "completed",
		TotalFiles: len(pdfs),
		Results:    make([]Result, 0, len(pdfs)),
	}

	for _, path := range pdfs {
		r := p.Process(ctx, path)
		if r.Status == "success" {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, r)
	}

	log.Printf("[processor] reprocessing completed: %d files, %d failed", result.TotalFiles, result.Failed)
	return result
}
