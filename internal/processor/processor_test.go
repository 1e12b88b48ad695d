package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paperchat/internal/chunker"
	"paperchat/internal/ledger"
	"paperchat/internal/llm"
	"paperchat/internal/vecindex"
)

// fakeLoader serves canned pages and full texts keyed by base filename.
type fakeLoader struct {
	pages    map[string][]string
	texts    map[string]string
	pagesErr map[string]error
	textErr  map[string]error
}

func (f *fakeLoader) Pages(path string) ([]string, error) {
	name := filepath.Base(path)
	if err := f.pagesErr[name]; err != nil {
		return nil, err
	}
	pages, ok := f.pages[name]
	if !ok {
		return nil, errors.New("no such pdf")
	}
	return pages, nil
}

func (f *fakeLoader) FullText(path string) (string, error) {
	name := filepath.Base(path)
	if err := f.textErr[name]; err != nil {
		return "", err
	}
	text, ok := f.texts[name]
	if !ok {
		return "", errors.New("no such pdf")
	}
	return text, nil
}

// fakeVecIndex records added chunks and clear calls.
type fakeVecIndex struct {
	added   []chunker.Chunk
	entries []vecindex.Entry
	cleared bool
	addErr  error
}

func (f *fakeVecIndex) Search(_ context.Context, _ string, k int) ([]vecindex.Entry, error) {
	if len(f.entries) > k {
		return f.entries[:k], nil
	}
	return f.entries, nil
}

func (f *fakeVecIndex) Add(_ context.Context, chunks []chunker.Chunk) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, chunks...)
	return nil
}

func (f *fakeVecIndex) Clear(_ context.Context) error {
	f.cleared = true
	return nil
}

type fakeLLM struct {
	answer       string
	err          error
	calls        int
	lastMessages []llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, _ llm.Options) (string, error) {
	f.calls++
	f.lastMessages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestProcessor(t *testing.T, loader *fakeLoader, index Index, client llm.Client) (*Processor, *ledger.Ledger, string) {
	t.Helper()
	dir := t.TempDir()
	led := ledger.Open(filepath.Join(dir, "ledger.json"))
	uploadDir := filepath.Join(dir, "uploads")
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		t.Fatalf("creating upload dir: %v", err)
	}
	p := New(loader, chunker.NewSplitter(0, 0), index, led, client, uploadDir, nil)
	return p, led, uploadDir
}

func TestProcess_Success(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]string{
		"paper.pdf": {"first page text", "second page text"},
	}}
	idx := &fakeVecIndex{}
	p, led, _ := newTestProcessor(t, loader, idx, &fakeLLM{})

	result := p.Process(context.Background(), "/anywhere/paper.pdf")

	if result.Status != "success" {
		t.Fatalf("Status = %s, error = %s", result.Status, result.Error)
	}
	if result.Filename != "paper.pdf" {
		t.Errorf("Filename = %s", result.Filename)
	}
	if result.ChunksProcessed != 1 {
		t.Errorf("ChunksProcessed = %d, want 1", result.ChunksProcessed)
	}
	if result.TotalCharacters == 0 {
		t.Error("TotalCharacters should be nonzero")
	}

	if len(idx.added) != 1 || idx.added[0].Source != "paper.pdf" {
		t.Errorf("index chunks = %+v", idx.added)
	}

	rec, ok := led.Get("paper.pdf")
	if !ok || rec.Status != ledger.StatusProcessed {
		t.Errorf("ledger record = %+v, ok = %v", rec, ok)
	}
	if rec.ChunkCount != 1 {
		t.Errorf("ledger ChunkCount = %d", rec.ChunkCount)
	}
}

func TestProcess_LoaderFailure(t *testing.T) {
	loader := &fakeLoader{pagesErr: map[string]error{"broken.pdf": errors.New("not a pdf")}}
	p, led, _ := newTestProcessor(t, loader, &fakeVecIndex{}, &fakeLLM{})

	result := p.Process(context.Background(), "broken.pdf")

	if result.Status != "error" {
		t.Fatalf("Status = %s, want error", result.Status)
	}
	if !strings.Contains(result.Error, "not a pdf") {
		t.Errorf("Error = %q", result.Error)
	}

	rec, ok := led.Get("broken.pdf")
	if !ok || rec.Status != ledger.StatusError {
		t.Errorf("failure must be recorded in the ledger: %+v, ok = %v", rec, ok)
	}
}

func TestProcess_IndexFailure(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]string{"p.pdf": {"text"}}}
	idx := &fakeVecIndex{addErr: errors.New("db locked")}
	p, led, _ := newTestProcessor(t, loader, idx, &fakeLLM{})

	result := p.Process(context.Background(), "p.pdf")
	if result.Status != "error" {
		t.Fatalf("Status = %s, want error", result.Status)
	}
	if rec, _ := led.Get("p.pdf"); rec.Status != ledger.StatusError {
		t.Errorf("ledger status = %s", rec.Status)
	}
}

func TestProcess_NilIndex(t *testing.T) {
	loader := &fakeLoader{pages: map[string][]string{"p.pdf": {"text"}}}
	p, led, _ := newTestProcessor(t, loader, nil, &fakeLLM{})

	result := p.Process(context.Background(), "p.pdf")
	if result.Status != "success" {
		t.Fatalf("processing without an index should still succeed: %s", result.Error)
	}
	if rec, _ := led.Get("p.pdf"); rec.Status != ledger.StatusProcessed {
		t.Errorf("ledger status = %s", rec.Status)
	}
}

func TestQuery_EmptyQuestion(t *testing.T) {
	p, _, _ := newTestProcessor(t, &fakeLoader{}, nil, &fakeLLM{})

	if _, err := p.Query(context.Background(), "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestQuery_Delegates(t *testing.T) {
	idx := &fakeVecIndex{entries: []vecindex.Entry{
		{Content: "chunk text", Source: "p.pdf", ChunkID: 0},
	}}
	client := &fakeLLM{answer: "the answer"}
	p, _, _ := newTestProcessor(t, &fakeLoader{}, idx, client)

	result, err := p.Query(context.Background(), "question?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.Answer != "the answer" {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Sources) != 1 || result.Sources[0].Source != "p.pdf" {
		t.Errorf("Sources = %+v", result.Sources)
	}
}

func TestSummarize_NotFound(t *testing.T) {
	p, _, _ := newTestProcessor(t, &fakeLoader{}, nil, &fakeLLM{})

	if _, err := p.Summarize(context.Background(), "ghost.pdf"); !errors.Is(err, ErrPaperNotFound) {
		t.Errorf("err = %v, want ErrPaperNotFound", err)
	}
}

func TestSummarize_FromIndex(t *testing.T) {
	idx := &fakeVecIndex{entries: []vecindex.Entry{
		{Content: "methods section", Source: "paper.pdf", ChunkID: 1},
	}}
	client := &fakeLLM{answer: "a fine summary"}
	p, led, _ := newTestProcessor(t, &fakeLoader{}, idx, client)
	led.Record("paper.pdf", ledger.Record{Status: ledger.StatusProcessed, ProcessedAt: time.Now()})

	summary, err := p.Summarize(context.Background(), "paper.pdf")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Summary != "a fine summary" {
		t.Errorf("Summary = %q", summary.Summary)
	}
	if len(summary.Sources) != 1 || summary.Sources[0].Source != "paper.pdf" {
		t.Errorf("Sources = %+v", summary.Sources)
	}
}

func TestSummarize_DirectFallback(t *testing.T) {
	// No index, and the paper's text shares no substring with the
	// summarization question, so retrieval finds nothing and the
	// processor summarizes the full text directly.
	loader := &fakeLoader{texts: map[string]string{"zq.pdf": "zq zq zq"}}
	client := &fakeLLM{answer: "direct summary"}
	p, led, _ := newTestProcessor(t, loader, nil, client)
	led.Record("zq.pdf", ledger.Record{Status: ledger.StatusProcessed, ProcessedAt: time.Now()})

	summary, err := p.Summarize(context.Background(), "zq.pdf")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Summary != "direct summary" {
		t.Errorf("Summary = %q", summary.Summary)
	}
	if len(summary.Sources) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(summary.Sources))
	}
	if summary.Sources[0].Content != "Summary generated from full paper content" {
		t.Errorf("citation = %+v", summary.Sources[0])
	}
	if summary.Sources[0].Source != "zq.pdf" {
		t.Errorf("citation source = %s", summary.Sources[0].Source)
	}

	// The direct call must carry the paper's text.
	if !strings.Contains(client.lastMessages[1].Content, "zq zq zq") {
		t.Error("full text should be embedded in the completion request")
	}
}

func TestSummarize_DirectFallbackLoadError(t *testing.T) {
	loader := &fakeLoader{textErr: map[string]error{"zq.pdf": errors.New("file vanished")}}
	p, led, _ := newTestProcessor(t, loader, nil, &fakeLLM{answer: "x"})
	led.Record("zq.pdf", ledger.Record{Status: ledger.StatusProcessed, ProcessedAt: time.Now()})

	summary, err := p.Summarize(context.Background(), "zq.pdf")
	if err != nil {
		t.Fatalf("Summarize should not fail: %v", err)
	}
	if !strings.Contains(summary.Summary, "Unable to generate summary") {
		t.Errorf("Summary = %q", summary.Summary)
	}
	if len(summary.Sources) != 0 {
		t.Errorf("expected no citations, got %d", len(summary.Sources))
	}
}

func TestListProcessed(t *testing.T) {
	p, led, _ := newTestProcessor(t, &fakeLoader{}, nil, &fakeLLM{})
	led.Record("good.pdf", ledger.Record{Status: ledger.StatusProcessed, ChunkCount: 5, ProcessedAt: time.Now()})
	led.Record("bad.pdf", ledger.Record{Status: ledger.StatusError, Error: "unreadable"})

	papers := p.ListProcessed()
	if len(papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(papers))
	}
	if papers[0].Filename != "good.pdf" || papers[0].ChunkCount != 5 {
		t.Errorf("papers[0] = %+v", papers[0])
	}
}

func TestReprocessAll(t *testing.T) {
	loader := &fakeLoader{
		pages:    map[string][]string{"a.pdf": {"page text"}},
		pagesErr: map[string]error{"b.pdf": errors.New("corrupt")},
	}
	idx := &fakeVecIndex{}
	p, led, uploadDir := newTestProcessor(t, loader, idx, &fakeLLM{})

	// Stale record that the rebuild must wipe.
	led.Record("stale.pdf", ledger.Record{Status: ledger.StatusProcessed, ProcessedAt: time.Now()})

	for _, name := range []string{"b.pdf", "a.pdf", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(uploadDir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	result := p.ReprocessAll(context.Background())

	if !idx.cleared {
		t.Error("index should be cleared before reprocessing")
	}
	if result.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2 (txt files excluded)", result.TotalFiles)
	}
	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("Succeeded = %d, Failed = %d", result.Succeeded, result.Failed)
	}
	if result.Results[0].Filename != "a.pdf" {
		t.Errorf("results should be in sorted filename order, got %s first", result.Results[0].Filename)
	}

	if _, ok := led.Get("stale.pdf"); ok {
		t.Error("stale ledger records must be wiped by reprocessing")
	}
	if rec, _ := led.Get("a.pdf"); rec.Status != ledger.StatusProcessed {
		t.Errorf("a.pdf status = %s", rec.Status)
	}
	if rec, _ := led.Get("b.pdf"); rec.Status != ledger.StatusError {
		t.Errorf("b.pdf status = %s", rec.Status)
	}
}
