package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -1)
	if s.Size != DefaultChunkSize {
		t.Errorf("Size = %d, want %d", s.Size, DefaultChunkSize)
	}
	if s.Overlap != DefaultOverlap {
		t.Errorf("Overlap = %d, want %d", s.Overlap, DefaultOverlap)
	}
}

func TestNewSplitter_ClampsOverlap(t *testing.T) {
	s := NewSplitter(100, 500)
	if s.Overlap >= s.Size {
		t.Errorf("Overlap %d should be clamped below Size %d", s.Overlap, s.Size)
	}
}

func TestSplit_SingleChunkWhenShort(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("short.pdf", []string{"a small page of text"})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ChunkID != 0 {
		t.Errorf("ChunkID = %d, want 0", chunks[0].ChunkID)
	}
	if chunks[0].Source != "short.pdf" {
		t.Errorf("Source = %s, want short.pdf", chunks[0].Source)
	}
	if chunks[0].FileType != FileTypePDF {
		t.Errorf("FileType = %s, want %s", chunks[0].FileType, FileTypePDF)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s := NewSplitter(1000, 200)
	if chunks := s.Split("empty.pdf", []string{"", "  ", ""}); chunks != nil {
		t.Errorf("expected nil chunks for blank pages, got %d", len(chunks))
	}
}

func TestSplit_ThreeChunksFor2500Chars(t *testing.T) {
	// 3 pages totaling 2500 characters: chunks advance by Size-Overlap =
	// 800, giving ceil(2300/800) = 3. The page-boundary break inside the
	// first window may shorten that chunk's content but must not shorten
	// the stride and inflate the count.
	pages := []string{
		strings.Repeat("a", 900),
		strings.Repeat("b", 900),
		strings.Repeat("c", 700),
	}
	s := NewSplitter(1000, 200)
	chunks := s.Split("paper_a.pdf", pages)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, "\n\n") {
		t.Error("first chunk should cut at the page boundary")
	}

	// Later chunks start at fixed 800-char strides into the joined text.
	text := strings.Join(pages, "\n\n")
	if chunks[1].Content != text[800:1800] {
		t.Errorf("second chunk should cover [800, 1800), got %d chars", len(chunks[1].Content))
	}
	if chunks[2].Content != text[1600:] {
		t.Errorf("third chunk should cover [1600, end), got %d chars", len(chunks[2].Content))
	}
}

func TestSplit_MultiByteRuneBoundaries(t *testing.T) {
	// A hard cut at byte 1000 would land inside a 2-byte rune; every
	// chunk must still be valid UTF-8.
	pages := []string{"x" + strings.Repeat("é", 700)}
	s := NewSplitter(1000, 200)
	chunks := s.Split("p.pdf", pages)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d contains invalid UTF-8", i)
		}
	}
	if !strings.HasSuffix(chunks[len(chunks)-1].Content, "é") {
		t.Error("last chunk should end on a whole rune")
	}
}

func TestSplit_ContiguousIDs(t *testing.T) {
	pages := []string{strings.Repeat("word. ", 2000)}
	s := NewSplitter(500, 100)
	chunks := s.Split("p.pdf", pages)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkID != i {
			t.Errorf("chunk %d has ChunkID %d", i, c.ChunkID)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	pages := []string{
		"First paragraph of the paper.\n\nSecond paragraph with more text. " + strings.Repeat("x", 1500),
		"A second page. " + strings.Repeat("y", 800),
	}
	s := NewSplitter(1000, 200)

	a := s.Split("p.pdf", pages)
	b := s.Split("p.pdf", pages)

	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestSplit_OverlapReconstructsText(t *testing.T) {
	pages := []string{strings.Repeat("abcdefghij", 300)}
	text := pages[0]
	s := NewSplitter(1000, 200)
	chunks := s.Split("p.pdf", pages)

	// Removing each chunk's leading overlap and concatenating must
	// reconstruct the full text: the splitter itself is never lossy.
	var b strings.Builder
	for i, c := range chunks {
		content := c.Content
		if i > 0 {
			content = content[s.Overlap:]
		}
		b.WriteString(content)
	}
	if b.String() != text {
		t.Errorf("reconstructed text differs: got %d chars, want %d", b.Len(), len(text))
	}
}

func TestSplit_PrefersSentenceBoundary(t *testing.T) {
	// A sentence end sits inside the tail half of the window; the chunk
	// should cut right after it rather than mid-word.
	text := strings.Repeat("z", 700) + ". " + strings.Repeat("w", 600)
	s := NewSplitter(1000, 200)
	chunks := s.Split("p.pdf", []string{text})

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Content, ".") {
		t.Errorf("first chunk should end at the sentence boundary, ends with %q",
			chunks[0].Content[len(chunks[0].Content)-5:])
	}
}
