// Package chunker splits extracted document text into overlapping
// fixed-size passages for indexing.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the target chunk size in characters.
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of characters shared between
	// consecutive chunks.
	DefaultOverlap = 200

	// FileTypePDF is the file type recorded on chunks cut from PDFs.
	FileTypePDF = "pdf"
)

// Chunk is a contiguous slice of a paper's extracted text, the unit of
// indexing. ChunkID is a 0-based ordinal, contiguous within one paper.
type Chunk struct {
	Source   string // source filename
	ChunkID  int
	Content  string
	FileType string
}

// Splitter cuts page texts into overlapping chunks. Splitting is
// deterministic: the same input and parameters always produce the same
// chunk sequence.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter creates a splitter, applying defaults for non-positive
// parameters. Overlap is clamped below Size.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split cuts the page texts of one paper into chunks. Pages are joined
// with blank lines so page boundaries survive as paragraph breaks. Chunks
// prefer to end at a paragraph or sentence boundary when one falls in the
// tail half of the size window; otherwise they are cut hard at Size,
// backed off to a rune boundary. Each chunk starts Size-Overlap after the
// previous one, so consecutive chunks overlap by up to Overlap characters
// and an early break never shortens the stride.
func (s *Splitter) Split(source string, pages []string) []Chunk {
	text := strings.Join(pages, "\n\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []Chunk
	start := 0
	for {
		end := start + s.Size
		if end >= len(text) {
			chunks = append(chunks, Chunk{
				Source:   source,
				ChunkID:  len(chunks),
				Content:  text[start:],
				FileType: FileTypePDF,
			})
			break
		}

		cut := s.breakPoint(text, start, end)
		chunks = append(chunks, Chunk{
			Source:   source,
			ChunkID:  len(chunks),
			Content:  text[start:cut],
			FileType: FileTypePDF,
		})

		next := start + s.Size - s.Overlap
		if next > cut {
			next = cut // never leave a gap after an early break
		}
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = cut // guarantee forward progress
		}
		start = next
	}

	return chunks
}

// breakPoint finds the cut position for a chunk starting at start with a
// hard limit of end. It prefers the last paragraph break, then the last
// sentence end, within the tail half of the window. The hard cut is
// backed off so it never splits a multi-byte rune.
func (s *Splitter) breakPoint(text string, start, end int) int {
	min := start + s.Size/2
	window := text[min:end]

	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return min + i + 2
	}
	if i := lastSentenceEnd(window); i >= 0 {
		return min + i + 1
	}

	cut := end
	for cut > min && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return cut
}

// lastSentenceEnd returns the index of the last sentence-terminating
// punctuation in window that is followed by whitespace, or -1.
func lastSentenceEnd(window string) int {
	for i := len(window) - 2; i >= 0; i-- {
		c := window[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		next := window[i+1]
		if next == ' ' || next == '\n' || next == '\t' {
			return i
		}
	}
	return -1
}
