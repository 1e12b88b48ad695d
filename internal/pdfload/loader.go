// Package pdfload extracts text from PDF research papers.
package pdfload

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Errors returned when a PDF cannot be loaded.
var (
	ErrNotFound   = errors.New("pdf file not found")
	ErrInvalidPDF = errors.New("not a valid pdf file")
)

// Loader extracts per-page text from PDF files on disk.
// It is read-only and safe for concurrent use.
type Loader struct{}

// NewLoader creates a new PDF loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Pages extracts text from every page of the PDF at path.
// The result has one string per page, in page order. A page whose text
// cannot be extracted yields an empty string; a single bad page never
// fails the whole load.
func (l *Loader) Pages(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPDF, path, err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	return pages, nil
}

// FullText extracts the complete text of the PDF at path,
// joining pages with newlines.
func (l *Loader) FullText(path string) (string, error) {
	pages, err := l.Pages(path)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}
