// Package ledger tracks which papers have been processed and with what
// outcome. The ledger is a JSON object keyed by filename, rewritten
// atomically on every change so a crash mid-write cannot corrupt records
// already on disk.
package ledger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// Processing statuses.
const (
	StatusProcessed = "processed"
	StatusError     = "error"
)

// Record is the processing outcome for one paper.
type Record struct {
	ProcessedAt     time.Time `json:"processed_at"`
	ChunkCount      int       `json:"chunks_processed"`
	TotalCharacters int       `json:"total_characters"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
}

// Entry pairs a filename with its record, for ordered iteration.
type Entry struct {
	Filename string
	Record   Record
}

// Ledger is the durable filename -> Record mapping. Iteration order is
// insertion order within a process lifetime; after a restart it is
// rebuilt by ascending ProcessedAt. Safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	path    string
	records map[string]Record
	order   []string
}

// Open loads the ledger at path. A missing or corrupt file yields an
// empty ledger: corruption is logged, never fatal.
func Open(path string) *Ledger {
	l := &Ledger{
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[ledger] reading %s: %v", path, err)
		}
		return l
	}

	if err := json.Unmarshal(data, &l.records); err != nil {
		log.Printf("[ledger] corrupt ledger file %s, starting empty: %v", path, err)
		l.records = make(map[string]Record)
		return l
	}

	for filename := range l.records {
		l.order = append(l.order, filename)
	}
	sort.Slice(l.order, func(i, j int) bool {
		a, b := l.records[l.order[i]], l.records[l.order[j]]
		if !a.ProcessedAt.Equal(b.ProcessedAt) {
			return a.ProcessedAt.Before(b.ProcessedAt)
		}
		return l.order[i] < l.order[j]
	})

	return l
}

// Record upserts the record for filename and persists immediately.
func (l *Ledger) Record(filename string, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[filename]; !exists {
		l.order = append(l.order, filename)
	}
	l.records[filename] = rec
	return l.save()
}

// Get returns the record for filename.
func (l *Ledger) Get(filename string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[filename]
	return rec, ok
}

// All returns a snapshot of all entries in insertion order.
func (l *Ledger) All() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := make([]Entry, 0, len(l.order))
	for _, filename := range l.order {
		entries = append(entries, Entry{Filename: filename, Record: l.records[filename]})
	}
	return entries
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Clear empties the ledger and persists the empty mapping.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]Record)
	l.order = nil
	return l.save()
}

// save writes the mapping to a temp file, then renames it into place.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	tempPath := l.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing temp ledger: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp ledger: %w", err)
	}

	return nil
}
