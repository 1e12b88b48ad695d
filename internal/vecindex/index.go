// Package vecindex is a persistent vector index over paper chunks. Chunk
// embeddings live in a SQLite database; similarity search embeds the query
// and ranks stored vectors by cosine similarity.
package vecindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"paperchat/internal/chunker"
	"paperchat/internal/embedding"
)

// ErrUnavailable is returned when the backing store or the embedding
// provider cannot be reached at construction time. Callers detect it and
// route queries to the keyword fallback instead of failing.
var ErrUnavailable = errors.New("vector index unavailable")

// DefaultTopK is the default number of search results.
const DefaultTopK = 4

// Entry is one retrievable index entry: a chunk's content plus the
// metadata stored alongside its embedding.
type Entry struct {
	Content  string
	Source   string
	ChunkID  int
	FileType string
	Score    float32
}

// Index is a SQLite-backed vector index.
type Index struct {
	db       *sql.DB
	provider embedding.Provider
}

// Open opens or creates the index database at path. It fails with
// ErrUnavailable when the store cannot be opened or no embedding provider
// is configured.
func Open(path string, provider embedding.Provider) (*Index, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no embedding provider", ErrUnavailable)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrUnavailable, err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", ErrUnavailable, err)
	}

	return &Index{db: db, provider: provider}, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS chunks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			chunk_id INTEGER NOT NULL,
			file_type TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`

	_, err := db.Exec(schema)
	return err
}

// Add embeds each chunk's content and appends it to the index. Repeated
// adds of the same content produce duplicate retrievable entries; the
// index does not deduplicate.
func (idx *Index) Add(ctx context.Context, chunks []chunker.Chunk) error {
	stmt, err := idx.db.Prepare(`
		INSERT INTO chunks (source, chunk_id, file_type, content, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		emb, err := idx.provider.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %s: %w", c.ChunkID, c.Source, err)
		}

		if _, err := stmt.ExecContext(ctx, c.Source, c.ChunkID, c.FileType, c.Content, encodeVector(emb.Vector)); err != nil {
			return fmt.Errorf("inserting chunk %d of %s: %w", c.ChunkID, c.Source, err)
		}
	}

	return nil
}

// Search embeds the query and returns the k entries most similar to it,
// highest similarity first. An empty index yields an empty result, not an
// error. k defaults to DefaultTopK when non-positive.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Entry, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	count, err := idx.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []Entry{}, nil
	}

	emb, err := idx.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := idx.db.QueryContext(ctx, `SELECT source, chunk_id, file_type, content, embedding FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var e Entry
		var blob []byte
		if err := rows.Scan(&e.Source, &e.ChunkID, &e.FileType, &e.Content, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s/%d: %w", e.Source, e.ChunkID, err)
		}

		e.Score = cosineSimilarity(emb.Vector, vec)
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Clear irreversibly deletes all entries in the collection.
func (idx *Index) Clear(ctx context.Context) error {
	if _, err := idx.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

// Count returns the number of entries in the index.
func (idx *Index) Count(ctx context.Context) (int, error) {
	var count int
	err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count)
	return count, err
}
