// Package knowledge stores text chunks with embedding vectors and typed
// metadata, and serves metadata-filtered nearest-neighbor searches.
//
// Two Index implementations are provided: MemoryIndex for per-process
// temporary collections and PgIndex backed by PostgreSQL + pgvector for
// persistent ones. Both are safe for concurrent use; a search running
// concurrently with an insert may or may not observe the new chunks, but
// never observes a partially written one.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
)

// Index is the vector store contract consumed by the rag package.
type Index interface {
	// Insert stores chunks; they are searchable once Insert returns.
	Insert(ctx context.Context, chunks []Chunk) error

	// DeleteWhere removes every chunk whose metadata at key exactly equals
	// value. Deleting a non-matching key/value pair is a no-op.
	DeleteWhere(ctx context.Context, key string, value Value) error

	// Search returns up to maxResults chunks ordered by descending score,
	// dropping anything below minScore. An empty filter matches everything.
	Search(ctx context.Context, query []float32, maxResults int, minScore float64, filter Filter) ([]SearchResult, error)

	// Dimension returns the fixed embedding dimension of the index.
	Dimension() int
}

// MemoryIndex is an in-process Index guarded by a RWMutex.
// Chunks are copied on the way in and on the way out, so callers can never
// mutate index-owned state and in-flight searches never see torn chunks.
type MemoryIndex struct {
	mu     sync.RWMutex
	dim    int
	chunks []Chunk
	logger *slog.Logger
}

// NewMemoryIndex creates an empty in-memory index for vectors of the given
// dimension. A nil logger falls back to slog.Default().
func NewMemoryIndex(dim int, logger *slog.Logger) (*MemoryIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryIndex{dim: dim, logger: logger}, nil
}

// Dimension returns the index's embedding dimension.
func (ix *MemoryIndex) Dimension() int { return ix.dim }

// Len returns the number of stored chunks.
func (ix *MemoryIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Insert stores copies of the given chunks.
func (ix *MemoryIndex) Insert(ctx context.Context, chunks []Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	copies := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != ix.dim {
			return fmt.Errorf("%w: chunk %q has dimension %d, index expects %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), ix.dim)
		}
		copies = append(copies, c.clone())
	}

	ix.mu.Lock()
	ix.chunks = append(ix.chunks, copies...)
	ix.mu.Unlock()

	ix.logger.Debug("inserted chunks", "count", len(copies))
	return nil
}

// DeleteWhere removes chunks whose metadata at key equals value.
// A type mismatch simply does not match; delete stays idempotent.
func (ix *MemoryIndex) DeleteWhere(ctx context.Context, key string, value Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.chunks[:0]
	removed := 0
	for _, c := range ix.chunks {
		field, ok := c.Metadata[key]
		if ok {
			if eq, err := field.equal(value); err == nil && eq {
				removed++
				continue
			}
		}
		kept = append(kept, c)
	}
	ix.chunks = kept
	if removed > 0 {
		ix.logger.Debug("deleted chunks", "key", key, "value", value.String(), "count", removed)
	}
	return nil
}

// Search scans all chunks, scoring by (1+cosine)/2.
func (ix *MemoryIndex) Search(ctx context.Context, query []float32, maxResults int, minScore float64, filter Filter) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(query), ix.dim)
	}
	if maxResults <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]SearchResult, 0, maxResults)
	for _, c := range ix.chunks {
		match, err := filter.Matches(c.Metadata)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		score := relevanceScore(query, c.Embedding)
		if score < minScore {
			continue
		}
		results = append(results, SearchResult{Chunk: c.clone(), Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// relevanceScore maps cosine similarity into [0,1]: (1+cos)/2.
// Orthogonal vectors score 0.5, identical directions 1.0.
func relevanceScore(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return (1 + cos) / 2
}
