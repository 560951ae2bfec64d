package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// DefaultChunksTable is the table PgIndex reads and writes.
// It matches db/migrations/000001_create_chunks.up.sql.
const DefaultChunksTable = "chunks"

// PgIndex is an Index backed by PostgreSQL with the pgvector extension.
//
// Metadata is stored as JSONB with native typing, so both equality and
// membership filters render as containment (@>) and see the same type
// semantics as MemoryIndex. A filter value whose type family differs from a
// stored field is reported as ErrInvalidFilter, not silently unmatched.
//
// Inserts are single committed statements, so chunks are searchable as soon
// as Insert returns; Postgres MVCC guarantees a concurrent search never
// observes a torn row.
type PgIndex struct {
	pool   *pgxpool.Pool
	table  string
	dim    int
	logger *slog.Logger
}

// NewPgIndex creates a PgIndex over an existing pool. The chunks table must
// already exist (see db.Migrate) with a vector column of the given dimension.
func NewPgIndex(pool *pgxpool.Pool, dim int, logger *slog.Logger) (*PgIndex, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PgIndex{pool: pool, table: DefaultChunksTable, dim: dim, logger: logger}, nil
}

// Dimension returns the index's embedding dimension.
func (ix *PgIndex) Dimension() int { return ix.dim }

// Insert writes all chunks in one batch.
func (ix *PgIndex) Insert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	sql := fmt.Sprintf(
		`INSERT INTO %s (id, source_id, content, embedding, metadata) VALUES ($1, $2, $3, $4, $5)`,
		ix.table)
	for _, c := range chunks {
		if len(c.Embedding) != ix.dim {
			return fmt.Errorf("%w: chunk %q has dimension %d, index expects %d",
				ErrDimensionMismatch, c.ID, len(c.Embedding), ix.dim)
		}
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for chunk %q: %w", c.ID, err)
		}
		batch.Queue(sql, c.ID, c.SourceID, c.Text, pgvector.NewVector(c.Embedding), metadataJSON)
	}

	br := ix.pool.SendBatch(ctx, batch)
	defer func() {
		if err := br.Close(); err != nil {
			ix.logger.Warn("closing insert batch", "error", err)
		}
	}()
	for range chunks {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("inserting chunks: %w", err)
		}
	}

	ix.logger.Debug("inserted chunks", "count", len(chunks))
	return nil
}

// DeleteWhere removes chunks whose metadata contains {key: value}.
// JSONB containment is typed, so a value of a different type does not match
// and the delete is a no-op, same as MemoryIndex.
func (ix *PgIndex) DeleteWhere(ctx context.Context, key string, value Value) error {
	cond, err := json.Marshal(Metadata{key: value})
	if err != nil {
		return fmt.Errorf("marshaling delete condition: %w", err)
	}
	tag, err := ix.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE metadata @> $1`, ix.table), cond)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if tag.RowsAffected() > 0 {
		ix.logger.Debug("deleted chunks", "key", key, "value", value.String(), "count", tag.RowsAffected())
	}
	return nil
}

// Search runs a cosine-distance query ordered by ascending distance and maps
// distances into the same (1+cosine)/2 relevance score as MemoryIndex.
func (ix *PgIndex) Search(ctx context.Context, query []float32, maxResults int, minScore float64, filter Filter) ([]SearchResult, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			ErrDimensionMismatch, len(query), ix.dim)
	}
	if maxResults <= 0 {
		return nil, nil
	}

	if err := ix.validateFilter(ctx, filter); err != nil {
		return nil, err
	}
	where, args, err := ix.buildWhere(filter)
	if err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(query)
	args = append([]any{vec, maxResults}, args...)

	sql := fmt.Sprintf(
		`SELECT id, source_id, content, embedding, metadata, 1 - (embedding <=> $1) AS cosine
		 FROM %s%s
		 ORDER BY embedding <=> $1
		 LIMIT $2`, ix.table, where)

	rows, err := ix.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			c            Chunk
			embedding    pgvector.Vector
			metadataJSON []byte
			cosine       float64
		)
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Text, &embedding, &metadataJSON, &cosine); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		c.Embedding = embedding.Slice()
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			ix.logger.Warn("unparsable chunk metadata", "chunk_id", c.ID, "error", err)
			c.Metadata = Metadata{}
		}
		score := (1 + cosine) / 2
		if score < minScore {
			continue
		}
		results = append(results, SearchResult{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return results, nil
}

// validateFilter checks filter value types against the stored metadata,
// mirroring MemoryIndex: a text filter value compared against a numeric
// stored field (or vice versa) fails with ErrInvalidFilter instead of
// silently matching nothing. jsonb_typeof of a missing key is NULL, so
// chunks without the key never count as a mismatch, same as Filter.Matches.
func (ix *PgIndex) validateFilter(ctx context.Context, filter Filter) error {
	sql := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE jsonb_typeof(metadata->$1) <> ALL($2))`,
		ix.table)
	for _, c := range filter.conds {
		if len(c.values) == 0 {
			continue
		}
		var wantText, wantNumeric bool
		for _, v := range c.values {
			if v.isNumeric() {
				wantNumeric = true
			} else {
				wantText = true
			}
		}
		var allowed []string
		if wantText {
			allowed = append(allowed, "string")
		}
		if wantNumeric {
			allowed = append(allowed, "number")
		}

		var mismatch bool
		if err := ix.pool.QueryRow(ctx, sql, c.key, allowed).Scan(&mismatch); err != nil {
			return fmt.Errorf("checking filter types for key %q: %w", c.key, err)
		}
		if mismatch {
			return fmt.Errorf("%w: key %q: stored values are not of type %s",
				ErrInvalidFilter, c.key, strings.Join(allowed, " or "))
		}
	}
	return nil
}

// buildWhere renders the filter as SQL. Every condition becomes JSONB
// containment, membership as a disjunction of containments, so JSONB's typed
// equality (numerics compare numerically, strings byte-wise) applies
// throughout. Placeholders start at $3 ($1 is the query vector, $2 the limit).
func (ix *PgIndex) buildWhere(filter Filter) (string, []any, error) {
	if filter.Empty() {
		return "", nil, nil
	}
	var (
		clauses []string
		args    []any
	)
	next := 3
	for _, c := range filter.conds {
		if len(c.values) == 0 {
			// Empty membership set can never match.
			clauses = append(clauses, "FALSE")
			continue
		}
		ors := make([]string, len(c.values))
		for i, v := range c.values {
			cond, err := json.Marshal(Metadata{c.key: v})
			if err != nil {
				return "", nil, fmt.Errorf("marshaling filter condition: %w", err)
			}
			ors[i] = fmt.Sprintf("metadata @> $%d", next)
			args = append(args, cond)
			next++
		}
		if len(ors) == 1 {
			clauses = append(clauses, ors[0])
		} else {
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
