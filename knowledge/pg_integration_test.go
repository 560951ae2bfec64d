//go:build integration

package knowledge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/verdantlabs/ragchat/knowledge"
	"github.com/verdantlabs/ragchat/log"
	"github.com/verdantlabs/ragchat/testutil"
)

const testDim = 768

func vec(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	v[0] = fill
	v[1] = 1
	return v
}

func TestPgIndexRoundTrip(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ix, err := knowledge.NewPgIndex(db.Pool, testDim, log.NewNop())
	if err != nil {
		t.Fatalf("NewPgIndex: %v", err)
	}

	chunks := []knowledge.Chunk{
		{
			ID:        uuid.NewString(),
			SourceID:  "doc1",
			Text:      "first chunk",
			Embedding: vec(testDim, 1),
			Metadata: knowledge.Metadata{
				"source_id": knowledge.StringValue("doc1"),
				"lang":      knowledge.StringValue("en"),
			},
		},
		{
			ID:        uuid.NewString(),
			SourceID:  "doc2",
			Text:      "second chunk",
			Embedding: vec(testDim, -1),
			Metadata: knowledge.Metadata{
				"source_id": knowledge.StringValue("doc2"),
				"lang":      knowledge.StringValue("fr"),
			},
		},
	}
	if err := ix.Insert(ctx, chunks); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	results, err := ix.Search(ctx, vec(testDim, 1), 10, 0, knowledge.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Chunk.SourceID != "doc1" {
		t.Errorf("best match source = %q, want doc1", results[0].Chunk.SourceID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %g <= %g", results[0].Score, results[1].Score)
	}
	if got := results[0].Chunk.Metadata["lang"].String(); got != "en" {
		t.Errorf("metadata lang = %q, want en", got)
	}

	filtered, err := ix.Search(ctx, vec(testDim, 1), 10, 0, knowledge.Eq("lang", knowledge.StringValue("fr")))
	if err != nil {
		t.Fatalf("filtered Search: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Chunk.SourceID != "doc2" {
		t.Fatalf("filtered search returned %v, want only doc2", filtered)
	}

	membership, err := ix.Search(ctx, vec(testDim, 1), 10, 0,
		knowledge.In("lang", knowledge.StringValue("en"), knowledge.StringValue("de")))
	if err != nil {
		t.Fatalf("membership Search: %v", err)
	}
	if len(membership) != 1 || membership[0].Chunk.SourceID != "doc1" {
		t.Fatalf("membership search returned %v, want only doc1", membership)
	}

	// Filter value types must line up with the stored field types, matching
	// the in-memory index's behavior.
	if _, err := ix.Search(ctx, vec(testDim, 1), 10, 0,
		knowledge.Eq("lang", knowledge.IntValue(5))); !errors.Is(err, knowledge.ErrInvalidFilter) {
		t.Fatalf("numeric filter on string field: got %v, want ErrInvalidFilter", err)
	}

	if err := ix.DeleteWhere(ctx, "source_id", knowledge.StringValue("doc1")); err != nil {
		t.Fatalf("DeleteWhere: %v", err)
	}
	remaining, err := ix.Search(ctx, vec(testDim, 1), 10, 0, knowledge.Filter{})
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Chunk.SourceID != "doc2" {
		t.Fatalf("after delete got %v, want only doc2", remaining)
	}
}

func TestPgIndexFilterTypes(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	ix, err := knowledge.NewPgIndex(db.Pool, testDim, log.NewNop())
	if err != nil {
		t.Fatalf("NewPgIndex: %v", err)
	}

	chunk := knowledge.Chunk{
		ID:        uuid.NewString(),
		SourceID:  "doc1",
		Text:      "numbered chunk",
		Embedding: vec(testDim, 1),
		Metadata: knowledge.Metadata{
			"count": knowledge.IntValue(5),
			"lang":  knowledge.StringValue("en"),
		},
	}
	if err := ix.Insert(ctx, []knowledge.Chunk{chunk}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// A string filter against the numeric field errors rather than silently
	// matching nothing.
	if _, err := ix.Search(ctx, vec(testDim, 1), 10, 0,
		knowledge.Eq("count", knowledge.StringValue("5"))); !errors.Is(err, knowledge.ErrInvalidFilter) {
		t.Errorf("string filter on numeric field: got %v, want ErrInvalidFilter", err)
	}
	if _, err := ix.Search(ctx, vec(testDim, 1), 10, 0,
		knowledge.In("count", knowledge.StringValue("5"), knowledge.StringValue("7"))); !errors.Is(err, knowledge.ErrInvalidFilter) {
		t.Errorf("string membership on numeric field: got %v, want ErrInvalidFilter", err)
	}

	// Same-type filters still match; membership compares numerically, so a
	// string "5" never cross-matches the stored number.
	results, err := ix.Search(ctx, vec(testDim, 1), 10, 0, knowledge.Eq("count", knowledge.IntValue(5)))
	if err != nil {
		t.Fatalf("typed equality Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("typed equality matched %d chunks, want 1", len(results))
	}
	results, err = ix.Search(ctx, vec(testDim, 1), 10, 0,
		knowledge.In("count", knowledge.IntValue(5), knowledge.IntValue(7)))
	if err != nil {
		t.Fatalf("typed membership Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("typed membership matched %d chunks, want 1", len(results))
	}

	// A missing key is not a type mismatch, just no match.
	results, err = ix.Search(ctx, vec(testDim, 1), 10, 0, knowledge.Eq("absent", knowledge.IntValue(1)))
	if err != nil {
		t.Fatalf("missing-key Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("missing key matched %d chunks, want 0", len(results))
	}
}
