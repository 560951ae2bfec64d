// Package rag implements the retrieval side of the conversation core:
// document ingestion into a knowledge.Index and query-time retrieval of
// relevant chunks.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/verdantlabs/ragchat/knowledge"
)

// SourceIDKey is the reserved metadata key stamped onto every chunk a
// document produces, used for bulk removal by document id.
const SourceIDKey = "source_id"

// ErrEmptyDocument indicates a document yielded no extractable text.
// Callers treat this as a reportable per-document condition, not a crash.
var ErrEmptyDocument = errors.New("document contains no extractable text")

// Document is the unit of ingestion: a stable external identifier, the raw
// content, and metadata stamped onto every chunk it produces.
type Document struct {
	ID       string
	Content  string
	Metadata knowledge.Metadata
}

// ObjectStore resolves a stable document identifier to raw bytes.
// It is the object-storage collaborator contract; the core never manages
// physical storage itself.
type ObjectStore interface {
	Fetch(ctx context.Context, docID string) ([]byte, error)
}

// IngestError reports a single document's ingestion failure within a batch.
type IngestError struct {
	DocID string
	Err   error
}

func (e IngestError) Error() string { return fmt.Sprintf("ingest %q: %v", e.DocID, e.Err) }

func (e IngestError) Unwrap() error { return e.Err }

// Ingestor splits documents into chunks, embeds them, and writes them into a
// knowledge.Index. Removal reverses ingestion by source id.
type Ingestor struct {
	index    knowledge.Index
	embedder ai.Embedder
	splitter *Splitter
	logger   *slog.Logger
}

// NewIngestor creates an Ingestor with the default paragraph-aware splitter
// (1024-character chunks, 64-character overlap).
func NewIngestor(index knowledge.Index, embedder ai.Embedder, logger *slog.Logger) (*Ingestor, error) {
	splitter, err := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		return nil, err
	}
	return NewIngestorWithSplitter(index, embedder, splitter, logger)
}

// NewIngestorWithSplitter creates an Ingestor with custom chunk sizing.
func NewIngestorWithSplitter(index knowledge.Index, embedder ai.Embedder, splitter *Splitter, logger *slog.Logger) (*Ingestor, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if splitter == nil {
		return nil, fmt.Errorf("splitter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{index: index, embedder: embedder, splitter: splitter, logger: logger}, nil
}

// Ingest splits, embeds, and stores one document. Every chunk carries the
// document's metadata plus SourceIDKey = doc.ID.
func (g *Ingestor) Ingest(ctx context.Context, doc Document) error {
	if strings.TrimSpace(doc.Content) == "" {
		return fmt.Errorf("%w: document %q", ErrEmptyDocument, doc.ID)
	}

	texts := g.splitter.Split(doc.Content)
	if len(texts) == 0 {
		return fmt.Errorf("%w: document %q", ErrEmptyDocument, doc.ID)
	}

	chunks := make([]knowledge.Chunk, 0, len(texts))
	for _, text := range texts {
		vec, err := embedText(ctx, g.embedder, text)
		if err != nil {
			return fmt.Errorf("embedding chunk of document %q: %w", doc.ID, err)
		}
		md := doc.Metadata.Clone()
		if md == nil {
			md = knowledge.Metadata{}
		}
		md[SourceIDKey] = knowledge.StringValue(doc.ID)
		chunks = append(chunks, knowledge.Chunk{
			ID:        uuid.NewString(),
			SourceID:  doc.ID,
			Text:      text,
			Embedding: vec,
			Metadata:  md,
		})
	}

	if err := g.index.Insert(ctx, chunks); err != nil {
		return fmt.Errorf("storing chunks of document %q: %w", doc.ID, err)
	}

	g.logger.Debug("ingested document", "doc_id", doc.ID, "chunks", len(chunks))
	return nil
}

// IngestAll ingests documents one by one, collecting per-document failures.
// A failing document never aborts the rest of the batch.
func (g *Ingestor) IngestAll(ctx context.Context, docs []Document) []IngestError {
	var failures []IngestError
	for _, doc := range docs {
		if err := g.Ingest(ctx, doc); err != nil {
			g.logger.Warn("document ingestion failed", "doc_id", doc.ID, "error", err)
			failures = append(failures, IngestError{DocID: doc.ID, Err: err})
		}
	}
	return failures
}

// IngestFromStore fetches a document's raw content from object storage and
// ingests it under the given id and metadata.
func (g *Ingestor) IngestFromStore(ctx context.Context, store ObjectStore, docID string, metadata knowledge.Metadata) error {
	raw, err := store.Fetch(ctx, docID)
	if err != nil {
		return fmt.Errorf("fetching document %q: %w", docID, err)
	}
	return g.Ingest(ctx, Document{ID: docID, Content: string(raw), Metadata: metadata})
}

// Remove deletes every chunk the document produced. Removing an unknown
// document is a no-op.
func (g *Ingestor) Remove(ctx context.Context, docID string) error {
	if err := g.index.DeleteWhere(ctx, SourceIDKey, knowledge.StringValue(docID)); err != nil {
		return fmt.Errorf("removing document %q: %w", docID, err)
	}
	g.logger.Debug("removed document", "doc_id", docID)
	return nil
}
