package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"

	"github.com/verdantlabs/ragchat/knowledge"
	"github.com/verdantlabs/ragchat/llm"
)

// Retrieval defaults matching the conversation core's augmentation step.
const (
	DefaultMaxResults = 10
	DefaultMinScore   = 0.5
)

// Retriever embeds a query and fetches the most relevant chunks from a
// knowledge.Index.
type Retriever struct {
	index    knowledge.Index
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewRetriever creates a Retriever over the given index and embedder.
func NewRetriever(index knowledge.Index, embedder ai.Embedder, logger *slog.Logger) (*Retriever, error) {
	if index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{index: index, embedder: embedder, logger: logger}, nil
}

// Retrieve embeds the query and returns up to maxResults chunks scoring at
// least minScore, best first, as context ready to attach to a model request.
func (r *Retriever) Retrieve(ctx context.Context, query string, filter knowledge.Filter, maxResults int, minScore float64) ([]llm.ContextChunk, error) {
	vec, err := embedText(ctx, r.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := r.index.Search(ctx, vec, maxResults, minScore, filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	chunks := make([]llm.ContextChunk, len(results))
	for i, res := range results {
		chunks[i] = llm.ContextChunk{
			SourceID: res.Chunk.SourceID,
			Text:     res.Chunk.Text,
			Score:    res.Score,
		}
	}
	r.logger.Debug("retrieved context", "query_len", len(query), "chunks", len(chunks))
	return chunks, nil
}

// DocumentResolver resolves a source identifier back to its originating
// document. Supplied by the caller; the index stores chunks, not documents.
type DocumentResolver interface {
	Resolve(ctx context.Context, sourceID string) (*Document, error)
}

// ResolveDocuments maps retrieved chunks to their originating documents,
// deduplicated by source id in first-seen order. Resolution is lazy: nothing
// is looked up until the caller asks for it.
func ResolveDocuments(ctx context.Context, resolver DocumentResolver, chunks []llm.ContextChunk) ([]Document, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	seen := make(map[string]struct{}, len(chunks))
	docs := make([]Document, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		doc, err := resolver.Resolve(ctx, c.SourceID)
		if err != nil {
			return nil, fmt.Errorf("resolving document %q: %w", c.SourceID, err)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}
