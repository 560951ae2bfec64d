// Package testutil provides shared test infrastructure: a deterministic
// embedder, a scriptable model backend, and a pgvector test container.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder is a deterministic ai.Embedder for tests. Each input text
// maps to a fixed pseudo-random unit vector derived from its SHA-256 hash,
// so identical texts always embed identically and distinct texts are almost
// surely not collinear.
type MockEmbedder struct {
	Dim int
}

// NewMockEmbedder creates a mock embedder producing vectors of dimension dim.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) Name() string { return "mockEmbedder" }

// Register is a no-op; the embedder is used directly, not via a registry.
func (m *MockEmbedder) Register(r api.Registry) {}

func (m *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: m.vector(text)})
	}
	return resp, nil
}

// EmbedText returns the vector the embedder would produce for text.
// Handy for asserting search behavior without going through ai.EmbedRequest.
func (m *MockEmbedder) EmbedText(text string) []float32 {
	return m.vector(text)
}

func (m *MockEmbedder) vector(text string) []float32 {
	vec := make([]float32, m.Dim)
	seed := sha256.Sum256([]byte(text))
	var norm float64
	for i := range vec {
		// Stretch the 32-byte digest over arbitrary dimensions by
		// rehashing with the index.
		h := sha256.Sum256(append(seed[:], byte(i), byte(i>>8)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u)/float32(math.MaxUint32) - 0.5
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
