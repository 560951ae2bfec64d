package testutil

import (
	"context"
	"sync"

	"github.com/verdantlabs/ragchat/llm"
)

// MockBackend is a scriptable llm.Backend. Complete returns the scripted
// completion; Stream replays the scripted tokens and source events, honoring
// context cancellation between tokens.
type MockBackend struct {
	// CompleteFunc overrides Complete entirely when set.
	CompleteFunc func(ctx context.Context, req llm.Request) (*llm.Completion, error)

	// Completion is returned by Complete when CompleteFunc is nil.
	Completion llm.Completion

	// Tokens are replayed in order by Stream.
	Tokens []string

	// Sources, when set, are reported through Retrieved before the first
	// token.
	Sources []string

	// Summary is the backend's own completion summary returned by Stream.
	Summary string

	// Err, when set, is returned by Complete and by Stream after
	// ErrAfterTokens tokens.
	Err            error
	ErrAfterTokens int

	// TokenSent, when set, is signaled after each delivered token. Tests
	// use it to coordinate cancellation mid-stream.
	TokenSent func(i int)

	mu       sync.Mutex
	requests []llm.Request
}

func (b *MockBackend) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	b.record(req)
	if b.CompleteFunc != nil {
		return b.CompleteFunc(ctx, req)
	}
	if b.Err != nil {
		return nil, b.Err
	}
	c := b.Completion
	return &c, nil
}

func (b *MockBackend) Stream(ctx context.Context, req llm.Request, h llm.StreamHandler) (string, error) {
	b.record(req)
	if len(b.Sources) > 0 {
		h.Retrieved(b.Sources)
	}
	for i, token := range b.Tokens {
		if b.Err != nil && i == b.ErrAfterTokens {
			return "", b.Err
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		h.Token(token)
		if b.TokenSent != nil {
			b.TokenSent(i)
		}
	}
	if b.Err != nil && b.ErrAfterTokens >= len(b.Tokens) {
		return "", b.Err
	}
	return b.Summary, nil
}

// Requests returns a copy of every request the backend has seen.
func (b *MockBackend) Requests() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]llm.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

func (b *MockBackend) record(req llm.Request) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
}
