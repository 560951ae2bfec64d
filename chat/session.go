// Package chat implements conversation sessions: bounded message memory, a
// persona-derived system preamble, optional retrieval augmentation, tool
// dispatch, and synchronous and streaming ask operations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/verdantlabs/ragchat/knowledge"
	"github.com/verdantlabs/ragchat/llm"
	"github.com/verdantlabs/ragchat/tools"
)

// ContextRetriever fetches relevant context for a query. *rag.Retriever
// satisfies it.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, filter knowledge.Filter, maxResults int, minScore float64) ([]llm.ContextChunk, error)
}

// Config assembles one session. Backend is required; everything else is
// optional with defaults.
type Config struct {
	// Backend produces completions and token streams.
	Backend llm.Backend

	// Retriever, if set, augments every turn with retrieved context.
	Retriever ContextRetriever

	// Filter narrows retrieval to matching chunks.
	Filter knowledge.Filter

	// MaxResults caps retrieved chunks per turn. Defaults to 10.
	MaxResults int

	// MinScore drops retrieved chunks scoring below it. Defaults to 0.5
	// when zero; set negative to disable the floor.
	MinScore float64

	// Tools, if set, are offered to the model on every turn.
	Tools *tools.Registry

	// Persona shapes the system preamble. Empty means no system message.
	Persona Persona

	// MemoryTokens bounds the history. Defaults to 4000.
	MemoryTokens int

	// Throttle is the minimum interval between streamed partial updates.
	// Defaults to 200ms; set zero explicitly via ThrottleEveryToken.
	Throttle time.Duration

	// ThrottleEveryToken disables throttling so every token is surfaced.
	ThrottleEveryToken bool

	// Limiter, if set, gates turn starts across callers of this session.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// Session owns one conversation. At most one turn is in flight at a time; a
// second Ask or AskStreaming while one is running fails with ErrSessionBusy.
type Session struct {
	cfg    Config
	memory *Memory
	logger *slog.Logger

	mu sync.Mutex // held for the full duration of a turn
}

// NewSession creates a session, seeding memory with the persona's system
// message when the persona is non-empty.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.MinScore == 0 {
		cfg.MinScore = 0.5
	}
	if cfg.MinScore < 0 {
		cfg.MinScore = 0
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.ThrottleEveryToken {
		cfg.Throttle = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		cfg:    cfg,
		memory: NewMemory(cfg.MemoryTokens),
		logger: cfg.Logger,
	}
	if prompt := cfg.Persona.SystemPrompt(); prompt != "" {
		s.memory.Pin(llm.Message{Role: llm.RoleSystem, Text: prompt, Time: time.Now()})
	}
	return s, nil
}

// History returns a copy of the session's current memory.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory.Messages()
}

// Ask runs one blocking turn: retrieve context, assemble the prompt, call
// the backend, and commit the exchange to memory. The user message is
// committed even when the backend fails; the assistant message only on
// success.
func (s *Session) Ask(ctx context.Context, instructions string) (*Answer, error) {
	if !s.mu.TryLock() {
		return nil, ErrSessionBusy
	}
	defer s.mu.Unlock()

	req, err := s.beginTurn(ctx, instructions)
	if err != nil {
		return nil, err
	}
	s.memory.Append(llm.Message{Role: llm.RoleUser, Text: instructions, Time: time.Now()})

	completion, err := s.cfg.Backend.Complete(ctx, req)
	if err != nil {
		return nil, s.mapErr(err)
	}

	s.memory.Append(llm.Message{Role: llm.RoleAssistant, Text: completion.Text, Time: time.Now()})
	return &Answer{Text: completion.Text, Sources: completion.Sources}, nil
}

// AskStreaming runs one turn asynchronously, surfacing throttled partial
// updates through cb. Exactly one terminal callback fires. On completion
// the user and accumulated assistant messages are committed to memory; on
// error or cancellation memory is left untouched.
func (s *Session) AskStreaming(ctx context.Context, instructions string, cb Callbacks) error {
	if !s.mu.TryLock() {
		return ErrSessionBusy
	}

	req, err := s.beginTurn(ctx, instructions)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	wrapped := cb
	wrapped.OnComplete = func(a Answer) {
		s.memory.Append(llm.Message{Role: llm.RoleUser, Text: instructions, Time: time.Now()})
		s.memory.Append(llm.Message{Role: llm.RoleAssistant, Text: a.Text, Time: time.Now()})
		if cb.OnComplete != nil {
			cb.OnComplete(a)
		}
	}
	pipeline := NewPipeline(s.cfg.Throttle, wrapped)

	go func() {
		defer s.mu.Unlock()

		_, err := s.cfg.Backend.Stream(ctx, req, pipeline)
		switch {
		case err == nil:
			pipeline.Complete()
		case errors.Is(err, context.Canceled):
			pipeline.Cancel()
		default:
			pipeline.Fail(s.mapErr(err))
		}
	}()
	return nil
}

// beginTurn gates on the rate limiter, runs retrieval, and assembles the
// model request. Retrieval failures degrade to an unaugmented turn.
func (s *Session) beginTurn(ctx context.Context, instructions string) (llm.Request, error) {
	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return llm.Request{}, s.mapErr(err)
		}
	}

	var contextChunks []llm.ContextChunk
	if s.cfg.Retriever != nil {
		chunks, err := s.cfg.Retriever.Retrieve(ctx, instructions, s.cfg.Filter, s.cfg.MaxResults, s.cfg.MinScore)
		if err != nil {
			s.logger.Warn("retrieval failed, answering without context", "error", err)
		} else {
			contextChunks = chunks
		}
	}

	system, history := splitSystem(s.memory.Messages())
	req := llm.Request{
		System:       system,
		History:      history,
		Context:      contextChunks,
		Instructions: instructions,
	}
	if s.cfg.Tools != nil {
		req.Tools = s.cfg.Tools.Definitions()
	}
	return req, nil
}

func (s *Session) mapErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	default:
		return fmt.Errorf("%w: %v", ErrBackend, err)
	}
}

// splitSystem separates the pinned system message, when present, from the
// conversational history.
func splitSystem(msgs []llm.Message) (string, []llm.Message) {
	if len(msgs) > 0 && msgs[0].Role == llm.RoleSystem {
		return msgs[0].Text, msgs[1:]
	}
	return "", msgs
}
