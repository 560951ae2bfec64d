// Package llm defines the contracts between the conversation core and the
// model backend that produces completions.
//
// The core never talks to a provider SDK directly. A hosting application
// supplies a Backend implementation (OpenAI, Ollama, a local mock, ...) and
// the chat package drives it through these types. Embedding generation uses
// the Genkit ai.Embedder contract directly; see the rag package.
package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation history.
// Insertion order is conversation order.
type Message struct {
	Role Role
	Text string
	Time time.Time
}

// ContextChunk is a retrieved piece of grounding text supplied to the model
// for a single turn. It is never persisted into conversation memory.
type ContextChunk struct {
	SourceID string
	Text     string
	Score    float64
}

// ToolDef declares a callable tool to the model backend.
//
// Description is natural language shown to the model so it can decide when to
// invoke the tool. Invoke must be side-effect-free and deterministic: the
// model may call it repeatedly with identical arguments and must get
// identical results. Backends surface an Invoke error back to the model as a
// tool-failure result rather than aborting the turn.
type ToolDef struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
	Invoke      func(ctx context.Context, args json.RawMessage) (any, error)
}

// Request carries everything a backend needs to produce one answer.
type Request struct {
	// System is the synthesized system preamble; empty means none.
	System string

	// History is the bounded conversation memory, oldest first.
	History []Message

	// Tools the model may invoke during generation.
	Tools []ToolDef

	// Context holds retrieved chunks for this turn only.
	Context []ContextChunk

	// Instructions is the new user input for this turn.
	Instructions string
}

// Completion is the result of a non-streaming call.
type Completion struct {
	Text string

	// Sources lists originating document identifiers the backend reports
	// having consulted, in the order it reports them.
	Sources []string
}

// StreamHandler receives push-based events from a streaming backend.
// The backend drives timing; handlers must not block the producer.
// Events for one stream are delivered sequentially.
type StreamHandler interface {
	// Token delivers one generated token.
	Token(token string)

	// Retrieved reports originating document identifiers of retrieved
	// content consulted mid-generation. May be called multiple times.
	Retrieved(sourceIDs []string)
}

// Backend is the model-backend contract.
//
// Both calls honor context cancellation and deadlines; a hung provider call
// must be boundable by the caller's deadline.
type Backend interface {
	// Complete produces a full answer in one blocking call.
	Complete(ctx context.Context, req Request) (*Completion, error)

	// Stream produces the answer token by token, pushing events into h.
	// It returns the backend's own final summary once the stream ends.
	// Callers should prefer their locally accumulated text over the
	// returned summary: after internal tool calls some providers report
	// only the last sub-step here.
	Stream(ctx context.Context, req Request, h StreamHandler) (finalSummary string, err error)
}
