package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// DefaultMaxTurns caps the agentic tool-calling loop per turn.
const DefaultMaxTurns = 5

// GenkitBackend is a Backend over a Genkit model. Tool definitions attached
// to a request are registered with the Genkit instance on first use and
// dispatched back through their Invoke functions.
type GenkitBackend struct {
	g        *genkit.Genkit
	model    string
	maxTurns int
	logger   *slog.Logger

	mu sync.Mutex // guards tool definition
}

// NewGenkitBackend creates a backend for the given provider-qualified model
// name, e.g. "googleai/gemini-2.5-flash". An empty model name defers to the
// Genkit instance's default.
func NewGenkitBackend(g *genkit.Genkit, model string, logger *slog.Logger) (*GenkitBackend, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenkitBackend{g: g, model: model, maxTurns: DefaultMaxTurns, logger: logger}, nil
}

// Complete runs one blocking generation.
func (b *GenkitBackend) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := b.generate(ctx, req, nil)
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	return &Completion{Text: resp.Text(), Sources: sourceIDs(req.Context)}, nil
}

// Stream runs one streaming generation, pushing each chunk's text to the
// handler. The retrieval event fires before the first token so consumers can
// attribute sources to partial snapshots.
func (b *GenkitBackend) Stream(ctx context.Context, req Request, h StreamHandler) (string, error) {
	if len(req.Context) > 0 {
		h.Retrieved(sourceIDs(req.Context))
	}
	resp, err := b.generate(ctx, req, func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		h.Token(chunk.Text())
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("streaming response: %w", err)
	}
	// After internal tool calls the response text covers only the last
	// model step; callers reconcile against their own accumulation.
	return resp.Text(), nil
}

func (b *GenkitBackend) generate(ctx context.Context, req Request, cb func(context.Context, *ai.ModelResponseChunk) error) (*ai.ModelResponse, error) {
	messages := make([]*ai.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, &ai.Message{
			Role:    ai.RoleSystem,
			Content: []*ai.Part{ai.NewTextPart(req.System)},
		})
	}
	for _, m := range req.History {
		switch m.Role {
		case RoleAssistant:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Text)))
		case RoleSystem:
			messages = append(messages, &ai.Message{
				Role:    ai.RoleSystem,
				Content: []*ai.Part{ai.NewTextPart(m.Text)},
			})
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Text)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(userText(req))))

	opts := []ai.GenerateOption{
		ai.WithMessages(messages...),
		ai.WithMaxTurns(b.maxTurns),
	}
	if b.model != "" {
		opts = append(opts, ai.WithModelName(b.model))
	}
	if refs := b.toolRefs(req.Tools); len(refs) > 0 {
		opts = append(opts, ai.WithTools(refs...))
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(cb))
	}

	b.logger.Debug("executing generation",
		"model", b.model,
		"history", len(req.History),
		"context_chunks", len(req.Context),
		"tools", len(req.Tools),
	)
	return genkit.Generate(ctx, b.g, opts...)
}

// toolRefs resolves tool definitions to Genkit tools, defining each name at
// most once per instance.
func (b *GenkitBackend) toolRefs(defs []ToolDef) []ai.ToolRef {
	if len(defs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	refs := make([]ai.ToolRef, 0, len(defs))
	for _, def := range defs {
		if tool := genkit.LookupTool(b.g, def.Name); tool != nil {
			refs = append(refs, tool)
			continue
		}
		invoke := def.Invoke
		name := def.Name
		tool := genkit.DefineTool(b.g, def.Name, def.Description,
			func(toolCtx *ai.ToolContext, input map[string]any) (any, error) {
				raw, err := json.Marshal(input)
				if err != nil {
					return nil, fmt.Errorf("encoding arguments for tool %q: %w", name, err)
				}
				return invoke(toolCtx.Context, raw)
			})
		refs = append(refs, tool)
	}
	return refs
}

// userText renders the final user message: retrieved context first, then the
// caller's instructions.
func userText(req Request) string {
	if len(req.Context) == 0 {
		return req.Instructions
	}
	var sb strings.Builder
	sb.WriteString(req.Instructions)
	sb.WriteString("\n\nAnswer using the following information:")
	for _, c := range req.Context {
		sb.WriteString("\n\n")
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func sourceIDs(chunks []ContextChunk) []string {
	if len(chunks) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		ids = append(ids, c.SourceID)
	}
	return ids
}
