package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/verdantlabs/ragchat/llm"
)

// New creates a tool definition with type-safe argument handling.
//
// The argument schema is derived from In via reflection, so the model sees
// the exact contract the handler expects. Type erasure happens internally:
// the returned definition decodes raw JSON arguments into In before calling
// the handler, and a decode failure is returned as the tool's error rather
// than panicking mid-conversation.
func New[In any](name, description string, handler func(ctx context.Context, in In) (any, error)) (llm.ToolDef, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return llm.ToolDef{}, fmt.Errorf("deriving schema for tool %q: %w", name, err)
	}

	return llm.ToolDef{
		Name:        name,
		Description: description,
		Schema:      schema,
		Invoke: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in In
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool %q: %w", name, err)
			}
			return handler(ctx, in)
		},
	}, nil
}
