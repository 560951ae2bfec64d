package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/verdantlabs/ragchat/llm"
)

// Registry is a closed set of tool definitions fixed at construction.
// The model can only invoke tools the registry holds; unknown names never
// resolve to code. Safe for concurrent use (no mutable state after New).
type Registry struct {
	defs map[string]llm.ToolDef
}

// NewRegistry builds a registry from the given definitions.
// Duplicate names are rejected.
func NewRegistry(defs ...llm.ToolDef) (*Registry, error) {
	m := make(map[string]llm.ToolDef, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tool with empty name")
		}
		if _, dup := m[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		m[d.Name] = d
	}
	return &Registry{defs: m}, nil
}

// DefaultRegistry returns the built-in toolset: exact decimal arithmetic
// over expressions, and tax extraction from gross amounts.
func DefaultRegistry() (*Registry, error) {
	compute, err := New("compute",
		"Evaluate an arithmetic expression with +, -, *, / and parentheses using exact decimal arithmetic. Use this for any calculation instead of computing yourself.",
		func(ctx context.Context, in ComputeInput) (any, error) {
			v, err := Eval(in.Expression)
			if err != nil {
				return nil, err
			}
			return v.String(), nil
		})
	if err != nil {
		return nil, err
	}

	computeTax, err := New("compute_tax",
		"Compute the tax portion contained in a gross amount at the given tax rate, e.g. rate 0.2 for 20% VAT.",
		func(ctx context.Context, in ComputeTaxInput) (any, error) {
			gross, err := decimal.NewFromString(in.Gross)
			if err != nil {
				return nil, fmt.Errorf("invalid gross amount %q: %w", in.Gross, err)
			}
			rate, err := decimal.NewFromString(in.Rate)
			if err != nil {
				return nil, fmt.Errorf("invalid tax rate %q: %w", in.Rate, err)
			}
			v, err := ComputeTax(gross, rate)
			if err != nil {
				return nil, err
			}
			return v.String(), nil
		})
	if err != nil {
		return nil, err
	}

	return NewRegistry(compute, computeTax)
}

// ComputeInput is the argument contract of the compute tool.
type ComputeInput struct {
	Expression string `json:"expression" jsonschema:"arithmetic expression to evaluate"`
}

// ComputeTaxInput is the argument contract of the compute_tax tool.
// Amounts travel as strings so no precision is lost in JSON.
type ComputeTaxInput struct {
	Gross string `json:"gross" jsonschema:"gross amount including tax, as a decimal string"`
	Rate  string `json:"rate" jsonschema:"tax rate as a decimal fraction, e.g. 0.2 for 20%"`
}

// Definitions returns the registry's tools sorted by name, ready to attach
// to a model request.
func (r *Registry) Definitions() []llm.ToolDef {
	out := make([]llm.ToolDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup returns the named tool definition.
func (r *Registry) Lookup(name string) (llm.ToolDef, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
