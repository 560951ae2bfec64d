package knowledge

import (
	"errors"
	"fmt"
)

// Sentinel errors for index operations.
// Check with errors.Is().
var (
	// ErrInvalidFilter indicates a filter value's type does not match the
	// type of the metadata field it is compared against.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrDimensionMismatch indicates an embedding vector whose dimension
	// differs from the index's configured dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Filter is a boolean expression over chunk metadata: a conjunction of
// equality and set-membership conditions. The zero value matches everything.
//
// Filters are immutable; And returns a new Filter. Build them with Eq and In:
//
//	f := knowledge.Eq("source_type", knowledge.StringValue("file")).
//	    And(knowledge.In("lang", knowledge.StringValue("en"), knowledge.StringValue("fr")))
type Filter struct {
	conds []condition
}

type condition struct {
	key    string
	values []Value // one value for equality, many for membership
}

// Eq creates a filter matching chunks whose metadata at key equals value.
func Eq(key string, value Value) Filter {
	return Filter{conds: []condition{{key: key, values: []Value{value}}}}
}

// In creates a filter matching chunks whose metadata at key equals any of
// the given values.
func In(key string, values ...Value) Filter {
	vs := make([]Value, len(values))
	copy(vs, values)
	return Filter{conds: []condition{{key: key, values: vs}}}
}

// And returns the conjunction of f and g.
func (f Filter) And(g Filter) Filter {
	conds := make([]condition, 0, len(f.conds)+len(g.conds))
	conds = append(conds, f.conds...)
	conds = append(conds, g.conds...)
	return Filter{conds: conds}
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool { return len(f.conds) == 0 }

// Matches evaluates the filter against a chunk's metadata.
// A missing key simply fails the condition; a type mismatch between a filter
// value and the stored field is an error wrapping ErrInvalidFilter.
func (f Filter) Matches(md Metadata) (bool, error) {
	for _, c := range f.conds {
		field, ok := md[c.key]
		if !ok {
			return false, nil
		}
		matched := false
		for _, want := range c.values {
			eq, err := field.equal(want)
			if err != nil {
				return false, fmt.Errorf("%w: key %q: %v", ErrInvalidFilter, c.key, err)
			}
			if eq {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}
