package knowledge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ValueKind enumerates the metadata value types preserved by the index.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindID
)

// String returns a human-readable kind name for error messages.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindID:
		return "id"
	default:
		return "unknown"
	}
}

// Value is a typed metadata value. The type is preserved so that equality
// filters can reject cross-type comparisons instead of silently coercing.
// Identifier values are the one exception: they are normalized to their
// canonical string form before comparison, so an ID and the equivalent
// string compare equal.
type Value struct {
	kind ValueKind
	str  string
	num  int64
	fl   float64
}

// StringValue creates a string metadata value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// IntValue creates an integer metadata value.
func IntValue(i int64) Value { return Value{kind: KindInt, num: i} }

// FloatValue creates a floating-point metadata value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, fl: f} }

// IDValue creates an identifier metadata value from a UUID.
func IDValue(id uuid.UUID) Value { return Value{kind: KindID, str: id.String()} }

// Kind returns the value's type.
func (v Value) Kind() ValueKind { return v.kind }

// String returns the canonical string form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.fl, 'g', -1, 64)
	default:
		return v.str
	}
}

// isText reports whether the value compares as text after normalization.
func (v Value) isText() bool { return v.kind == KindString || v.kind == KindID }

// isNumeric reports whether the value compares as a number.
func (v Value) isNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

func (v Value) asFloat() float64 {
	if v.kind == KindInt {
		return float64(v.num)
	}
	return v.fl
}

// equal compares two values for filter purposes.
// Text kinds (string, id) compare by canonical string form; numeric kinds
// compare numerically. A text/numeric mismatch is reported as an error so
// the caller can surface ErrInvalidFilter instead of silently dropping rows.
func (v Value) equal(other Value) (bool, error) {
	switch {
	case v.isText() && other.isText():
		return v.str == other.str, nil
	case v.isNumeric() && other.isNumeric():
		if v.kind == KindInt && other.kind == KindInt {
			return v.num == other.num, nil
		}
		return v.asFloat() == other.asFloat(), nil
	default:
		return false, fmt.Errorf("cannot compare %s value to %s value", v.kind, other.kind)
	}
}

// MarshalJSON encodes the value using its native JSON type so that a JSONB
// containment query sees the same typing as the in-memory index.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.num)
	case KindFloat:
		return json.Marshal(v.fl)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON decodes a JSON scalar back into a typed Value.
// Whole numbers become ints, fractional numbers floats, everything else a
// string. Identifier values round-trip as strings, which is fine: they
// compare by canonical string form anyway.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decoding metadata value: %w", err)
	}
	switch x := raw.(type) {
	case string:
		*v = StringValue(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			*v = IntValue(i)
			return nil
		}
		f, err := x.Float64()
		if err != nil {
			return fmt.Errorf("decoding metadata number %q: %w", x.String(), err)
		}
		*v = FloatValue(f)
	default:
		return fmt.Errorf("unsupported metadata value type %T", raw)
	}
	return nil
}

// Metadata is the arbitrary key/value set attached to a chunk.
type Metadata map[string]Value

// Clone returns an independent copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Chunk is a unit of split document text stored with its embedding.
// Chunks are immutable once stored; the index owns its copies exclusively.
type Chunk struct {
	ID        string
	SourceID  string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// clone returns an independent copy so callers can never mutate, or observe
// mutation of, index-owned state.
func (c Chunk) clone() Chunk {
	cp := c
	cp.Embedding = make([]float32, len(c.Embedding))
	copy(cp.Embedding, c.Embedding)
	cp.Metadata = c.Metadata.Clone()
	return cp
}

// SearchResult is one similarity match, transient per query.
// Score is a relevance score in [0,1]: (1+cosine)/2, so 0.5 means the query
// and the chunk are orthogonal.
type SearchResult struct {
	Chunk Chunk
	Score float64
}
