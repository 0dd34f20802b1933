package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidMetadata is wrapped by every metadata validation failure.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Entry is one metadata pair.
type Entry struct {
	Key   string
	Value any
}

// Metadata is an ordered string→scalar map. Order is insertion order and is
// preserved through JSON decoding so prompts list pairs as the caller sent
// them.
type Metadata struct {
	entries []Entry
}

// NewMetadata builds Metadata from pairs. Later duplicates overwrite earlier
// values in place.
func NewMetadata(entries ...Entry) Metadata {
	var m Metadata
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// Set stores value under key, keeping the key's original position when it
// already exists.
func (m *Metadata) Set(key string, value any) {
	for i := range m.entries {
		if m.entries[i].Key == key {
			m.entries[i].Value = value
			return
		}
	}
	m.entries = append(m.entries, Entry{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	for _, e := range m.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Len returns the number of pairs.
func (m Metadata) Len() int { return len(m.entries) }

// Entries returns a copy of the pairs in order.
func (m Metadata) Entries() []Entry {
	return append([]Entry(nil), m.entries...)
}

// Validate rejects empty keys and non-scalar values.
func (m Metadata) Validate() error {
	for _, e := range m.entries {
		if strings.TrimSpace(e.Key) == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidMetadata)
		}
		if !isScalar(e.Value) {
			return fmt.Errorf("%w: value for %q must be a string, finite number or boolean", ErrInvalidMetadata, e.Key)
		}
	}
	return nil
}

// String renders the pairs as "key: value, key: value".
func (m Metadata) String() string {
	parts := make([]string, len(m.entries))
	for i, e := range m.entries {
		parts[i] = e.Key + ": " + FormatValue(e.Value)
	}
	return strings.Join(parts, ", ")
}

// FormatValue renders a scalar the way it appears in prompts: integral
// numbers without a decimal point, everything else in its shortest form.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func isScalar(v any) bool {
	switch x := v.(type) {
	case float64:
		return isFinite(x)
	case float32:
		return isFinite(float64(x))
	case nil, string, json.Number, int, int64, bool:
		return true
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MarshalJSON encodes the pairs as a JSON object in order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", e.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Nested objects and
// arrays are rejected. Numbers decode as json.Number.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: expected a JSON object", ErrInvalidMetadata)
	}

	var out Metadata
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
		}
		key := tok.(string) // object keys are always strings

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidMetadata, key, err)
		}
		if !isScalar(value) {
			return fmt.Errorf("%w: value for %q must be a string, number or boolean", ErrInvalidMetadata, key)
		}
		out.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	*m = out
	return nil
}
