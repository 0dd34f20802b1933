// Package schema describes the structured output each strategy promises and
// repairs raw model fields until they satisfy it.
//
// Repair is total: whatever the model produced, the returned record conforms
// to the schema. Out-of-domain values are replaced with the field default,
// never clamped.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Kind is the value type a field holds after repair.
type Kind int

const (
	KindNumber     Kind = iota // float64
	KindString                 // string, optionally restricted to Enum
	KindStringList             // []string
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindStringList:
		return "string_list"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FieldSpec is the contract for one output field.
type FieldSpec struct {
	Name        string
	Kind        Kind
	Description string

	// Number constraint: closed range [Min, Max].
	Min, Max float64

	// String constraints. Enum values are canonical spellings; input matches
	// case-insensitively. MaxLength counts runes, 0 means unbounded.
	Enum      []string
	MaxLength int

	// List constraint. Longer lists are truncated to the first MaxItems.
	MaxItems int

	// Default is the replacement value: float64, string, or []string. For a
	// list it is the placeholder used when the list is missing or empty; for
	// an enum it is the fallback member.
	Default any
}

// OutputSchema is a named, ordered set of fields.
type OutputSchema struct {
	Name   string
	Fields []FieldSpec
}

// Repair reasons.
const (
	ReasonMissing    = "missing"
	ReasonWrongType  = "wrong_type"
	ReasonOutOfRange = "out_of_range"
	ReasonNotInEnum  = "not_in_enum"
	ReasonEmpty      = "empty"
	ReasonTruncated  = "truncated"
)

// Repair records one field that did not satisfy its FieldSpec.
type Repair struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Original any    `json:"original,omitempty"`
}

// ─── SCHEMA ───────────────────────────────────────────────────────────────────

// Field returns the FieldSpec named name.
func (s OutputSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Defaults returns the default-filled record.
func (s OutputSchema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.defaultValue()
	}
	return out
}

// Check verifies that the schema is internally consistent: names are unique
// and every default satisfies its own constraint. Built-in schemas are checked
// in tests; registries call it at construction.
func (s OutputSchema) Check() error {
	if s.Name == "" {
		return fmt.Errorf("schema: name is required")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s: no fields", s.Name)
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true

		if f.Kind == KindNumber && f.Min > f.Max {
			return fmt.Errorf("schema %s: field %q: min %v > max %v", s.Name, f.Name, f.Min, f.Max)
		}
		if f.Kind == KindStringList && f.MaxItems <= 0 {
			return fmt.Errorf("schema %s: field %q: max items must be positive", s.Name, f.Name)
		}
		if _, reason := f.repair(f.Default); reason != "" {
			return fmt.Errorf("schema %s: field %q: default %v is %s", s.Name, f.Name, f.Default, reason)
		}
	}
	return nil
}

// Repair maps raw fields onto the schema. The returned record holds exactly
// the schema's fields; unknown keys are dropped. Repair never fails and is
// idempotent: repairing its own output yields the same record and no repairs.
func (s OutputSchema) Repair(raw map[string]any) (map[string]any, []Repair) {
	out := make(map[string]any, len(s.Fields))
	var repairs []Repair

	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			out[f.Name] = f.defaultValue()
			repairs = append(repairs, Repair{Field: f.Name, Reason: ReasonMissing})
			continue
		}

		fixed, reason := f.repair(v)
		out[f.Name] = fixed
		if reason != "" {
			repairs = append(repairs, Repair{Field: f.Name, Reason: reason, Original: v})
		}
	}
	return out, repairs
}

// ─── FIELD REPAIR ─────────────────────────────────────────────────────────────

// repair returns the conforming value for v and the reason it changed, or ""
// when v already conformed. Whitespace trimming is not reported.
func (f FieldSpec) repair(v any) (any, string) {
	switch f.Kind {
	case KindNumber:
		n, ok := toNumber(v)
		if !ok {
			return f.defaultValue(), ReasonWrongType
		}
		if n < f.Min || n > f.Max {
			return f.defaultValue(), ReasonOutOfRange
		}
		return n, ""

	case KindString:
		s, ok := toText(v)
		if !ok {
			return f.defaultValue(), ReasonWrongType
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return f.defaultValue(), ReasonEmpty
		}
		if len(f.Enum) > 0 {
			for _, member := range f.Enum {
				if strings.EqualFold(member, s) {
					return member, ""
				}
			}
			return f.defaultValue(), ReasonNotInEnum
		}
		if f.MaxLength > 0 && utf8.RuneCountInString(s) > f.MaxLength {
			return truncateRunes(s, f.MaxLength), ReasonTruncated
		}
		return s, ""

	case KindStringList:
		items, ok := toList(v)
		if !ok {
			return f.defaultValue(), ReasonWrongType
		}
		if len(items) == 0 {
			return f.defaultValue(), ReasonEmpty
		}
		if f.MaxItems > 0 && len(items) > f.MaxItems {
			return items[:f.MaxItems], ReasonTruncated
		}
		if len(items) != listLen(v) {
			// Blank or non-scalar items were dropped.
			return items, ReasonWrongType
		}
		return items, ""
	}
	return f.defaultValue(), ReasonWrongType
}

// defaultValue returns a copy of the default so callers never share slices.
func (f FieldSpec) defaultValue() any {
	switch d := f.Default.(type) {
	case []string:
		return append([]string(nil), d...)
	case int:
		return float64(d)
	default:
		return d
	}
}

func toNumber(v any) (float64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// toText renders scalars as text. Objects and arrays are not text.
func toText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// toList keeps the non-blank scalar items of a sequence, trimmed.
func toList(v any) ([]string, bool) {
	var raw []any
	switch x := v.(type) {
	case []any:
		raw = x
	case []string:
		raw = make([]any, len(x))
		for i, s := range x {
			raw[i] = s
		}
	default:
		return nil, false
	}

	items := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := toText(item)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	return items, true
}

func listLen(v any) int {
	switch x := v.(type) {
	case []any:
		return len(x)
	case []string:
		return len(x)
	}
	return 0
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return strings.TrimSpace(s[:pos])
		}
		i++
	}
	return s
}
