package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const draft2020 = "https://json-schema.org/draft/2020-12/schema"

// JSONSchema renders the schema as a JSON Schema (draft 2020-12) document.
// It is published at /strategies/{name}/schema and used by Validator.
func (s OutputSchema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))

	for _, f := range s.Fields {
		required = append(required, f.Name)

		var p map[string]any
		switch f.Kind {
		case KindNumber:
			p = map[string]any{"type": "number", "minimum": f.Min, "maximum": f.Max}
		case KindString:
			p = map[string]any{"type": "string", "minLength": 1}
			if len(f.Enum) > 0 {
				p["enum"] = f.Enum
			} else if f.MaxLength > 0 {
				p["maxLength"] = f.MaxLength
			}
		case KindStringList:
			p = map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string", "minLength": 1},
				"minItems": 1,
				"maxItems": f.MaxItems,
			}
		}
		if f.Description != "" {
			p["description"] = f.Description
		}
		p["default"] = f.defaultValue()
		props[f.Name] = p
	}

	return map[string]any{
		"$schema":              draft2020,
		"title":                s.Name,
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Validator checks records against the compiled JSON Schema of an
// OutputSchema. It is safe for concurrent use.
type Validator struct {
	name     string
	compiled *jsonschema.Schema
}

// NewValidator compiles the JSON Schema for s.
func NewValidator(s OutputSchema) (*Validator, error) {
	doc, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("schema %s: marshal json schema: %w", s.Name, err)
	}

	url := s.Name + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("schema %s: load json schema: %w", s.Name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile json schema: %w", s.Name, err)
	}
	return &Validator{name: s.Name, compiled: compiled}, nil
}

// Validate reports whether record conforms. The record is round-tripped
// through encoding/json so Go slices and numbers reach the validator in the
// shapes it expects.
func (v *Validator) Validate(record map[string]any) error {
	b, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("schema %s: marshal record: %w", v.name, err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("schema %s: decode record: %w", v.name, err)
	}
	if err := v.compiled.Validate(doc); err != nil {
		return fmt.Errorf("schema %s: record does not conform: %w", v.name, err)
	}
	return nil
}
