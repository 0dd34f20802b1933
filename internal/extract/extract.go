// Package extract locates the JSON payload inside free-form model output.
//
// Models wrap their answer in prose, markdown fences, or both. Extract picks
// the most likely candidate; ParseObject turns that candidate into a field map
// and reports a parse failure when nothing usable is found.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// ErrNotObject is returned by ParseObject when the payload is valid JSON but
// not an object.
var ErrNotObject = errors.New("extract: payload is not a JSON object")

// Extract returns the candidate JSON text found in raw:
//
//  1. the interior of the first fence tagged json,
//  2. otherwise the interior of the first fence of any kind,
//  3. otherwise the whole trimmed text.
//
// An unterminated fence yields everything after its opening line. The result
// is not checked for JSON validity.
func Extract(raw string) string {
	if body, ok := taggedFence(raw, "json"); ok {
		return body
	}
	if body, ok := anyFence(raw); ok {
		return body
	}
	return strings.TrimSpace(raw)
}

// taggedFence finds the first fence whose info string is tag (case-insensitive).
func taggedFence(raw, tag string) (string, bool) {
	offset := 0
	for {
		i := strings.Index(raw[offset:], fence)
		if i < 0 {
			return "", false
		}
		rest := raw[offset+i+len(fence):]
		if len(rest) >= len(tag) && strings.EqualFold(rest[:len(tag)], tag) && endsInfo(rest[len(tag):]) {
			return fenceBody(rest[len(tag):]), true
		}
		offset += i + len(fence)
	}
}

// anyFence returns the body of the first fence regardless of its info string.
func anyFence(raw string) (string, bool) {
	i := strings.Index(raw, fence)
	if i < 0 {
		return "", false
	}
	rest := raw[i+len(fence):]
	// Drop the info string (e.g. "javascript") when it sits on the fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], fence) && isInfoString(rest[:nl]) {
		rest = rest[nl+1:]
	}
	return fenceBody(rest), true
}

// fenceBody returns the text up to the next fence, or all of it when the
// fence is never closed.
func fenceBody(rest string) string {
	if end := strings.Index(rest, fence); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// endsInfo reports whether s starts right after a complete info word.
func endsInfo(s string) bool {
	if s == "" {
		return true
	}
	switch s[0] {
	case '\n', '\r', ' ', '\t', '{', '[':
		return true
	}
	return false
}

func isInfoString(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	return !strings.ContainsAny(line, "{}[]\"")
}

// ParseObject extracts the candidate from raw and decodes it as a JSON object.
// When the candidate does not decode, the outermost {...} span inside it is
// tried before giving up.
func ParseObject(raw string) (map[string]any, error) {
	candidate := Extract(raw)

	fields, err := decodeObject(candidate)
	if err == nil {
		return fields, nil
	}
	if errors.Is(err, ErrNotObject) {
		return nil, err
	}

	if span, ok := braceSpan(candidate); ok && span != candidate {
		if fields, spanErr := decodeObject(span); spanErr == nil {
			return fields, nil
		}
	}
	return nil, err
}

func decodeObject(text string) (map[string]any, error) {
	if text == "" {
		return nil, errors.New("extract: empty payload")
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("extract: decode: %w", err)
	}
	// Trailing content after the value means the text was not a single document.
	if dec.More() {
		return nil, errors.New("extract: trailing data after JSON value")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

func braceSpan(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
