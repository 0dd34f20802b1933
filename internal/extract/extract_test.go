package extract_test

import (
	"errors"
	"testing"

	"github.com/nyashahama/multimodal-risk-engine/internal/extract"
)

// ─── Extract ──────────────────────────────────────────────────────────────────

func TestExtract_Precedence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "json fence wins over earlier plain fence",
			raw:  "intro\n```\nnot this\n```\nthen\n```json\n{\"a\":1}\n```\n",
			want: `{"a":1}`,
		},
		{
			name: "json tag is case-insensitive",
			raw:  "```JSON\n{\"a\":2}\n```",
			want: `{"a":2}`,
		},
		{
			name: "plain fence when no json fence",
			raw:  "Here you go:\n```\n{\"b\":2}\n```\nthanks",
			want: `{"b":2}`,
		},
		{
			name: "info string on plain fence is dropped",
			raw:  "```javascript\n{\"c\":3}\n```",
			want: `{"c":3}`,
		},
		{
			name: "no fence returns trimmed text",
			raw:  "  \n{\"d\":4}\n\t",
			want: `{"d":4}`,
		},
		{
			name: "unterminated json fence takes the rest",
			raw:  "```json\n{\"e\":5}",
			want: `{"e":5}`,
		},
		{
			name: "unterminated plain fence takes the rest",
			raw:  "text ```\n{\"f\":6}\n",
			want: `{"f":6}`,
		},
		{
			name: "fence on one line",
			raw:  "```json{\"g\":7}```",
			want: `{"g":7}`,
		},
		{
			name: "empty input",
			raw:  "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.Extract(tt.raw); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtract_JSONLFenceIsNotJSON(t *testing.T) {
	raw := "```jsonl\n{\"x\":1}\n```"
	// "jsonl" is not the json tag; the block is still picked up as a plain fence.
	if got := extract.Extract(raw); got != `{"x":1}` {
		t.Errorf("got %q", got)
	}
}

// ─── ParseObject ──────────────────────────────────────────────────────────────

func TestParseObject_FencedObject(t *testing.T) {
	fields, err := extract.ParseObject("```json\n{\"risk_level\": \"High\", \"reason\": \"x\"}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["risk_level"] != "High" {
		t.Errorf("risk_level = %v", fields["risk_level"])
	}
}

func TestParseObject_ProseAroundObject(t *testing.T) {
	fields, err := extract.ParseObject(`Sure! {"risk_score": 7, "summary": "ok"} Hope this helps.`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fields["summary"] != "ok" {
		t.Errorf("summary = %v", fields["summary"])
	}
}

func TestParseObject_NumbersKeepPrecision(t *testing.T) {
	fields, err := extract.ParseObject(`{"risk_score": 7.25}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fields["risk_score"]; got == nil || got.(interface{ String() string }).String() != "7.25" {
		t.Errorf("risk_score = %#v", got)
	}
}

func TestParseObject_Failures(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot analyse this image.",
		"```json\n{not json}\n```",
		"{\"a\": 1",
	} {
		if _, err := extract.ParseObject(raw); err == nil {
			t.Errorf("raw=%q: expected error", raw)
		}
	}
}

func TestParseObject_NonObjectIsError(t *testing.T) {
	_, err := extract.ParseObject(`["a","b"]`)
	if !errors.Is(err, extract.ErrNotObject) {
		t.Errorf("expected ErrNotObject, got %v", err)
	}
}
