package schema_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
)

func reasons(repairs []schema.Repair) map[string]string {
	out := make(map[string]string, len(repairs))
	for _, r := range repairs {
		out[r.Field] = r.Reason
	}
	return out
}

// ─── Built-ins ────────────────────────────────────────────────────────────────

func TestBuiltinSchemas_AreConsistent(t *testing.T) {
	for _, s := range []schema.OutputSchema{schema.ZeroShotRisk, schema.FewShotIndicator} {
		if err := s.Check(); err != nil {
			t.Errorf("%s: %v", s.Name, err)
		}
		v, err := schema.NewValidator(s)
		if err != nil {
			t.Fatalf("%s: NewValidator: %v", s.Name, err)
		}
		if err := v.Validate(s.Defaults()); err != nil {
			t.Errorf("%s: defaults do not conform: %v", s.Name, err)
		}
	}
}

func TestCheck_RejectsBadDefault(t *testing.T) {
	s := schema.OutputSchema{
		Name: "bad",
		Fields: []schema.FieldSpec{
			{Name: "score", Kind: schema.KindNumber, Min: 0, Max: 10, Default: 11.0},
		},
	}
	if err := s.Check(); err == nil {
		t.Error("expected error for out-of-range default")
	}
}

func TestCheck_RejectsDuplicateField(t *testing.T) {
	s := schema.OutputSchema{
		Name: "dup",
		Fields: []schema.FieldSpec{
			{Name: "a", Kind: schema.KindString, Default: "x"},
			{Name: "a", Kind: schema.KindString, Default: "y"},
		},
	}
	if err := s.Check(); err == nil {
		t.Error("expected error for duplicate field")
	}
}

// ─── Numbers ──────────────────────────────────────────────────────────────────

func TestRepair_RiskScore(t *testing.T) {
	tests := []struct {
		name       string
		in         any
		want       float64
		wantReason string
	}{
		{"in range int", 7, 7, ""},
		{"in range json number", json.Number("7"), 7, ""},
		{"lower bound", 0.0, 0, ""},
		{"upper bound", 10.0, 10, ""},
		{"above range replaced not clamped", 15.0, 5, schema.ReasonOutOfRange},
		{"negative replaced", -1.0, 5, schema.ReasonOutOfRange},
		{"numeric string coerced", "7", 7, ""},
		{"non-numeric string", "high", 5, schema.ReasonWrongType},
		{"bool", true, 5, schema.ReasonWrongType},
		{"object", map[string]any{"v": 1}, 5, schema.ReasonWrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, repairs := schema.FewShotIndicator.Repair(map[string]any{"risk_score": tt.in})
			if got := out["risk_score"]; got != tt.want {
				t.Errorf("risk_score = %v, want %v", got, tt.want)
			}
			if got := reasons(repairs)["risk_score"]; got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

// ─── Enums ────────────────────────────────────────────────────────────────────

func TestRepair_RiskLevel(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"High", "High"},
		{"high", "High"},
		{" LOW ", "Low"},
		{"Indeterminate", "Indeterminate"},
		{"Severe", "Indeterminate"},
		{"", "Indeterminate"},
		{3.0, "Indeterminate"},
		{nil, "Indeterminate"},
	}
	for _, tt := range tests {
		out, _ := schema.ZeroShotRisk.Repair(map[string]any{"risk_level": tt.in, "reason": "r"})
		if got := out["risk_level"]; got != tt.want {
			t.Errorf("in=%#v: risk_level = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRepair_ConfidenceLevelFallback(t *testing.T) {
	out, repairs := schema.FewShotIndicator.Repair(map[string]any{"confidence_level": "Very High"})
	if out["confidence_level"] != "Medium" {
		t.Errorf("confidence_level = %v, want Medium", out["confidence_level"])
	}
	if reasons(repairs)["confidence_level"] != schema.ReasonNotInEnum {
		t.Errorf("expected not_in_enum repair, got %+v", repairs)
	}
}

// ─── Strings ──────────────────────────────────────────────────────────────────

func TestRepair_StringCoercion(t *testing.T) {
	out, repairs := schema.ZeroShotRisk.Repair(map[string]any{"risk_level": "Low", "reason": 42.0})
	if out["reason"] != "42" {
		t.Errorf("reason = %#v, want \"42\"", out["reason"])
	}
	if len(repairs) != 0 {
		t.Errorf("expected no repairs, got %+v", repairs)
	}
}

func TestRepair_BlankStringUsesDefault(t *testing.T) {
	out, repairs := schema.ZeroShotRisk.Repair(map[string]any{"risk_level": "Low", "reason": "   "})
	def, _ := schema.ZeroShotRisk.Field("reason")
	if out["reason"] != def.Default {
		t.Errorf("reason = %v, want default", out["reason"])
	}
	if reasons(repairs)["reason"] != schema.ReasonEmpty {
		t.Errorf("expected empty repair, got %+v", repairs)
	}
}

func TestRepair_LongStringTruncated(t *testing.T) {
	s := schema.OutputSchema{
		Name:   "short",
		Fields: []schema.FieldSpec{{Name: "note", Kind: schema.KindString, MaxLength: 3, Default: "n/a"}},
	}
	out, repairs := s.Repair(map[string]any{"note": "héllo"})
	if out["note"] != "hél" {
		t.Errorf("note = %q, want %q", out["note"], "hél")
	}
	if reasons(repairs)["note"] != schema.ReasonTruncated {
		t.Errorf("expected truncated repair, got %+v", repairs)
	}
}

// ─── Lists ────────────────────────────────────────────────────────────────────

func TestRepair_IndicatorsTruncatedToFive(t *testing.T) {
	in := []any{"a", "b", "c", "d", "e", "f", "g", "h"}
	out, repairs := schema.FewShotIndicator.Repair(map[string]any{"indicators": in})

	want := []string{"a", "b", "c", "d", "e"}
	if !reflect.DeepEqual(out["indicators"], want) {
		t.Errorf("indicators = %v, want %v", out["indicators"], want)
	}
	if reasons(repairs)["indicators"] != schema.ReasonTruncated {
		t.Errorf("expected truncated repair, got %+v", repairs)
	}
}

func TestRepair_IndicatorsPlaceholder(t *testing.T) {
	def, _ := schema.FewShotIndicator.Field("indicators")
	for _, in := range []any{nil, []any{}, "just a string", []any{"", "  ", map[string]any{}}} {
		out, _ := schema.FewShotIndicator.Repair(map[string]any{"indicators": in})
		if !reflect.DeepEqual(out["indicators"], def.Default) {
			t.Errorf("in=%#v: indicators = %v, want placeholder", in, out["indicators"])
		}
	}
}

func TestRepair_IndicatorsDropBlankItems(t *testing.T) {
	out, repairs := schema.FewShotIndicator.Repair(map[string]any{"indicators": []any{"fatigue", "", 3.0}})
	want := []string{"fatigue", "3"}
	if !reflect.DeepEqual(out["indicators"], want) {
		t.Errorf("indicators = %v, want %v", out["indicators"], want)
	}
	if _, ok := reasons(repairs)["indicators"]; !ok {
		t.Errorf("expected an indicators repair, got %+v", repairs)
	}
}

func TestRepair_DefaultsAreNotShared(t *testing.T) {
	a := schema.FewShotIndicator.Defaults()
	a["indicators"].([]string)[0] = "mutated"
	b := schema.FewShotIndicator.Defaults()
	if b["indicators"].([]string)[0] == "mutated" {
		t.Error("Defaults returned a shared slice")
	}
}

// ─── Whole-record properties ──────────────────────────────────────────────────

func TestRepair_DropsUnknownFields(t *testing.T) {
	out, _ := schema.ZeroShotRisk.Repair(map[string]any{"risk_level": "Low", "reason": "ok", "extra": 1})
	if _, ok := out["extra"]; ok {
		t.Error("unknown field survived repair")
	}
	if len(out) != 2 {
		t.Errorf("len(out) = %d, want 2", len(out))
	}
}

func TestRepair_EmptyInputRepairsEveryField(t *testing.T) {
	out, repairs := schema.FewShotIndicator.Repair(nil)
	if len(repairs) != len(schema.FewShotIndicator.Fields) {
		t.Errorf("repairs = %d, want %d", len(repairs), len(schema.FewShotIndicator.Fields))
	}
	if !reflect.DeepEqual(out, schema.FewShotIndicator.Defaults()) {
		t.Errorf("out = %v, want defaults", out)
	}
}

func TestRepair_IdempotentAndConforming(t *testing.T) {
	inputs := []map[string]any{
		nil,
		{"risk_score": 15.0, "indicators": []any{"a", "b", "c", "d", "e", "f"}, "summary": "", "confidence_level": "alta"},
		{"risk_score": "3.5", "indicators": "x", "summary": 12.0, "confidence_level": "low"},
		{"risk_score": 7, "indicators": []any{" a ", nil}, "summary": " fine ", "confidence_level": "High", "extra": true},
	}
	v, err := schema.NewValidator(schema.FewShotIndicator)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	for i, in := range inputs {
		once, _ := schema.FewShotIndicator.Repair(in)
		twice, repairs := schema.FewShotIndicator.Repair(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("input %d: not idempotent:\n once  %v\n twice %v", i, once, twice)
		}
		if len(repairs) != 0 {
			t.Errorf("input %d: second pass repaired %+v", i, repairs)
		}
		if err := v.Validate(once); err != nil {
			t.Errorf("input %d: repaired record does not conform: %v", i, err)
		}
	}
}

// ─── JSON Schema ──────────────────────────────────────────────────────────────

func TestValidator_RejectsNonConforming(t *testing.T) {
	v, err := schema.NewValidator(schema.ZeroShotRisk)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	bad := []map[string]any{
		{"risk_level": "Severe", "reason": "x"},
		{"risk_level": "Low"},
		{"risk_level": "Low", "reason": "x", "extra": 1},
	}
	for _, rec := range bad {
		if err := v.Validate(rec); err == nil {
			t.Errorf("expected %v to be rejected", rec)
		}
	}
}

func TestJSONSchema_ListsRequiredFieldsInOrder(t *testing.T) {
	doc := schema.FewShotIndicator.JSONSchema()
	want := []string{"risk_score", "indicators", "summary", "confidence_level"}
	if !reflect.DeepEqual(doc["required"], want) {
		t.Errorf("required = %v, want %v", doc["required"], want)
	}
}
