package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
)

// Outcome classifies a Result for logs, metrics and storage.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeDegraded       Outcome = "degraded" // parse error or whole-record validation failure
	OutcomeCallerError    Outcome = "caller_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeInternalError  Outcome = "internal_error"
)

// Result is the single value Run returns. Exactly one of Fields (success) or
// Error (failure) is set.
type Result struct {
	ID       uuid.UUID `json:"id"`
	Success  bool      `json:"success"`
	Strategy string    `json:"strategy"`
	Outcome  Outcome   `json:"outcome"`

	// Fields conforms to the strategy's output schema whenever Success is true.
	Fields      map[string]any `json:"result,omitempty"`
	RawResponse *string        `json:"raw_response,omitempty"`
	ParseError  bool           `json:"parse_error"`

	// ParseErrorDetail says why the reply could not be parsed.
	ParseErrorDetail string `json:"parse_error_detail,omitempty"`

	// ValidationFailed is set only when no field of the model's record
	// survived repair. OriginalFields then holds what the model sent.
	ValidationFailed bool            `json:"validation_failed"`
	ValidationError  string          `json:"validation_error,omitempty"`
	OriginalFields   map[string]any  `json:"original_result,omitempty"`
	Repairs          []schema.Repair `json:"repairs,omitempty"`

	Error string `json:"error,omitempty"`

	// ProcessingTime is wall-clock seconds from Run entry to return.
	ProcessingTime float64   `json:"processing_time"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *Result) fail(outcome Outcome, msg string) {
	r.Success = false
	r.Outcome = outcome
	r.Error = msg
	r.Fields = nil
	r.ParseError = false
	r.ParseErrorDetail = ""
	r.ValidationFailed = false
	r.ValidationError = ""
	r.OriginalFields = nil
	r.Repairs = nil
}
