package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/nyashahama/multimodal-risk-engine/internal/engine"
	"github.com/nyashahama/multimodal-risk-engine/internal/schema"
	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Analysis is one persisted engine run. The image itself is not stored; only
// its digest and size.
type Analysis struct {
	ID               uuid.UUID       `json:"id"`
	Strategy         string          `json:"strategy"`
	Outcome          string          `json:"outcome"`
	Success          bool            `json:"success"`
	ParseError       bool            `json:"parse_error"`
	ParseErrorDetail string          `json:"parse_error_detail,omitempty"`
	ValidationFailed bool            `json:"validation_failed"`
	Error            string          `json:"error,omitempty"`
	RawResponse      *string         `json:"raw_response,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	OriginalResult   json.RawMessage `json:"original_result,omitempty"`
	Metadata         json.RawMessage `json:"metadata"`
	Repairs          []schema.Repair `json:"repairs,omitempty"`
	ImageSHA256      string          `json:"image_sha256"`
	ImageBytes       int             `json:"image_bytes"`
	ProcessingTime   float64         `json:"processing_time"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("store: analysis not found")

	// ErrDuplicate is returned by Save when the id was already recorded.
	ErrDuplicate = errors.New("store: analysis already recorded")
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const uniqueViolation = "23505"

// ─── CONSTRUCTION ─────────────────────────────────────────────────────────────

// FromResult converts an engine result and its inputs into an Analysis.
func FromResult(res engine.Result, md strategy.Metadata, image []byte) (Analysis, error) {
	a := Analysis{
		ID:               res.ID,
		Strategy:         res.Strategy,
		Outcome:          string(res.Outcome),
		Success:          res.Success,
		ParseError:       res.ParseError,
		ParseErrorDetail: res.ParseErrorDetail,
		ValidationFailed: res.ValidationFailed,
		Error:            res.Error,
		RawResponse:      res.RawResponse,
		Repairs:          res.Repairs,
		ImageBytes:       len(image),
		ProcessingTime:   res.ProcessingTime,
		CreatedAt:        res.CreatedAt,
	}

	sum := sha256.Sum256(image)
	a.ImageSHA256 = hex.EncodeToString(sum[:])

	var err error
	if a.Metadata, err = json.Marshal(md); err != nil {
		return Analysis{}, fmt.Errorf("store: marshal metadata: %w", err)
	}
	if res.Fields != nil {
		if a.Result, err = json.Marshal(res.Fields); err != nil {
			return Analysis{}, fmt.Errorf("store: marshal result: %w", err)
		}
	}
	if res.OriginalFields != nil {
		if a.OriginalResult, err = json.Marshal(res.OriginalFields); err != nil {
			return Analysis{}, fmt.Errorf("store: marshal original result: %w", err)
		}
	}
	return a, nil
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

const insertAnalysis = `
INSERT INTO analyses (
    id, strategy, outcome, success, parse_error, validation_failed,
    error_message, raw_response, result, original_result, metadata,
    image_sha256, image_bytes, processing_time, created_at, parse_error_detail
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

const insertRepair = `
INSERT INTO analysis_repairs (analysis_id, position, field, reason, original)
VALUES ($1, $2, $3, $4, $5)`

// Save writes the analysis and its repairs atomically.
func (s *Store) Save(ctx context.Context, a Analysis) error {
	return s.withTx(ctx, func(ctx context.Context, q execQuerier) error {
		_, err := q.ExecContext(ctx, insertAnalysis,
			a.ID,
			a.Strategy,
			a.Outcome,
			a.Success,
			a.ParseError,
			a.ValidationFailed,
			nullString(a.Error),
			nullStringPtr(a.RawResponse),
			nullJSON(a.Result),
			nullJSON(a.OriginalResult),
			nullJSON(a.Metadata),
			a.ImageSHA256,
			a.ImageBytes,
			a.ProcessingTime,
			a.CreatedAt,
			nullString(a.ParseErrorDetail),
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return ErrDuplicate
			}
			return fmt.Errorf("store: insert analysis: %w", err)
		}

		for i, r := range a.Repairs {
			original, err := marshalOriginal(r.Original)
			if err != nil {
				return fmt.Errorf("store: marshal repair %s: %w", r.Field, err)
			}
			if _, err := q.ExecContext(ctx, insertRepair, a.ID, i, r.Field, r.Reason, original); err != nil {
				return fmt.Errorf("store: insert repair %s: %w", r.Field, err)
			}
		}
		return nil
	})
}

const analysisColumns = `
    id, strategy, outcome, success, parse_error, validation_failed,
    error_message, raw_response, result, original_result, metadata,
    image_sha256, image_bytes, processing_time, created_at, parse_error_detail`

// Get loads one analysis with its repairs.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Analysis, error) {
	row := s.pool.QueryRowContext(ctx, `SELECT`+analysisColumns+` FROM analyses WHERE id = $1`, id)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, fmt.Errorf("store: get analysis: %w", err)
	}

	repairs, err := s.repairs(ctx, s.pool, id)
	if err != nil {
		return Analysis{}, err
	}
	a.Repairs = repairs
	return a, nil
}

// ListRecent returns the newest analyses first, optionally filtered by
// strategy. Repairs are not loaded.
func (s *Store) ListRecent(ctx context.Context, strategyName string, limit int) ([]Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `SELECT` + analysisColumns + ` FROM analyses`
	args := []any{}
	if strategyName != "" {
		query += ` WHERE strategy = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, strategyName, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan analysis: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list analyses: %w", err)
	}
	return out, nil
}

func (s *Store) repairs(ctx context.Context, q execQuerier, id uuid.UUID) ([]schema.Repair, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT field, reason, original FROM analysis_repairs WHERE analysis_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("store: list repairs: %w", err)
	}
	defer rows.Close()

	var out []schema.Repair
	for rows.Next() {
		var (
			r        schema.Repair
			original pqtype.NullRawMessage
		)
		if err := rows.Scan(&r.Field, &r.Reason, &original); err != nil {
			return nil, fmt.Errorf("store: scan repair: %w", err)
		}
		if original.Valid {
			var v any
			if err := json.Unmarshal(original.RawMessage, &v); err == nil {
				r.Original = v
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── HELPERS ──────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner) (Analysis, error) {
	var (
		a                        Analysis
		errMsg, raw, parseDetail sql.NullString
		result, original, mdJSON pqtype.NullRawMessage
	)
	err := row.Scan(
		&a.ID,
		&a.Strategy,
		&a.Outcome,
		&a.Success,
		&a.ParseError,
		&a.ValidationFailed,
		&errMsg,
		&raw,
		&result,
		&original,
		&mdJSON,
		&a.ImageSHA256,
		&a.ImageBytes,
		&a.ProcessingTime,
		&a.CreatedAt,
		&parseDetail,
	)
	if err != nil {
		return Analysis{}, err
	}

	a.Error = errMsg.String
	a.ParseErrorDetail = parseDetail.String
	if raw.Valid {
		a.RawResponse = &raw.String
	}
	if result.Valid {
		a.Result = result.RawMessage
	}
	if original.Valid {
		a.OriginalResult = original.RawMessage
	}
	a.Metadata = json.RawMessage(`{}`)
	if mdJSON.Valid {
		a.Metadata = mdJSON.RawMessage
	}
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullJSON(b json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: b, Valid: len(b) > 0}
}

func marshalOriginal(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: b, Valid: true}, nil
}
