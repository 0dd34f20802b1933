package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/nyashahama/multimodal-risk-engine/internal/engine"
	"github.com/nyashahama/multimodal-risk-engine/internal/store"
	"github.com/nyashahama/multimodal-risk-engine/internal/strategy"
)

const (
	maxWeightKg = 500

	// multipartOverhead is allowed on top of MaxImageBytes for the other form
	// fields and part headers.
	multipartOverhead = 1 << 20

	// saveTimeout bounds the audit write after the response has been computed.
	saveTimeout = 5 * time.Second
)

// ─── POST /analyze ────────────────────────────────────────────────────────────

// handleAnalyze validates the multipart upload, runs the requested strategy
// and returns the engine result. Every engine outcome, including transport
// and parse failures, is reported with 200; only request validation errors
// produce 4xx.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxImageBytes+multipartOverhead)
	if err := r.ParseMultipartForm(s.cfg.MaxImageBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondErr(w, http.StatusRequestEntityTooLarge, s.tooLargeMessage())
			return
		}
		respondErr(w, http.StatusBadRequest, "request must be multipart/form-data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	image, status, msg := s.readImage(r)
	if status != 0 {
		respondErr(w, status, msg)
		return
	}

	name := strings.TrimSpace(r.FormValue("strategy"))
	if name == "" {
		respondErr(w, http.StatusBadRequest, "strategy is required")
		return
	}
	if !s.engine.Has(name) {
		respondErr(w, http.StatusBadRequest, s.engine.NotFoundMessage(name))
		return
	}

	md, err := parseMetadata(r.FormValue("weight_kg"), r.FormValue("additional_metadata"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.engine.Run(r.Context(), image, md, name)
	s.record(r, res, md, image)

	respond(w, http.StatusOK, res)
}

// readImage returns the uploaded image bytes, or a non-zero status and a
// client-facing message.
func (s *Server) readImage(r *http.Request) ([]byte, int, string) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, http.StatusBadRequest, "image file is required"
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxImageBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, "could not read image"
	}
	if len(data) == 0 {
		return nil, http.StatusBadRequest, "image file is empty"
	}
	if int64(len(data)) > s.cfg.MaxImageBytes {
		return nil, http.StatusRequestEntityTooLarge, s.tooLargeMessage()
	}
	if !isImage(header, data) {
		return nil, http.StatusBadRequest, "file must be an image"
	}
	return data, 0, ""
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxImageBytes)
}

// isImage accepts the upload when either the declared part content type or
// the sniffed content type is image/*.
func isImage(header *multipart.FileHeader, data []byte) bool {
	if strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(data), "image/")
}

// parseMetadata builds the run metadata: weight_kg first, then the keys of
// additional_metadata in the order they were sent. A well-formed JSON value
// that is not an object is ignored.
func parseMetadata(weightRaw, extraRaw string) (strategy.Metadata, error) {
	weightRaw = strings.TrimSpace(weightRaw)
	if weightRaw == "" {
		return strategy.Metadata{}, errors.New("weight_kg is required")
	}
	weight, err := strconv.ParseFloat(weightRaw, 64)
	if err != nil || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return strategy.Metadata{}, errors.New("weight_kg must be a number")
	}
	if weight <= 0 || weight > maxWeightKg {
		return strategy.Metadata{}, fmt.Errorf("weight_kg must be greater than 0 and at most %d", maxWeightKg)
	}

	md := strategy.NewMetadata(strategy.Entry{Key: "weight_kg", Value: weight})

	extraRaw = strings.TrimSpace(extraRaw)
	if extraRaw == "" {
		return md, nil
	}

	var probe any
	if err := json.Unmarshal([]byte(extraRaw), &probe); err != nil {
		return strategy.Metadata{}, errors.New("additional_metadata must be valid JSON")
	}
	if _, ok := probe.(map[string]any); !ok {
		return md, nil
	}

	var extra strategy.Metadata
	if err := json.Unmarshal([]byte(extraRaw), &extra); err != nil {
		return strategy.Metadata{}, fmt.Errorf("additional_metadata: %w", err)
	}
	for _, e := range extra.Entries() {
		if e.Key == "weight_kg" {
			continue
		}
		md.Set(e.Key, e.Value)
	}
	return md, nil
}

// record persists the result when a store is configured. Failures are logged
// and never change the response.
func (s *Server) record(r *http.Request, res engine.Result, md strategy.Metadata, image []byte) {
	if s.store == nil {
		return
	}
	a, err := store.FromResult(res, md, image)
	if err != nil {
		s.logger.Error("analyze: build record", "error", err, "id", res.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), saveTimeout)
	defer cancel()

	if err := s.store.Save(ctx, a); err != nil {
		s.logger.Error("analyze: save analysis",
			"error", err,
			"id", res.ID,
			"request_id", middleware.GetReqID(r.Context()),
		)
	}
}
