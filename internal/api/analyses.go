package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nyashahama/multimodal-risk-engine/internal/store"
)

const errNoStore = "analysis history is not enabled"

// ─── GET /analyses ────────────────────────────────────────────────────────────

type analysesResponse struct {
	Analyses []store.Analysis `json:"analyses"`
	Total    int              `json:"total"`
}

// handleListAnalyses returns recent analyses, newest first. Query params:
// strategy (optional filter) and limit (1-100, default 20).
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondErr(w, http.StatusNotImplemented, errNoStore)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.store.ListRecent(r.Context(), r.URL.Query().Get("strategy"), limit)
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	if list == nil {
		list = []store.Analysis{}
	}
	respond(w, http.StatusOK, analysesResponse{Analyses: list, Total: len(list)})
}

// ─── GET /analyses/{id} ───────────────────────────────────────────────────────

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondErr(w, http.StatusNotImplemented, errNoStore)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, http.StatusBadRequest, "invalid analysis id")
		return
	}

	a, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondErr(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, a)
}
