package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
)

// ─── GET /strategies ──────────────────────────────────────────────────────────

type strategiesResponse struct {
	AvailableStrategies map[string]string `json:"available_strategies"`
	Total               int               `json:"total"`
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	list := s.engine.ListStrategies()
	respond(w, http.StatusOK, strategiesResponse{
		AvailableStrategies: list,
		Total:               len(list),
	})
}

// ─── GET /strategies/{name}/schema ────────────────────────────────────────────

// handleStrategySchema returns the JSON Schema document for a strategy's
// output record.
func (s *Server) handleStrategySchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	sch, ok := s.engine.Schema(name)
	if !ok {
		respondErr(w, http.StatusNotFound, s.engine.NotFoundMessage(name))
		return
	}
	respond(w, http.StatusOK, sch.JSONSchema())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
