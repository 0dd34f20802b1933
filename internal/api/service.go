package api

import (
	"net/http"
	"time"
)

// ─── GET / ────────────────────────────────────────────────────────────────────

type rootResponse struct {
	Service    string   `json:"service"`
	Version    string   `json:"version"`
	Env        string   `json:"env"`
	Strategies []string `json:"strategies"`
	Endpoints  []string `json:"endpoints"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, rootResponse{
		Service:    "multimodal risk inference engine",
		Version:    Version,
		Env:        s.cfg.Env,
		Strategies: sortedKeys(s.engine.ListStrategies()),
		Endpoints: []string{
			"GET /health",
			"GET /strategies",
			"GET /strategies/{name}/schema",
			"POST /analyze",
			"GET /analyses",
			"GET /analyses/{id}",
			"GET /metrics",
		},
	})
}

// ─── GET /health ──────────────────────────────────────────────────────────────

type healthResponse struct {
	Status         string    `json:"status"`
	ModelAvailable bool      `json:"model_available"`
	LastError      string    `json:"last_error,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`
	Timestamp      time.Time `json:"timestamp"`
}

// handleHealth reports the last backend probe. The endpoint itself always
// answers 200; "degraded" means the model backend was unreachable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "degraded",
		Timestamp: time.Now().UTC(),
	}
	if s.health != nil {
		st := s.health.Status()
		resp.ModelAvailable = st.Available
		resp.LastError = st.LastError
		resp.CheckedAt = st.CheckedAt
	}
	if resp.ModelAvailable {
		resp.Status = "healthy"
	}
	respond(w, http.StatusOK, resp)
}
