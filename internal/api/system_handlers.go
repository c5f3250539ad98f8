package api

import (
	"context"
	"net/http"
)

// RegisterSystemRoutes wires health, readiness and metrics endpoints.
func (s *Server) RegisterSystemRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ReadinessResponse is the JSON body of the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// handleReady verifies that dependencies are reachable, unlike
// /healthz which only reports liveness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	ctx := r.Context()
	checks := make(map[string]string)
	status := "ok"

	type pinger interface {
		Ping(ctx context.Context) error
	}
	var err error
	if hc, ok := s.store.(pinger); ok {
		err = hc.Ping(ctx)
	} else {
		_, err = s.store.ListActiveProducts(ctx)
	}
	if err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		s.logger.ErrorContext(ctx, "readiness check failed", appendRequestID(ctx, []any{
			"check", "database",
			"error", err.Error(),
		})...)
	} else {
		checks["database"] = "ok"
	}

	resp := ReadinessResponse{Status: status, Checks: checks}
	if status == "ok" {
		writeJSON(w, http.StatusOK, resp)
	} else {
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}
