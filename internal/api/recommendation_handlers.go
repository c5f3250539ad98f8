package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"postventa/internal/domain"
	"postventa/internal/outreach"
	"postventa/internal/validation"
)

// actorHeader names the back-office user on whose behalf a request
// runs. Authentication itself lives in front of this service.
const actorHeader = "X-Actor"

// RecommendationServer handles the outreach recommendation endpoints.
type RecommendationServer struct {
	srv *Server
	svc *outreach.Service
}

// NewRecommendationServer creates a RecommendationServer.
func NewRecommendationServer(srv *Server, svc *outreach.Service) *RecommendationServer {
	return &RecommendationServer{srv: srv, svc: svc}
}

// RegisterRecommendationRoutes registers all /api/v1/recs routes.
func (rs *RecommendationServer) RegisterRecommendationRoutes() {
	rs.srv.mux.HandleFunc("/api/v1/recs/generate", rs.handleGenerate)
	rs.srv.mux.HandleFunc("/api/v1/recs/candidates", rs.handleCandidates)
	rs.srv.mux.HandleFunc("/api/v1/recs/refresh", rs.handleRefresh)
	rs.srv.mux.HandleFunc("/api/v1/recs", rs.handleList)
	rs.srv.mux.HandleFunc("/api/v1/recs/", rs.handleByID)
}

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(actorHeader)); a != "" {
		return a
	}
	return "backoffice"
}

// handleGenerate builds a recommendation for one customer.
// POST /api/v1/recs/generate
func (rs *RecommendationServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rs.srv.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "use POST")
		return
	}

	var req domain.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rs.srv.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := validation.CustomerID(req.CustomerID); err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	if err := validation.TopN(req.TopN); err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}

	rec, err := rs.svc.Generate(r.Context(), req, actor(r))
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleList lists recommendations with optional filters.
// GET /api/v1/recs?page&page_size&state&due&q
func (rs *RecommendationServer) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rs.srv.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "use GET")
		return
	}

	q := r.URL.Query()
	filters := domain.RecommendationFilters{
		State:  q.Get("state"),
		Due:    q.Get("due"),
		Search: q.Get("q"),
	}
	if err := validation.State(filters.State); err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	if err := validation.DueWindow(filters.Due); err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	if pageStr := q.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil {
			filters.Page = p
		}
	}
	if psStr := q.Get("page_size"); psStr != "" {
		if ps, err := strconv.Atoi(psStr); err == nil {
			filters.PageSize = ps
		}
	}

	resp, err := rs.svc.List(r.Context(), filters)
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCandidates exposes the raw candidate signal.
// GET /api/v1/recs/candidates?customer_id=
func (rs *RecommendationServer) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rs.srv.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "use GET")
		return
	}

	var customerID int64
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			rs.srv.writeErr(r.Context(), w, http.StatusBadRequest, "invalid customer_id", "")
			return
		}
		customerID = id
	}

	resp, err := rs.svc.Candidates(r.Context(), customerID)
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh rebuilds the candidate signal on demand.
// POST /api/v1/recs/refresh
func (rs *RecommendationServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rs.srv.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "use POST")
		return
	}
	if err := rs.svc.Refresh(r.Context(), actor(r)); err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// handleByID routes GET/POST for /api/v1/recs/{id} and sub-paths.
func (rs *RecommendationServer) handleByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/recs/")
	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		rs.srv.writeErr(r.Context(), w, http.StatusBadRequest, "invalid recommendation id", "")
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rs.handleGet(w, r, id)
	case action == "defer" && r.Method == http.MethodPost:
		rs.handleDefer(w, r, id)
	case action == "discard" && r.Method == http.MethodPost:
		rs.handleDiscard(w, r, id)
	case action == "mark-sent" && r.Method == http.MethodPost:
		rs.handleMarkSent(w, r, id)
	default:
		rs.srv.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// handleGet returns a single recommendation with ordered options.
// GET /api/v1/recs/{id}
func (rs *RecommendationServer) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := rs.svc.Get(r.Context(), id)
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDefer pushes a recommendation's next action date forward.
// POST /api/v1/recs/{id}/defer
func (rs *RecommendationServer) handleDefer(w http.ResponseWriter, r *http.Request, id int64) {
	var req domain.DeferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Empty body means the minimum deferral.
		req = domain.DeferRequest{}
	}

	rec, err := rs.svc.Defer(r.Context(), id, req.Days, actor(r))
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDiscard discards a pending recommendation.
// POST /api/v1/recs/{id}/discard
func (rs *RecommendationServer) handleDiscard(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := rs.svc.Discard(r.Context(), id, actor(r))
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleMarkSent marks a pending recommendation as sent.
// POST /api/v1/recs/{id}/mark-sent
func (rs *RecommendationServer) handleMarkSent(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := rs.svc.MarkSent(r.Context(), id, actor(r))
	if err != nil {
		rs.srv.writeStoreErr(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
