package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"postventa/internal/domain"
	"postventa/internal/observability"
	"postventa/internal/storage"
)

// failingStore simulates an unreachable database.
type failingStore struct {
	storage.Store
}

func (failingStore) Ping(context.Context) error { return errors.New("connection refused") }

func (failingStore) ListActiveProducts(context.Context) ([]domain.Product, error) {
	return nil, errors.New("connection refused")
}

func TestHealthEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	srv := NewServer(mux, storage.NewMemoryStore(), nil, nil)
	srv.RegisterSystemRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestReadyEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	srv := NewServer(mux, storage.NewMemoryStore(), nil, nil)
	srv.RegisterSystemRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ReadinessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode readiness: %v", err)
	}
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("expected healthy response, got %+v", resp)
	}
}

func TestReadyEndpointUnhealthy(t *testing.T) {
	mux := http.NewServeMux()
	logger := observability.NewLogger(observability.Config{Level: "error", Format: "text"})
	srv := NewServer(mux, failingStore{}, logger, nil)
	srv.RegisterSystemRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var resp ReadinessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode readiness: %v", err)
	}
	if resp.Status != "unhealthy" || resp.Checks["database"] != "error" {
		t.Errorf("expected unhealthy response, got %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	metrics := observability.NewMetrics(observability.DefaultMetricsConfig())
	srv := NewServer(mux, storage.NewMemoryStore(), nil, metrics)
	srv.RegisterSystemRoutes()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
