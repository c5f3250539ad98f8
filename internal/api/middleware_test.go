package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"postventa/internal/observability"
)

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	var seen string
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}), RequestIDMiddleware())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	got := rr.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("expected a generated request id header")
	}
	if seen != got {
		t.Errorf("context id %q does not match header %q", seen, got)
	}
}

func TestRequestIDMiddlewarePreservesValidID(t *testing.T) {
	h := ApplyMiddlewares(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), RequestIDMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123.DEF")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "abc-123.DEF" {
		t.Errorf("expected caller id preserved, got %q", got)
	}
}

func TestRequestIDMiddlewareReplacesInvalidID(t *testing.T) {
	h := ApplyMiddlewares(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), RequestIDMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces!")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	got := rr.Header().Get("X-Request-ID")
	if got == "" || got == "bad id with spaces!" {
		t.Errorf("expected a fresh id, got %q", got)
	}
}

func TestSanitizeRequestID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc-123", "abc-123"},
		{"  abc  ", "abc"},
		{"", ""},
		{"has space", ""},
		{"semi;colon", ""},
		{string(make([]byte, 100)), ""},
	}
	for _, tt := range tests {
		if got := sanitizeRequestID(tt.in); got != tt.want {
			t.Errorf("sanitizeRequestID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, Burst: 2}
	logger := observability.NewLogger(observability.Config{Level: "error", Format: "text"})
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimitMiddleware(cfg, logger))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/recs", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
		if i < 2 && last.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, last.Code)
		}
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	// A different client gets its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recs", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("second client: expected 200, got %d", rr.Code)
	}
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimitMiddleware(RateLimitConfig{}, nil))

	for i := 0; i < 50; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
}

func TestLoggingMiddlewareRecoversPanic(t *testing.T) {
	logger := observability.NewLogger(observability.Config{Level: "error", Format: "text"})
	h := ApplyMiddlewares(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), LoggingMiddleware(logger))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/recs", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rr.Code)
	}
}
