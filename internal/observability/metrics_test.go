package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/v1/recs/42", "/api/v1/recs/{id}"},
		{"/api/v1/recs/42/defer", "/api/v1/recs/{id}/defer"},
		{"/api/v1/recs", "/api/v1/recs"},
		{"/healthz", "/healthz"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordRateLimitAllowed()
	m.RecordRateLimitRejected()
	m.RecordOutreachRun(1, 2, 3)
	m.RecordNotification(true)
	m.RecordNotificationDropped()
}

func TestMetricsHandlerOutput(t *testing.T) {
	m := NewMetrics(MetricsConfig{Namespace: "postventa", Version: "test"})
	m.RecordHTTPRequest("GET", "/api/v1/recs/7", 200, 15*time.Millisecond)
	m.RecordOutreachRun(2, 1, 0)
	m.RecordNotification(true)
	m.RecordNotificationDropped()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`postventa_info{version="test"} 1`,
		`postventa_http_requests_total{method="GET",path="/api/v1/recs/{id}",status="200"} 1`,
		"postventa_outreach_runs_total 1",
		`postventa_outreach_recommendations_total{outcome="generated"} 2`,
		`postventa_notifications_total{outcome="dropped"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetricsMiddlewareRecordsStatus(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	h := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/recs", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected handler status preserved, got %d", rr.Code)
	}

	out := httptest.NewRecorder()
	m.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(out.Body.String(), `status="418"`) {
		t.Error("expected recorded 418 in metrics output")
	}
}
