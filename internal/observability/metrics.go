package observability

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsConfig holds configuration for the metrics subsystem.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Version   string
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true, Namespace: "postventa", Version: "dev"}
}

// MetricsConfigFromEnv creates a MetricsConfig from environment variables.
// POSTVENTA_METRICS_ENABLED: true/false (default: true)
// APP_VERSION: version string (default: dev)
func MetricsConfigFromEnv() MetricsConfig {
	cfg := DefaultMetricsConfig()
	if v := os.Getenv("POSTVENTA_METRICS_ENABLED"); v != "" {
		cfg.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		cfg.Version = v
	}
	return cfg
}

// Metrics collects application metrics. All methods are nil-safe so
// components can carry a disabled (*Metrics)(nil) without branching.
type Metrics struct {
	mu        sync.RWMutex
	namespace string
	version   string

	// HTTP request counters: key = "method:path:status"
	httpRequestCounts map[string]*atomic.Int64

	// HTTP request durations: key = "method:path"
	httpDurations  map[string]*durationCollector
	httpDurationMu sync.RWMutex

	rateLimitAllowed  atomic.Int64
	rateLimitRejected atomic.Int64

	// Outreach scheduler counters.
	outreachRuns      atomic.Int64
	outreachGenerated atomic.Int64
	outreachSkipped   atomic.Int64
	outreachFailures  atomic.Int64

	// Notification queue counters.
	notificationsSent    atomic.Int64
	notificationsFailed  atomic.Int64
	notificationsDropped atomic.Int64
}

// durationCollector keeps a sliding window of duration samples for
// quantile computation.
type durationCollector struct {
	mu      sync.Mutex
	samples []float64
	maxSize int
}

func newDurationCollector(maxSize int) *durationCollector {
	return &durationCollector{samples: make([]float64, 0, maxSize), maxSize: maxSize}
}

func (d *durationCollector) add(duration time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.samples) >= d.maxSize {
		copy(d.samples, d.samples[1:])
		d.samples = d.samples[:len(d.samples)-1]
	}
	d.samples = append(d.samples, duration.Seconds())
}

func (d *durationCollector) quantile(q float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(d.samples))
	copy(sorted, d.samples)
	sort.Float64s(sorted)

	idx := q * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := idx - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

func (d *durationCollector) sumAndCount() (float64, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var total float64
	for _, s := range d.samples {
		total += s
	}
	return total, len(d.samples)
}

// NewMetrics creates a new Metrics collector.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		namespace:         cfg.Namespace,
		version:           cfg.Version,
		httpRequestCounts: make(map[string]*atomic.Int64),
		httpDurations:     make(map[string]*durationCollector),
	}
}

// RecordHTTPRequest records one HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	normalizedPath := normalizePath(path)

	countKey := fmt.Sprintf("%s:%s:%d", method, normalizedPath, statusCode)
	m.mu.Lock()
	counter, ok := m.httpRequestCounts[countKey]
	if !ok {
		counter = &atomic.Int64{}
		m.httpRequestCounts[countKey] = counter
	}
	m.mu.Unlock()
	counter.Add(1)

	durationKey := fmt.Sprintf("%s:%s", method, normalizedPath)
	m.httpDurationMu.Lock()
	collector, ok := m.httpDurations[durationKey]
	if !ok {
		collector = newDurationCollector(1000)
		m.httpDurations[durationKey] = collector
	}
	m.httpDurationMu.Unlock()
	collector.add(duration)
}

// RecordRateLimitAllowed increments the allowed-request counter.
func (m *Metrics) RecordRateLimitAllowed() {
	if m != nil {
		m.rateLimitAllowed.Add(1)
	}
}

// RecordRateLimitRejected increments the rejected-request counter.
func (m *Metrics) RecordRateLimitRejected() {
	if m != nil {
		m.rateLimitRejected.Add(1)
	}
}

// RecordOutreachRun records one completed scheduler run.
func (m *Metrics) RecordOutreachRun(generated, skipped, failed int) {
	if m == nil {
		return
	}
	m.outreachRuns.Add(1)
	m.outreachGenerated.Add(int64(generated))
	m.outreachSkipped.Add(int64(skipped))
	m.outreachFailures.Add(int64(failed))
}

// RecordNotification records a notification dispatch outcome.
func (m *Metrics) RecordNotification(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.notificationsSent.Add(1)
	} else {
		m.notificationsFailed.Add(1)
	}
}

// RecordNotificationDropped records an alert dropped by a full queue.
func (m *Metrics) RecordNotificationDropped() {
	if m != nil {
		m.notificationsDropped.Add(1)
	}
}

// normalizePath replaces numeric path segments with {id} to keep metric
// cardinality bounded.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if _, err := strconv.ParseInt(part, 10, 64); err == nil && part != "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Handler returns an http.Handler serving Prometheus-format metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.writePrometheusMetrics(w)
	})
}

func (m *Metrics) writePrometheusMetrics(w http.ResponseWriter) {
	fmt.Fprintf(w, "# HELP %s_info Application information\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_info gauge\n", m.namespace)
	fmt.Fprintf(w, "%s_info{version=%q} 1\n\n", m.namespace, m.version)

	fmt.Fprintf(w, "# HELP %s_http_requests_total Total number of HTTP requests\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_http_requests_total counter\n", m.namespace)
	m.mu.RLock()
	keys := make([]string, 0, len(m.httpRequestCounts))
	for k := range m.httpRequestCounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		counter := m.httpRequestCounts[key]
		parts := strings.SplitN(key, ":", 3)
		if len(parts) == 3 {
			fmt.Fprintf(w, "%s_http_requests_total{method=%q,path=%q,status=%q} %d\n",
				m.namespace, parts[0], parts[1], parts[2], counter.Load())
		}
	}
	m.mu.RUnlock()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP %s_http_request_duration_seconds HTTP request duration in seconds\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_http_request_duration_seconds summary\n", m.namespace)
	m.httpDurationMu.RLock()
	durationKeys := make([]string, 0, len(m.httpDurations))
	for k := range m.httpDurations {
		durationKeys = append(durationKeys, k)
	}
	sort.Strings(durationKeys)
	for _, key := range durationKeys {
		collector := m.httpDurations[key]
		parts := strings.SplitN(key, ":", 2)
		if len(parts) == 2 {
			method, path := parts[0], parts[1]
			for _, q := range []float64{0.5, 0.9, 0.99} {
				fmt.Fprintf(w, "%s_http_request_duration_seconds{method=%q,path=%q,quantile=\"%.2f\"} %.6f\n",
					m.namespace, method, path, q, collector.quantile(q))
			}
			sum, count := collector.sumAndCount()
			fmt.Fprintf(w, "%s_http_request_duration_seconds_sum{method=%q,path=%q} %.6f\n",
				m.namespace, method, path, sum)
			fmt.Fprintf(w, "%s_http_request_duration_seconds_count{method=%q,path=%q} %d\n",
				m.namespace, method, path, count)
		}
	}
	m.httpDurationMu.RUnlock()
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP %s_rate_limit_requests_total Total rate limit decisions\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_rate_limit_requests_total counter\n", m.namespace)
	fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"allowed\"} %d\n", m.namespace, m.rateLimitAllowed.Load())
	fmt.Fprintf(w, "%s_rate_limit_requests_total{status=\"rejected\"} %d\n\n", m.namespace, m.rateLimitRejected.Load())

	fmt.Fprintf(w, "# HELP %s_outreach_runs_total Completed outreach scheduler runs\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_outreach_runs_total counter\n", m.namespace)
	fmt.Fprintf(w, "%s_outreach_runs_total %d\n\n", m.namespace, m.outreachRuns.Load())

	fmt.Fprintf(w, "# HELP %s_outreach_recommendations_total Outreach generation outcomes\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_outreach_recommendations_total counter\n", m.namespace)
	fmt.Fprintf(w, "%s_outreach_recommendations_total{outcome=\"generated\"} %d\n", m.namespace, m.outreachGenerated.Load())
	fmt.Fprintf(w, "%s_outreach_recommendations_total{outcome=\"skipped\"} %d\n", m.namespace, m.outreachSkipped.Load())
	fmt.Fprintf(w, "%s_outreach_recommendations_total{outcome=\"failed\"} %d\n\n", m.namespace, m.outreachFailures.Load())

	fmt.Fprintf(w, "# HELP %s_notifications_total Notification dispatch outcomes\n", m.namespace)
	fmt.Fprintf(w, "# TYPE %s_notifications_total counter\n", m.namespace)
	fmt.Fprintf(w, "%s_notifications_total{outcome=\"sent\"} %d\n", m.namespace, m.notificationsSent.Load())
	fmt.Fprintf(w, "%s_notifications_total{outcome=\"failed\"} %d\n", m.namespace, m.notificationsFailed.Load())
	fmt.Fprintf(w, "%s_notifications_total{outcome=\"dropped\"} %d\n", m.namespace, m.notificationsDropped.Load())
}

// MetricsMiddleware returns an HTTP middleware that records request
// metrics. A nil Metrics disables collection.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap returns the underlying ResponseWriter for http.ResponseController.
func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
