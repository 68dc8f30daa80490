package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wildwatch/internal/logger"
	"wildwatch/internal/metrics"

	"github.com/gorilla/mux"
)

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

// ========================================
// CORS Tests
// ========================================

func TestCORSMiddleware_Wildcard(t *testing.T) {
	handler := CORSMiddleware([]string{"*"})(okHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodPost, "/process_frame", nil)
	req.Header.Set("Origin", "http://example.org")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	handler := CORSMiddleware([]string{"*"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/process_video", nil)
	req.Header.Set("Origin", "http://example.org")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if called {
		t.Error("Preflight should not reach the wrapped handler")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("Expected POST in allowed methods, got %q", rec.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestCORSMiddleware_RestrictedOrigins(t *testing.T) {
	handler := CORSMiddleware([]string{"http://allowed.local"})(okHandler(http.StatusOK))

	tests := []struct {
		origin   string
		expected string
	}{
		{"http://allowed.local", "http://allowed.local"},
		{"http://other.local", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.expected {
			t.Errorf("Origin %q: expected %q, got %q", tt.origin, tt.expected, got)
		}
	}
}

// ========================================
// Logging Tests
// ========================================

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusBadRequest, "INFO"},
		{http.StatusInternalServerError, "WARNING"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		handler := LoggingMiddleware(logger.NewWriterLogger(&buf))(okHandler(tt.status))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		line := buf.String()
		if !strings.Contains(line, tt.level) || !strings.Contains(line, "GET /healthz") {
			t.Errorf("Status %d: unexpected log line %q", tt.status, line)
		}
	}
}

// ========================================
// Metrics Tests
// ========================================

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := metrics.New(nil)

	router := mux.NewRouter()
	router.Use(MetricsMiddleware(m))
	router.Handle("/api/runs/{id}", okHandler(http.StatusNotFound)).Methods(http.MethodGet)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))

	out := httptest.NewRecorder()
	m.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(out.Body)

	expected := `wildwatch_requests_total{endpoint="api/runs/{id}",status="404"} 1`
	if !strings.Contains(string(body), expected) {
		t.Errorf("Expected %q in metrics output:\n%s", expected, body)
	}
}
