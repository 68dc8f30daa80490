package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandler_ExposesCounters(t *testing.T) {
	inUse := 2
	m := New(func() int { return inUse })

	m.ObserveRequest("process_frame", http.StatusOK, 120*time.Millisecond)
	m.ObserveRequest("process_frame", http.StatusBadRequest, time.Millisecond)
	m.AddFrames(30)
	m.AddDetection("Poacher")
	m.AddDetection("Poacher")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	expected := []string{
		`wildwatch_requests_total{endpoint="process_frame",status="200"} 1`,
		`wildwatch_requests_total{endpoint="process_frame",status="400"} 1`,
		`wildwatch_frames_processed_total 30`,
		`wildwatch_detections_total{label="Poacher"} 2`,
		`wildwatch_detectors_in_use 2`,
		`wildwatch_processing_seconds_count{endpoint="process_frame"} 2`,
	}
	for _, e := range expected {
		if !strings.Contains(text, e) {
			t.Errorf("Expected %q in metrics output", e)
		}
	}
}

func TestNew_WithoutPoolGauge(t *testing.T) {
	m := New(nil)

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "wildwatch_detectors_in_use" {
			t.Error("Gauge should not be registered without a sampler")
		}
	}
}
