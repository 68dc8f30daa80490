package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics on a private registry.
type Metrics struct {
	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	framesProcessed prometheus.Counter
	detections      *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a Metrics instance. detectorsInUse is sampled on every scrape.
func New(detectorsInUse func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildwatch_requests_total",
			Help: "Processing requests by endpoint and HTTP status",
		}, []string{"endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wildwatch_processing_seconds",
			Help:    "Time spent processing a request",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"endpoint"}),
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wildwatch_frames_processed_total",
			Help: "Frames passed through the detector",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wildwatch_detections_total",
			Help: "Detections by label",
		}, []string{"label"}),
	}

	m.registry.MustRegister(m.requests, m.duration, m.framesProcessed, m.detections)

	if detectorsInUse != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "wildwatch_detectors_in_use",
				Help: "Detectors currently acquired from the pool",
			},
			func() float64 { return float64(detectorsInUse()) },
		))
	}

	return m
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// AddFrames counts frames that went through inference.
func (m *Metrics) AddFrames(n int) {
	m.framesProcessed.Add(float64(n))
}

// AddDetection counts one detection of label.
func (m *Metrics) AddDetection(label string) {
	m.detections.WithLabelValues(label).Inc()
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
