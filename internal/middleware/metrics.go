package middleware

import (
	"net/http"
	"strings"
	"time"

	"wildwatch/internal/metrics"

	"github.com/gorilla/mux"
)

// MetricsMiddleware records request counts and latency labelled by route template.
func MetricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := newStatusRecorder(w)

			next.ServeHTTP(recorder, r)

			m.ObserveRequest(routeName(r), recorder.status, time.Since(start))
		})
	}
}

// routeName keeps label cardinality bounded by using the route template, not the raw path.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return strings.TrimPrefix(tpl, "/")
		}
	}
	return "unmatched"
}
