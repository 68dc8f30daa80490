package middleware

import (
	"net/http"
	"time"

	"wildwatch/internal/logger"
)

// LoggingMiddleware writes one info line per request, or a warning for 5xx responses.
func LoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := newStatusRecorder(w)

			next.ServeHTTP(recorder, r)

			if recorder.status >= http.StatusInternalServerError {
				log.Warning("%s %s -> %d (%v)", r.Method, r.URL.Path, recorder.status, time.Since(start))
				return
			}
			log.Info("%s %s -> %d (%v)", r.Method, r.URL.Path, recorder.status, time.Since(start))
		})
	}
}
