package route

import (
	"net/http"

	"wildwatch/internal/config"
	"wildwatch/internal/handler"
	"wildwatch/internal/logger"
	"wildwatch/internal/metrics"
	"wildwatch/internal/middleware"
	"wildwatch/internal/repository"
	"wildwatch/internal/service"
	"wildwatch/internal/service/websocket"

	"github.com/gorilla/mux"
)

// SetupRoutes registers the processing endpoints, websocket channels, run
// history, logs, metrics and static files, and wraps the router with
// CORS and request logging.
func SetupRoutes(manager *service.Manager, hubService *websocket.HubService, sessions *handler.StreamSessions,
	runRepo repository.RunRepository, m *metrics.Metrics, cfg *config.Config, logger *logger.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware(m))

	// Processing endpoints
	router.HandleFunc("/process_video", handler.ProcessVideoHandler(manager, cfg, logger)).Methods(http.MethodPost)
	router.HandleFunc("/process_frame", handler.ProcessFrameHandler(manager, cfg, logger)).Methods(http.MethodPost)

	// WebSocket endpoints
	router.HandleFunc("/api/progress", handler.ProgressWebsocketHandler(hubService, logger)).Methods(http.MethodGet)
	router.HandleFunc("/api/stream", handler.StreamWebsocketHandler(manager, sessions, cfg.MaxUploadSize, logger)).Methods(http.MethodGet)

	// Run history
	router.HandleFunc("/api/runs", handler.GetRunsHandler(runRepo, logger)).Methods(http.MethodGet)
	router.HandleFunc("/api/runs", handler.ClearRunsHandler(runRepo, logger)).Methods(http.MethodDelete)
	router.HandleFunc("/api/runs/{id}", handler.GetRunHandler(runRepo, logger)).Methods(http.MethodGet)

	// Log endpoints
	router.HandleFunc("/logs/{level:info|warning|error}", handler.ShowLogsHandler(cfg)).Methods(http.MethodGet)
	router.HandleFunc("/logs/{level:info|warning|error}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Operational endpoints
	router.HandleFunc("/healthz", handler.HealthHandler(manager)).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	// Static files
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))
	router.HandleFunc("/", handler.IndexHandler(cfg)).Methods(http.MethodGet)

	// Apply middleware
	return middleware.LoggingMiddleware(logger)(middleware.CORSMiddleware(cfg.AllowedOrigins)(router))
}
