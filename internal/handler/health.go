package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"wildwatch/internal/config"
	"wildwatch/internal/service"
)

// HealthHandler reports liveness and the number of loaded detectors.
func HealthHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"detectors": manager.Pool().Size(),
		})
	}
}

// IndexHandler serves index.html from the static directory.
func IndexHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := filepath.Join(cfg.StaticDirectory, "index.html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}
