package handler

import (
	"net/http"

	"wildwatch/internal/dto"
	"wildwatch/internal/logger"
	"wildwatch/internal/repository"

	"github.com/gorilla/mux"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// GetRunsHandler lists recent processing runs, newest first.
func GetRunsHandler(runRepo repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), defaultRunsLimit)
		if limit > maxRunsLimit {
			limit = maxRunsLimit
		}

		runs, err := runRepo.GetRecent(limit)
		if err != nil {
			logger.Error("Error querying runs from database: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		total, err := runRepo.Count()
		if err != nil {
			logger.Error("Error counting runs: %v", err)
			total = len(runs)
		}

		if err := writeJSON(w, http.StatusOK, dto.RunsData{Runs: runs, Total: total, Limit: limit}); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// GetRunHandler returns a single run by id.
func GetRunHandler(runRepo repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		run, err := runRepo.GetByID(id)
		if err != nil {
			logger.Error("Error loading run %s: %v", id, err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}

// ClearRunsHandler deletes the whole run history.
func ClearRunsHandler(runRepo repository.RunRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := runRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing run history: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		logger.Info("Run history cleared")
		w.WriteHeader(http.StatusNoContent)
	}
}
