package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"wildwatch/internal/config"
	"wildwatch/internal/dto"
	"wildwatch/internal/logger"
	"wildwatch/internal/service"
)

const noFrameMessage = "No frame data provided"

// ProcessFrameHandler runs detection on a single base64 image from a JSON body.
func ProcessFrameHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		var req dto.FrameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Frame exceeds upload limit")
				return
			}
			writeError(w, http.StatusBadRequest, noFrameMessage)
			return
		}
		if strings.TrimSpace(req.Frame) == "" {
			writeError(w, http.StatusBadRequest, noFrameMessage)
			return
		}

		result, err := manager.ProcessFrame(r.Context(), req.Frame)
		if err != nil {
			if errors.Is(err, service.ErrNoFrame) {
				writeError(w, http.StatusBadRequest, noFrameMessage)
				return
			}
			logger.Error("Frame processing failed: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := writeJSON(w, http.StatusOK, result); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}
