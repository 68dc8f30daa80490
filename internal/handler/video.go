package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"wildwatch/internal/config"
	"wildwatch/internal/logger"
	"wildwatch/internal/service"
)

const videoField = "video"

var errNoVideo = errors.New("no video part in request")

// ProcessVideoHandler accepts a multipart upload in the "video" field and
// returns the annotated video with per-label statistics. The part is streamed
// straight into the temp store, never buffered by the multipart parser.
func ProcessVideoHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		reader, err := r.MultipartReader()
		if err != nil {
			writeError(w, http.StatusBadRequest, "No video file provided")
			return
		}

		part, err := nextVideoPart(reader)
		if err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "Video exceeds upload limit")
				return
			}
			writeError(w, http.StatusBadRequest, "No video file provided")
			return
		}
		defer part.Close()

		result, err := manager.ProcessVideo(r.Context(), part, part.FileName())
		if err != nil {
			if isTooLarge(err) {
				writeError(w, http.StatusRequestEntityTooLarge, "Video exceeds upload limit")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		if err := writeJSON(w, http.StatusOK, result); err != nil {
			logger.Error("Error encoding JSON response: %v", err)
		}
	}
}

// nextVideoPart skips form parts until the video field.
func nextVideoPart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil, errNoVideo
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == videoField {
			return part, nil
		}
		part.Close()
	}
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}
