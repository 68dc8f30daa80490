package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"wildwatch/internal/catalog"
	"wildwatch/internal/config"
	"wildwatch/internal/dto"
	"wildwatch/internal/logger"
	"wildwatch/internal/service"
	"wildwatch/internal/service/ai"
	"wildwatch/internal/service/storage"

	"gocv.io/x/gocv"
)

// ========================================
// Test Setup Helpers
// ========================================

type emptyDetector struct{}

func (emptyDetector) Detect(frame gocv.Mat) ([]ai.Detection, error) { return nil, nil }

func (emptyDetector) Close() error { return nil }

func setupManager(t *testing.T, cfg *config.Config) (*service.Manager, string) {
	t.Helper()

	log := logger.NewWriterLogger(io.Discard)
	tempDir := t.TempDir()

	store, err := storage.NewTempStore(tempDir, time.Hour, log)
	if err != nil {
		t.Fatalf("NewTempStore failed: %v", err)
	}
	pool, err := ai.NewPool([]ai.Detector{emptyDetector{}}, time.Second)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return service.NewManager(pool, catalog.Default(), store, nil, nil, nil, cfg, log), tempDir
}

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadSize:   1 << 20,
		OutputCodec:     "MJPG",
		OutputExtension: ".avi",
		DefaultFPS:      10,
		ProgressEvery:   10,
	}
}

// ========================================
// process_video Tests
// ========================================

func TestProcessVideoHandler_StreamsPartWithoutParsingForm(t *testing.T) {
	cfg := testConfig()
	manager, tempDir := setupManager(t, cfg)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("note", "camera trap 7")
	part, _ := writer.CreateFormFile("video", "clip.mp4")
	part.Write([]byte("not a real container"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/process_video", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	ProcessVideoHandler(manager, cfg, logger.NewWriterLogger(io.Discard))(rec, req)

	// The upload reached the pipeline, which rejects it as a video.
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	if req.MultipartForm != nil {
		t.Error("Expected the upload to be streamed, not parsed into a multipart form")
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("Expected temp files to be removed, found %d", len(entries))
	}
}

func TestProcessVideoHandler_MissingVideoPart(t *testing.T) {
	cfg := testConfig()
	manager, _ := setupManager(t, cfg)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("note", "no file here")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/process_video", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	ProcessVideoHandler(manager, cfg, logger.NewWriterLogger(io.Discard))(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
	var resp dto.ErrorResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Error != "No video file provided" {
		t.Errorf("Unexpected error %q", resp.Error)
	}
}

// ========================================
// process_frame Tests
// ========================================

func TestProcessFrameHandler_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadSize = 64
	manager, _ := setupManager(t, cfg)

	body := `{"frame":"` + strings.Repeat("A", 256) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/process_frame", strings.NewReader(body))
	rec := httptest.NewRecorder()

	ProcessFrameHandler(manager, cfg, logger.NewWriterLogger(io.Discard))(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", rec.Code)
	}
}
