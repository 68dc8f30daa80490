package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wildwatch/internal/catalog"
	"wildwatch/internal/config"
	"wildwatch/internal/dto"
	"wildwatch/internal/logger"
	"wildwatch/internal/metrics"
	"wildwatch/internal/model"
	"wildwatch/internal/repository"
	"wildwatch/internal/service/ai"
	"wildwatch/internal/service/storage"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

var (
	// ErrNoFrame means the request carried no frame payload at all.
	ErrNoFrame = errors.New("no frame data provided")
	// ErrVideoOpen means the uploaded file could not be opened as a video.
	ErrVideoOpen = errors.New("could not open video")
)

// ProgressPublisher receives serialized dto.Progress messages.
type ProgressPublisher interface {
	Broadcast(message []byte)
}

// Manager runs the per-frame pipeline for both endpoints:
// decode, detect, label, classify, draw, count, re-encode.
type Manager struct {
	pool      *ai.Pool
	catalog   *catalog.Catalog
	tempStore *storage.TempStore
	progress  ProgressPublisher
	runRepo   repository.RunRepository
	metrics   *metrics.Metrics
	logger    *logger.Logger

	outputCodec     string
	outputExtension string
	defaultFPS      float64
	progressEvery   int
}

// NewManager wires the pipeline. progress, runRepo and metrics may be nil.
func NewManager(pool *ai.Pool, cat *catalog.Catalog, tempStore *storage.TempStore, progress ProgressPublisher,
	runRepo repository.RunRepository, m *metrics.Metrics, cfg *config.Config, logger *logger.Logger) *Manager {
	return &Manager{
		pool:            pool,
		catalog:         cat,
		tempStore:       tempStore,
		progress:        progress,
		runRepo:         runRepo,
		metrics:         m,
		logger:          logger,
		outputCodec:     cfg.OutputCodec,
		outputExtension: cfg.OutputExtension,
		defaultFPS:      cfg.DefaultFPS,
		progressEvery:   cfg.ProgressEvery,
	}
}

// Catalog returns the label catalog used for mapping and colouring.
func (m *Manager) Catalog() *catalog.Catalog {
	return m.catalog
}

// Pool returns the detector pool.
func (m *Manager) Pool() *ai.Pool {
	return m.pool
}

// Runs returns the run history repository, nil when history is disabled.
func (m *Manager) Runs() repository.RunRepository {
	return m.runRepo
}

// ========================================
// Frame processing
// ========================================

// ProcessFrame decodes one base64 image and returns its raw detections.
func (m *Manager) ProcessFrame(ctx context.Context, encoded string) (*dto.FrameResult, error) {
	start := time.Now()
	result, err := m.DetectFrame(ctx, encoded)

	m.recordRun(&model.Run{
		ID:              uuid.NewString(),
		Endpoint:        model.EndpointFrame,
		FramesProcessed: boolToInt(err == nil),
		CreatedAt:       start,
	}, start, err)

	return result, err
}

// DetectFrame is ProcessFrame without the run record; stream sessions are
// recorded once per connection instead.
func (m *Manager) DetectFrame(ctx context.Context, encoded string) (*dto.FrameResult, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, ErrNoFrame
	}

	data, err := DecodeBase64(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 frame: %w", err)
	}

	frame, err := ai.DecodeImage(data)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	detections, err := m.detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	result := &dto.FrameResult{Detections: make([]dto.Detection, 0, len(detections))}
	for _, d := range detections {
		result.Detections = append(result.Detections, dto.Detection{
			Label:      d.Label,
			Confidence: d.Confidence,
			BBox:       d.BBox(),
		})
	}
	return result, nil
}

// DecodeBase64 accepts standard base64 with or without padding and an
// optional "data:<mime>;base64," prefix.
func DecodeBase64(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(encoded); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}

// detect borrows a detector for a single frame so that long videos and
// single frames share the pool fairly.
func (m *Manager) detect(ctx context.Context, frame gocv.Mat) ([]ai.Detection, error) {
	detector, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer m.pool.Release(detector)

	detections, err := detector.Detect(frame)
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.AddFrames(1)
		for _, d := range detections {
			m.metrics.AddDetection(d.Label)
		}
	}
	return detections, nil
}

// ========================================
// Video processing
// ========================================

// videoJob carries per-request state through the frame loop.
type videoJob struct {
	requestID   string
	source      string
	totalFrames int
	frames      int
	detections  int
	stats       map[string]int
}

// ProcessVideo annotates every frame of the uploaded video and returns the
// re-encoded file with per-label statistics. Temp files are removed on every path.
func (m *Manager) ProcessVideo(ctx context.Context, src io.Reader, filename string) (*dto.VideoResult, error) {
	start := time.Now()
	job := &videoJob{
		requestID: uuid.NewString(),
		source:    filepath.Base(filename),
		stats:     m.catalog.NewStats(),
	}

	m.logger.Info("Processing video %s (request %s)", job.source, job.requestID)
	encoded, err := m.processVideo(ctx, job, src)

	final := dto.Progress{RequestID: job.requestID, Source: job.source, Frame: job.frames, TotalFrames: job.totalFrames, Done: true}
	if err != nil {
		final.Error = err.Error()
	}
	m.publish(final)

	m.recordRun(&model.Run{
		ID:              job.requestID,
		Endpoint:        model.EndpointVideo,
		Source:          job.source,
		FramesProcessed: job.frames,
		CreatedAt:       start,
	}, start, err)

	if err != nil {
		m.logger.Error("Video %s failed after %d frames: %v", job.source, job.frames, err)
		return nil, err
	}

	m.logger.Info("Video %s processed: %d frames, %d detections in %v", job.source, job.frames, job.detections, time.Since(start))
	return &dto.VideoResult{
		Message:         "Video processed successfully",
		ProcessedVideo:  encoded,
		Statistics:      job.stats,
		FramesProcessed: job.frames,
		TotalDetections: job.detections,
		RequestID:       job.requestID,
	}, nil
}

func (m *Manager) processVideo(ctx context.Context, job *videoJob, src io.Reader) (string, error) {
	inputPath, size, err := m.tempStore.Save(src, inputSuffix(job.source))
	if err != nil {
		return "", err
	}
	defer m.tempStore.Remove(inputPath)
	if size == 0 {
		return "", fmt.Errorf("%w: uploaded file is empty", ErrVideoOpen)
	}

	outputPath := m.tempStore.Path(m.outputExtension)
	defer m.tempStore.Remove(outputPath)

	capture, err := gocv.VideoCaptureFile(inputPath)
	if err != nil {
		if capture != nil {
			capture.Close()
		}
		return "", fmt.Errorf("%w: %v", ErrVideoOpen, err)
	}
	defer capture.Close()
	if !capture.IsOpened() {
		return "", ErrVideoOpen
	}

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%w: unknown frame size %dx%d", ErrVideoOpen, width, height)
	}
	fps := capture.Get(gocv.VideoCaptureFPS)
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = m.defaultFPS
	}
	if count := capture.Get(gocv.VideoCaptureFrameCount); count > 0 {
		job.totalFrames = int(count)
	}

	writer, err := gocv.VideoWriterFile(outputPath, m.outputCodec, fps, width, height, true)
	if err != nil {
		if writer != nil {
			writer.Close()
		}
		return "", fmt.Errorf("failed to create output video: %w", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return "", fmt.Errorf("failed to open output video with codec %s", m.outputCodec)
	}

	loopErr := m.annotateFrames(ctx, job, capture, writer)
	// The container is only complete once the writer is closed.
	closeErr := writer.Close()
	if loopErr != nil {
		return "", loopErr
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to finalize output video: %w", closeErr)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read output video: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// annotateFrames reads until the stream ends or ctx is cancelled.
func (m *Manager) annotateFrames(ctx context.Context, job *videoJob, capture *gocv.VideoCapture, writer *gocv.VideoWriter) error {
	frame := gocv.NewMat()
	defer frame.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			return nil
		}
		job.frames++

		detections, err := m.detect(ctx, frame)
		if err != nil {
			return fmt.Errorf("frame %d: %w", job.frames, err)
		}
		job.detections += ai.CountLabels(job.stats, detections)

		if err := ai.Annotate(&frame, detections, m.catalog); err != nil {
			return fmt.Errorf("frame %d: %w", job.frames, err)
		}
		if err := writer.Write(frame); err != nil {
			return fmt.Errorf("frame %d: failed to write: %w", job.frames, err)
		}

		if m.progressEvery > 0 && job.frames%m.progressEvery == 0 {
			m.publish(dto.Progress{RequestID: job.requestID, Source: job.source, Frame: job.frames, TotalFrames: job.totalFrames})
		}
	}
}

// inputSuffix keeps the upload's extension so the demuxer can probe by name.
func inputSuffix(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ".mp4"
	}
	return ext
}

// ========================================
// Side channels
// ========================================

func (m *Manager) publish(p dto.Progress) {
	if m.progress == nil {
		return
	}
	msg, err := json.Marshal(p)
	if err != nil {
		m.logger.Error("Failed to encode progress: %v", err)
		return
	}
	m.progress.Broadcast(msg)
}

// RecordStreamSession stores one audit record for a websocket detection session.
func (m *Manager) RecordStreamSession(source string, frames int, started time.Time, err error) {
	m.recordRun(&model.Run{
		ID:              uuid.NewString(),
		Endpoint:        model.EndpointStream,
		Source:          source,
		FramesProcessed: frames,
		CreatedAt:       started,
	}, started, err)
}

func (m *Manager) recordRun(run *model.Run, started time.Time, err error) {
	if m.runRepo == nil {
		return
	}
	run.DurationMs = time.Since(started).Milliseconds()
	run.Status = model.StatusSucceeded
	if err != nil {
		run.Status = model.StatusFailed
		run.Error = err.Error()
	}
	if insertErr := m.runRepo.Insert(run); insertErr != nil {
		m.logger.Error("Failed to record %s run: %v", run.Endpoint, insertErr)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
