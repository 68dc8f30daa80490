package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wildwatch/internal/logger"

	"github.com/google/uuid"
)

const (
	// filePrefix marks files owned by the store so sweeps never touch anything else.
	filePrefix = "wildwatch-"
	// DefaultMaxAge is how long an orphaned temp file may live before a sweep removes it.
	DefaultMaxAge = time.Hour
)

// TempStore manages the scratch files used while a video is decoded and re-encoded.
type TempStore struct {
	dir    string
	maxAge time.Duration
	logger *logger.Logger
}

// NewTempStore creates the directory if needed.
func NewTempStore(dir string, maxAge time.Duration, logger *logger.Logger) (*TempStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &TempStore{dir: dir, maxAge: maxAge, logger: logger}, nil
}

// Dir returns the scratch directory.
func (s *TempStore) Dir() string {
	return s.dir
}

// Path returns a fresh, not yet existing file path with the given suffix.
func (s *TempStore) Path(suffix string) string {
	return filepath.Join(s.dir, filePrefix+uuid.NewString()+suffix)
}

// Save copies src into a new temp file and returns its path.
func (s *TempStore) Save(src io.Reader, suffix string) (string, int64, error) {
	path := s.Path(suffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.Remove(path)
		return "", 0, fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, n, nil
}

// Remove deletes a temp file; a missing file is not an error.
func (s *TempStore) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Error removing temp file %s: %v", path, err)
	}
}

// Run sweeps stale temp files every interval until ctx is done.
// A non-positive interval disables sweeping.
func (s *TempStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep removes store-owned files last modified before now-maxAge and
// returns how many were removed.
func (s *TempStore) Sweep(now time.Time) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Error("Error reading temp directory: %v", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), filePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < s.maxAge {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Error("Error removing stale temp file %s: %v", path, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("Removed %d stale temp files from %s", removed, s.dir)
	}
	return removed
}
