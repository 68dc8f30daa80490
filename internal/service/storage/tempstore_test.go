package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wildwatch/internal/logger"
)

func newTestStore(t *testing.T, maxAge time.Duration) *TempStore {
	t.Helper()

	store, err := NewTempStore(filepath.Join(t.TempDir(), "scratch"), maxAge, logger.NewWriterLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewTempStore failed: %v", err)
	}
	return store
}

func TestSave(t *testing.T) {
	store := newTestStore(t, time.Hour)

	path, n, err := store.Save(strings.NewReader("video bytes"), ".mp4")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if n != int64(len("video bytes")) {
		t.Errorf("Expected %d bytes written, got %d", len("video bytes"), n)
	}
	if filepath.Dir(path) != store.Dir() || filepath.Ext(path) != ".mp4" {
		t.Errorf("Unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, []byte("video bytes")) {
		t.Errorf("Unexpected content %q (%v)", data, err)
	}

	store.Remove(path)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed")
	}
	store.Remove(path) // second removal is silent
}

func TestPath_Unique(t *testing.T) {
	store := newTestStore(t, time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		p := store.Path(".avi")
		if seen[p] {
			t.Fatalf("Duplicate path %s", p)
		}
		seen[p] = true
	}
}

func TestSweep_RemovesOnlyStaleOwnedFiles(t *testing.T) {
	store := newTestStore(t, time.Minute)

	stale, _, err := store.Save(strings.NewReader("old"), ".mp4")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	fresh, _, err := store.Save(strings.NewReader("new"), ".mp4")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	foreign := filepath.Join(store.Dir(), "keep-me.mp4")
	if err := os.WriteFile(foreign, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	old := time.Now().Add(-2 * time.Hour)
	for _, p := range []string{stale, foreign} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatalf("Chtimes failed: %v", err)
		}
	}

	if removed := store.Sweep(time.Now()); removed != 1 {
		t.Errorf("Expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Stale file should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Fresh file should remain")
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("Foreign file should remain")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := newTestStore(t, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
