package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wildwatch/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "runs_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := New(filepath.Join(tempDir, "nested", "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

func newRun(id string, createdAt time.Time) *model.Run {
	return &model.Run{
		ID:              id,
		Endpoint:        model.EndpointVideo,
		Source:          "clip.mp4",
		Status:          model.StatusSucceeded,
		FramesProcessed: 120,
		DurationMs:      3400,
		CreatedAt:       createdAt,
	}
}

// ========================================
// Run Repository Tests
// ========================================

func TestRunRepository_InsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository(db)
	created := time.Now().Truncate(time.Second)

	if err := repo.Insert(newRun("run-1", created)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := repo.GetByID("run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("Expected run, got nil")
	}
	if got.Endpoint != model.EndpointVideo || got.Source != "clip.mp4" || got.FramesProcessed != 120 {
		t.Errorf("Unexpected run: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at %v, got %v", created, got.CreatedAt)
	}
}

func TestRunRepository_Insert_DuplicateID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository(db)
	run := newRun("dup", time.Now())

	if err := repo.Insert(run); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := repo.Insert(run); err == nil {
		t.Error("Expected error for duplicate id, got nil")
	}
}

func TestRunRepository_GetByID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	got, err := NewRunRepository(db).GetByID("missing")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing run, got %+v", got)
	}
}

func TestRunRepository_GetRecent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository(db)
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	for i := 0; i < 5; i++ {
		if err := repo.Insert(newRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	runs, err := repo.GetRecent(3)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-4" || runs[2].ID != "run-2" {
		t.Errorf("Expected newest first, got %s..%s", runs[0].ID, runs[2].ID)
	}
}

func TestRunRepository_GetRecent_Empty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	runs, err := NewRunRepository(db).GetRecent(10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", runs)
	}
}

func TestRunRepository_CountAndDeleteAll(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository(db)
	failed := newRun("bad", time.Now())
	failed.Status = model.StatusFailed
	failed.Error = "could not open video"

	for _, run := range []*model.Run{newRun("good", time.Now()), failed} {
		if err := repo.Insert(run); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	count, err := repo.Count()
	if err != nil || count != 2 {
		t.Fatalf("Expected 2 runs, got %d (%v)", count, err)
	}

	got, _ := repo.GetByID("bad")
	if got == nil || got.Error != "could not open video" || got.Status != model.StatusFailed {
		t.Errorf("Unexpected failed run: %+v", got)
	}

	if err := repo.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	count, _ = repo.Count()
	if count != 0 {
		t.Errorf("Expected 0 runs after DeleteAll, got %d", count)
	}
}
