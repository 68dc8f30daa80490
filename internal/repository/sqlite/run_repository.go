package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"wildwatch/internal/model"
)

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert adds a new run record to the database.
func (r *RunRepository) Insert(run *model.Run) error {
	r.db.Lock()
	defer r.db.Unlock()

	_, err := r.db.Conn().Exec(`
		INSERT INTO runs (id, endpoint, source, status, frames_processed, duration_ms, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Endpoint, run.Source, run.Status, run.FramesProcessed, run.DurationMs, run.Error, run.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. A missing run yields (nil, nil).
func (r *RunRepository) GetByID(id string) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var run model.Run
	err := r.db.Conn().QueryRow(`
		SELECT id, endpoint, source, status, frames_processed, duration_ms, error, created_at
		FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Endpoint, &run.Source, &run.Status, &run.FramesProcessed, &run.DurationMs, &run.Error, &run.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// GetRecent returns up to limit runs, newest first.
func (r *RunRepository) GetRecent(limit int) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, endpoint, source, status, frames_processed, duration_ms, error, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		var run model.Run
		if err := rows.Scan(&run.ID, &run.Endpoint, &run.Source, &run.Status, &run.FramesProcessed, &run.DurationMs, &run.Error, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// Count returns the number of stored runs.
func (r *RunRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// DeleteAll removes every run.
func (r *RunRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("failed to delete runs: %w", err)
	}
	return nil
}
