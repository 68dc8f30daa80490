package repository

import (
	"wildwatch/internal/model"
)

// RunRepository defines the interface for processing run audit records.
type RunRepository interface {
	// Create operations
	Insert(run *model.Run) error

	// Read operations
	GetByID(id string) (*model.Run, error)
	GetRecent(limit int) ([]model.Run, error)
	Count() (int, error)

	// Delete operations
	DeleteAll() error
}
