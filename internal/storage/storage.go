package storage

import (
	"context"

	"github.com/slok/fxtask/internal/model"
)

// TaskRepository is the interface for effect task history persistence.
type TaskRepository interface {
	// SaveTask creates the task or replaces the stored one with the same ID.
	SaveTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListTasks returns the tasks newest first.
	ListTasks(ctx context.Context, opts ListTasksOpts) ([]model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository

// ListTasksOpts filters the listed tasks.
type ListTasksOpts struct {
	// Status filters by task status when set.
	Status *model.TaskStatus
	// EffectID filters by effect when not empty.
	EffectID string
	// Limit caps the number of returned tasks, 0 means no limit.
	Limit int
}

// Match returns true if the task passes the filters (not the limit).
func (o ListTasksOpts) Match(t model.Task) bool {
	if o.Status != nil && t.Status != *o.Status {
		return false
	}
	if o.EffectID != "" && t.EffectID != o.EffectID {
		return false
	}
	return true
}
