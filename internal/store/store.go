package store

import (
	"context"
	"errors"

	"github.com/nhle/mailagent/internal/model"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// RunFilter controls filtering and pagination for run queries.
type RunFilter struct {
	Status *string // "success", "failed", or nil (all)
	Limit  int
	Offset int
}

// Store defines the persistence interface for task run history.
type Store interface {
	// SaveRun stores a finished run and its step outcomes and returns the
	// new run id.
	SaveRun(ctx context.Context, task string, result *model.TaskResult) (string, error)

	// GetRun returns a run with its steps in execution order.
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)

	// ListRuns returns runs newest first, without steps.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error)

	// DeleteRun removes a run and its steps.
	DeleteRun(ctx context.Context, id string) error

	Close() error
}
