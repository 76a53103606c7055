package backend

import (
	"context"

	"github.com/slok/fxtask/internal/model"
)

// Submitter sends effect application jobs to the backend.
type Submitter interface {
	// Submit validates the request locally and sends it to the backend, returning the
	// backend assigned task ID. It never retries.
	Submit(ctx context.Context, req model.EffectRequest) (taskID string, err error)
}

// Poller gets the status of a submitted task.
type Poller interface {
	// PollOnce queries the task status once. Unknown backend statuses are reported as running.
	PollOnce(ctx context.Context, taskID string) (*model.TaskState, error)
}

// ResultFetcher retrieves the artifacts of a succeeded task.
type ResultFetcher interface {
	// FetchResults returns the artifact references in backend order.
	FetchResults(ctx context.Context, taskID string) ([]string, error)
}

// Canceller asks the backend to stop a task.
type Canceller interface {
	Cancel(ctx context.Context, taskID string) error
}

// Backend is the full effects backend contract.
type Backend interface {
	Submitter
	Poller
	ResultFetcher
	Canceller
}

//go:generate mockery --case underscore --output backendmock --outpkg backendmock --name Backend
