package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/fxtask/internal/backend"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage"
)

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Poller     backend.Poller
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Poller == nil {
		return fmt.Errorf("poller is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service gets the current status of a task.
type Service struct {
	poller backend.Poller
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		poller: cfg.Poller,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	TaskID string
}

// Response is the task status.
type Response struct {
	// Task is the local record with the backend status applied, when the
	// task is not in the history it's built from the backend status.
	Task model.Task
	// Remote is the status reported by the backend.
	Remote model.TaskState
	// Tracked is true when the task is in the local history.
	Tracked bool
}

// Run polls the backend once for the task and merges the result with the local history record.
// Terminal local records are never changed, the local history is not updated.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("getting status for task: %s", req.TaskID)

	local, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	remote, err := s.poller.PollOnce(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not poll task: %w", err)
	}

	resp := &Response{Remote: *remote, Tracked: local != nil}
	if local == nil {
		local = &model.Task{ID: req.TaskID, Status: model.TaskStatusQueued}
	}
	resp.Task = merge(*local, *remote)

	return resp, nil
}

func merge(t model.Task, st model.TaskState) model.Task {
	if t.Status.IsTerminal() {
		return t
	}

	if t.Status.CanTransitionTo(st.Status) {
		t.Status = st.Status
	}
	if st.Progress != nil && *st.Progress > t.Progress {
		t.Progress = min(*st.Progress, 100)
	}
	if t.Status == model.TaskStatusFailed && st.Message != "" {
		t.Error = st.Message
		t.ErrorCode = model.TaskErrorCodeBackendFailed
	}

	now := time.Now().UTC()
	t.LastPolledAt = &now

	return t
}
