package cancel

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

// ServiceConfig is the configuration for the cancel service.
type ServiceConfig struct {
	Canceller  backend.Canceller
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Canceller == nil {
		return fmt.Errorf("canceller is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service cancels tasks.
type Service struct {
	canceller backend.Canceller
	repo      storage.TaskRepository
	logger    log.Logger
}

// NewService creates a new cancel service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		canceller: cfg.Canceller,
		repo:      cfg.Repository,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the cancel request parameters.
type Request struct {
	TaskID string
}

// Run asks the backend to cancel the task and marks the history record as cancelled.
// The local cancellation doesn't depend on the backend answer, a backend failure is only logged.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	t, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("could not get task: %w", err)
	}
	if t != nil && t.Status.IsTerminal() {
		return t, fmt.Errorf("task %s is already %s: %w", t.ID, t.Status, model.ErrNotValid)
	}

	if err := s.canceller.Cancel(ctx, req.TaskID); err != nil {
		s.logger.Warningf("backend cancellation of task %s failed: %s", req.TaskID, err)
	}

	now := time.Now().UTC()
	if t == nil {
		s.logger.Infof("cancelled untracked task: %s", req.TaskID)
		return &model.Task{ID: req.TaskID, Status: model.TaskStatusCancelled, UpdatedAt: now}, nil
	}

	t.Status = model.TaskStatusCancelled
	t.UpdatedAt = now
	if err := s.repo.SaveTask(ctx, *t); err != nil {
		return nil, fmt.Errorf("could not save task: %w", err)
	}

	s.logger.Infof("cancelled task: %s", t.ID)
	return t, nil
}
