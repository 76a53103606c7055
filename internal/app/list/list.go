package list

import (
	"context"
	"fmt"

	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage"
)

// ServiceConfig is the configuration for the list service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the task history with optional filtering.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// StatusFilter is an optional filter to only show tasks with this status.
	StatusFilter *model.TaskStatus
	// EffectID is an optional filter to only show tasks of this effect.
	EffectID string
	// Limit is the max number of tasks, 0 means all.
	Limit int
}

// Run lists the task history newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Task, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	s.logger.Debugf("listing tasks with status filter %v and effect filter %q", req.StatusFilter, req.EffectID)

	tasks, err := s.repo.ListTasks(ctx, storage.ListTasksOpts{
		Status:   req.StatusFilter,
		EffectID: req.EffectID,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	s.logger.Debugf("found %d tasks", len(tasks))
	return tasks, nil
}
