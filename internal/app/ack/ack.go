package ack

import (
	"context"
	"fmt"

	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage"
)

// ServiceConfig is the configuration for the ack service.
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

// Service acknowledges finished tasks, removing them from the history.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new ack service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the ack request parameters.
type Request struct {
	TaskID string
}

// Run removes a terminal task from the history. Tasks still in progress can't be
// acknowledged.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	t, err := s.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	if !t.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot acknowledge %s task %s: %w", t.Status, t.ID, model.ErrNotValid)
	}

	if err := s.repo.DeleteTask(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("could not delete task from repository: %w", err)
	}

	s.logger.Infof("acknowledged %s task: %s", t.Status, t.ID)
	return t, nil
}
