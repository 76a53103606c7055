package results

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

// ServiceConfig is the configuration for the results service.
type ServiceConfig struct {
	ResultFetcher backend.ResultFetcher
	Repository    storage.TaskRepository
	Logger        log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.ResultFetcher == nil {
		return fmt.Errorf("result fetcher is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service retrieves the results of a task.
type Service struct {
	fetcher backend.ResultFetcher
	repo    storage.TaskRepository
	logger  log.Logger
}

// NewService creates a new results service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		fetcher: cfg.ResultFetcher,
		repo:    cfg.Repository,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the results request parameters.
type Request struct {
	TaskID string
}

// Run fetches the task results from the backend in backend order. A tracked succeeded
// task that has no results yet gets them stored in the history.
func (s *Service) Run(ctx context.Context, req Request) ([]string, error) {
	if req.TaskID == "" {
		return nil, fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	results, err := s.fetcher.FetchResults(ctx, req.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not fetch results: %w", err)
	}

	t, err := s.repo.GetTask(ctx, req.TaskID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return results, nil
	case err != nil:
		s.logger.Warningf("could not get task %s from history: %s", req.TaskID, err)
		return results, nil
	}

	if t.Status == model.TaskStatusSucceeded && len(t.Results) == 0 {
		t.Results = append([]string(nil), results...)
		t.UpdatedAt = time.Now().UTC()
		if err := s.repo.SaveTask(ctx, *t); err != nil {
			s.logger.Warningf("could not store results of task %s: %s", t.ID, err)
		}
	}

	return results, nil
}
