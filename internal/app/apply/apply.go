package apply

import (
	"context"
	"fmt"

	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
)

// TaskManager is the task processing contract the apply service drives.
type TaskManager interface {
	ProcessTask(ctx context.Context, req model.EffectRequest) (*model.Task, error)
	Task(taskID string) (*model.Task, error)
	Wait(ctx context.Context, taskID string) (*model.Task, error)
	CancelAll() []model.Task
	Subscribe() (<-chan model.TaskEvent, func())
}

// ServiceConfig is the configuration for the apply service.
type ServiceConfig struct {
	Manager TaskManager
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Manager == nil {
		return fmt.Errorf("task manager is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service applies effects on images.
type Service struct {
	manager TaskManager
	logger  log.Logger
}

// NewService creates a new apply service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		manager: cfg.Manager,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the apply request parameters.
type Request struct {
	EffectRequest model.EffectRequest
	// Wait blocks until the task finishes, otherwise the queued task is returned.
	Wait bool
	// OnProgress is called with every change of the task while waiting.
	OnProgress func(model.Task)
}

// Run submits the effect request. When waiting, the task progress is logged and a context
// cancellation (e.g. user interrupt) cancels every in flight task, returning the cancelled task.
func (s *Service) Run(ctx context.Context, req Request) (*model.Task, error) {
	events, unsubscribe := s.manager.Subscribe()
	defer unsubscribe()

	t, err := s.manager.ProcessTask(ctx, req.EffectRequest)
	if err != nil {
		return nil, fmt.Errorf("could not process task: %w", err)
	}

	logger := s.logger.WithValues(log.Kv{"task-id": t.ID, "effect-id": t.EffectID})
	logger.Infof("Task submitted")

	if !req.Wait {
		return t, nil
	}

	// Events can be dropped for slow subscribers, the terminal one included.
	waitCtx, stopWait := context.WithCancel(ctx)
	defer stopWait()
	finished := make(chan *model.Task, 1)
	go func() {
		final, _ := s.manager.Wait(waitCtx, t.ID)
		finished <- final
	}()

	lastProgress := -1.0
	for {
		select {
		case <-ctx.Done():
			cancelled := s.manager.CancelAll()
			logger.Warningf("Interrupted, cancelled %d in flight tasks", len(cancelled))
			return s.manager.Task(t.ID)

		case final := <-finished:
			if final == nil {
				// Context done, handled by its own case.
				finished = nil
				continue
			}
			if req.OnProgress != nil {
				req.OnProgress(*final)
			}
			logger.Infof("Task finished as %s", final.Status)
			return final, nil

		case ev, ok := <-events:
			if !ok {
				return s.manager.Task(t.ID)
			}
			if ev.Task.ID != t.ID {
				continue
			}
			if req.OnProgress != nil {
				req.OnProgress(ev.Task)
			}

			if ev.Type == model.TaskEventTerminal {
				final := ev.Task
				logger.Infof("Task finished as %s", final.Status)
				return &final, nil
			}

			if ev.Task.Progress != lastProgress {
				lastProgress = ev.Task.Progress
				logger.Infof("Task %s (%.0f%%)", ev.Task.Status, ev.Task.Progress)
			}
		}
	}
}
