package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
)

// DefaultScript is the sequence of states a task goes through when no script is configured.
var DefaultScript = []model.TaskState{
	{Status: model.TaskStatusQueued, RawStatus: "queued"},
	{Status: model.TaskStatusRunning, Progress: ptr(50), RawStatus: "running"},
	{Status: model.TaskStatusSucceeded, Progress: ptr(100), RawStatus: "SUCCESS"},
}

// BackendConfig is the configuration for the fake backend.
type BackendConfig struct {
	// Script is the sequence of states returned on each poll, the last one repeats forever.
	Script []model.TaskState
	// ResultsPerTask is the number of artifacts a succeeded task has.
	ResultsPerTask int
	// SubmitErr, ResultsErr and CancelErr are returned by the respective operations when set.
	SubmitErr  error
	ResultsErr error
	CancelErr  error
	Logger     log.Logger
}

func (c *BackendConfig) defaults() error {
	if len(c.Script) == 0 {
		c.Script = DefaultScript
	}
	if c.ResultsPerTask == 0 {
		c.ResultsPerTask = 1
	}
	if c.ResultsPerTask < 0 {
		return fmt.Errorf("results per task can't be negative")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "backend.Fake"})
	return nil
}

type fakeTask struct {
	effectID  string
	step      int
	cancelled bool
}

// Backend is a fake implementation of the backend.Backend interface.
// It simulates the effects backend in memory, advancing each task one script step per poll.
type Backend struct {
	cfg    BackendConfig
	tasks  map[string]*fakeTask
	mu     sync.Mutex
	logger log.Logger
}

// NewBackend creates a new fake backend.
func NewBackend(cfg BackendConfig) (*Backend, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Backend{
		cfg:    cfg,
		tasks:  map[string]*fakeTask{},
		logger: cfg.Logger,
	}, nil
}

// Submit registers a new fake task.
func (b *Backend) Submit(ctx context.Context, req model.EffectRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if b.cfg.SubmitErr != nil {
		return "", b.cfg.SubmitErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := ulid.Make().String()
	b.tasks[id] = &fakeTask{effectID: req.EffectID}
	b.logger.Infof("Submitted fake task: %s (effect: %s)", id, req.EffectID)

	return id, nil
}

// PollOnce returns the current script state of the task and advances it.
func (b *Backend) PollOnce(ctx context.Context, taskID string) (*model.TaskState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[taskID]
	if !ok {
		return nil, &model.BackendError{Kind: model.ErrPollTransient, StatusCode: 404, Message: fmt.Sprintf("task %s not found", taskID)}
	}

	if t.cancelled {
		return &model.TaskState{Status: model.TaskStatusCancelled, RawStatus: "cancelled"}, nil
	}

	idx := t.step
	if idx >= len(b.cfg.Script) {
		idx = len(b.cfg.Script) - 1
	}
	t.step++

	st := b.cfg.Script[idx]
	if st.Progress != nil {
		st.Progress = ptr(*st.Progress)
	}

	return &st, nil
}

// FetchResults returns fake artifact URLs for the task.
func (b *Backend) FetchResults(ctx context.Context, taskID string) ([]string, error) {
	if b.cfg.ResultsErr != nil {
		return nil, b.cfg.ResultsErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[taskID]
	if !ok {
		return nil, &model.BackendError{Kind: model.ErrResultFetch, StatusCode: 404, Message: fmt.Sprintf("task %s not found", taskID)}
	}

	results := make([]string, 0, b.cfg.ResultsPerTask)
	for i := 0; i < b.cfg.ResultsPerTask; i++ {
		results = append(results, fmt.Sprintf("https://fake.fxtask.local/%s/%s/%d.png", t.effectID, taskID, i))
	}

	return results, nil
}

// Cancel marks the task as cancelled.
func (b *Backend) Cancel(ctx context.Context, taskID string) error {
	if b.cfg.CancelErr != nil {
		return b.cfg.CancelErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[taskID]
	if !ok {
		return &model.BackendError{Kind: model.ErrCancellation, StatusCode: 404, Message: fmt.Sprintf("task %s not found", taskID)}
	}
	t.cancelled = true
	b.logger.Infof("Cancelled fake task: %s", taskID)

	return nil
}

func ptr(f float64) *float64 { return &f }
