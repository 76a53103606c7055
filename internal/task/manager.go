package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/slok/fxtask/internal/backend"
	"github.com/slok/fxtask/internal/log"
	"github.com/slok/fxtask/internal/model"
	"github.com/slok/fxtask/internal/storage"
)

const (
	DefaultPollInterval    = 10 * time.Second
	DefaultMaxPollAttempts = 60
	DefaultCancelTimeout   = 15 * time.Second

	subscriberBufferSize = 64
	persistTimeout       = 5 * time.Second
)

// ManagerConfig is the configuration for the task Manager.
type ManagerConfig struct {
	Submitter     backend.Submitter
	Poller        backend.Poller
	ResultFetcher backend.ResultFetcher
	Canceller     backend.Canceller
	// Repository is optional, when set every task change is mirrored to it.
	Repository      storage.TaskRepository
	PollInterval    time.Duration
	MaxPollAttempts int
	// CancelTimeout bounds the backend cancel request.
	CancelTimeout time.Duration
	Logger        log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Submitter == nil {
		return fmt.Errorf("submitter is required")
	}
	if c.Poller == nil {
		return fmt.Errorf("poller is required")
	}
	if c.ResultFetcher == nil {
		return fmt.Errorf("result fetcher is required")
	}
	if c.Canceller == nil {
		return fmt.Errorf("canceller is required")
	}

	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval can't be negative")
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}

	if c.MaxPollAttempts < 0 {
		return fmt.Errorf("max poll attempts can't be negative")
	}
	if c.MaxPollAttempts == 0 {
		c.MaxPollAttempts = DefaultMaxPollAttempts
	}

	if c.CancelTimeout <= 0 {
		c.CancelTimeout = DefaultCancelTimeout
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "task.Manager"})

	return nil
}

type entry struct {
	task   model.Task
	logger log.Logger
	// cancel stops the task poll loop.
	cancel context.CancelFunc
	// terminal is closed once the task terminal status has been persisted.
	terminal chan struct{}
}

// persistItem is a queued task snapshot to save and/or a terminal signal to
// release once everything before it has been saved.
type persistItem struct {
	task     *model.Task
	terminal chan struct{}
}

// Manager owns the active task table and drives every task through
// submit, poll and result retrieval. It's safe for concurrent use.
type Manager struct {
	submitter     backend.Submitter
	poller        backend.Poller
	fetcher       backend.ResultFetcher
	canceller     backend.Canceller
	repo          storage.TaskRepository
	pollInterval  time.Duration
	maxAttempts   int
	cancelTimeout time.Duration
	logger        log.Logger

	mu      sync.Mutex
	tasks   map[string]*entry
	order   []string
	subs    map[int]chan model.TaskEvent
	nextSub int
	closed  bool
	// done is closed on Close.
	done chan struct{}

	// persistMu serializes the repository writes, always taken before mu.
	persistMu sync.Mutex
	persistQ  []persistItem

	loopsCtx    context.Context
	cancelLoops context.CancelFunc
	wg          sync.WaitGroup
}

// NewManager returns a new task Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		submitter:     cfg.Submitter,
		poller:        cfg.Poller,
		fetcher:       cfg.ResultFetcher,
		canceller:     cfg.Canceller,
		repo:          cfg.Repository,
		pollInterval:  cfg.PollInterval,
		maxAttempts:   cfg.MaxPollAttempts,
		cancelTimeout: cfg.CancelTimeout,
		logger:        cfg.Logger,
		tasks:         map[string]*entry{},
		subs:          map[int]chan model.TaskEvent{},
		done:          make(chan struct{}),
		loopsCtx:      ctx,
		cancelLoops:   cancel,
	}, nil
}

// ProcessTask validates and submits the effect request, registers the task as queued
// and starts polling it in the background. Validation and submission errors are returned
// directly and no task is registered.
func (m *Manager) ProcessTask(ctx context.Context, req model.EffectRequest) (*model.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if m.isClosed() {
		return nil, fmt.Errorf("manager is closed: %w", model.ErrNotValid)
	}

	taskID, err := m.submitter.Submit(ctx, req)
	if err != nil {
		if errors.Is(err, model.ErrValidation) || errors.Is(err, model.ErrSubmission) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrSubmission, err)
	}
	if taskID == "" {
		return nil, fmt.Errorf("backend returned an empty task id: %w", model.ErrSubmission)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		// Closed while submitting, nobody would track the backend job.
		logger := m.logger.WithValues(log.Kv{"task-id": taskID, "effect-id": req.EffectID})
		logger.Warningf("Manager closed during submission, cancelling backend task")
		m.cancelBackend(taskID, logger)
		return nil, fmt.Errorf("manager is closed: %w", model.ErrNotValid)
	}
	defer m.flush()
	defer m.mu.Unlock()
	if _, ok := m.tasks[taskID]; ok {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	loopCtx, cancel := context.WithCancel(m.loopsCtx)
	e := &entry{
		task: model.Task{
			ID:        taskID,
			EffectID:  req.EffectID,
			Status:    model.TaskStatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		logger:   m.logger.WithValues(log.Kv{"task-id": taskID, "effect-id": req.EffectID}),
		cancel:   cancel,
		terminal: make(chan struct{}),
	}
	m.tasks[taskID] = e
	m.order = append(m.order, taskID)
	m.changedLocked(e, model.TaskEventCreated)
	e.logger.Infof("Task submitted")

	m.wg.Add(1)
	go m.run(loopCtx, e)

	t := e.task.Clone()
	return &t, nil
}

// CancelTask cancels a queued or running task. The local task is marked as cancelled
// and its polling halted before returning, the backend is notified in the background
// and its failures are only logged.
func (m *Manager) CancelTask(taskID string) (*model.Task, error) {
	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	if e.task.Status.IsTerminal() {
		t := e.task.Clone()
		return &t, fmt.Errorf("task %s is already %s: %w", taskID, e.task.Status, model.ErrNotValid)
	}

	m.finishLocked(e, func(t *model.Task) { t.Status = model.TaskStatusCancelled })
	e.logger.Infof("Task cancelled")

	m.wg.Add(1)
	go m.cancelUpstream(taskID, e.logger)

	t := e.task.Clone()
	return &t, nil
}

// CancelAll cancels every non terminal task of the table and returns the cancelled tasks.
func (m *Manager) CancelAll() []model.Task {
	m.mu.Lock()
	ids := []string{}
	for _, id := range m.order {
		if !m.tasks[id].task.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	cancelled := []model.Task{}
	for _, id := range ids {
		t, err := m.CancelTask(id)
		if err != nil {
			// Finished or acknowledged in between.
			continue
		}
		cancelled = append(cancelled, *t)
	}

	return cancelled
}

// Task returns a snapshot of a task in the table.
func (m *Manager) Task(taskID string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	t := e.task.Clone()
	return &t, nil
}

// Tasks returns a snapshot of all the tasks in the table in creation order.
func (m *Manager) Tasks() []model.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	tasks := make([]model.Task, 0, len(m.order))
	for _, id := range m.order {
		tasks = append(tasks, m.tasks[id].task.Clone())
	}
	return tasks
}

// State returns the aggregated state of the task table.
func (m *Manager) State() model.AggregateState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := model.AggregateState{TaskProgress: map[string]float64{}}
	if len(m.order) == 0 {
		return state
	}

	total := 0.0
	for _, id := range m.order {
		t := m.tasks[id].task
		if !t.Status.IsTerminal() {
			state.IsProcessing = true
		}
		state.TaskProgress[id] = t.Progress
		total += t.Progress
	}
	state.Progress = total / float64(len(m.order))

	latest := m.tasks[m.order[len(m.order)-1]].task.Clone()
	state.Latest = &latest
	state.IsCancelled = latest.Status == model.TaskStatusCancelled

	return state
}

// Acknowledge removes a terminal task from the table once its outcome has been consumed.
func (m *Manager) Acknowledge(taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}
	if !e.task.Status.IsTerminal() {
		return fmt.Errorf("task %s is %s: %w", taskID, e.task.Status, model.ErrNotValid)
	}

	delete(m.tasks, taskID)
	for i, id := range m.order {
		if id == taskID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.publishLocked(model.TaskEventRemoved, e.task)

	return nil
}

// Wait blocks until the task reaches a terminal status, the context is done or the
// Manager is closed. A task left unfinished by Close is returned with ErrNotValid.
func (m *Manager) Wait(ctx context.Context, taskID string) (*model.Task, error) {
	m.mu.Lock()
	e, ok := m.tasks[taskID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.terminal:
	case <-m.done:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	t := e.task.Clone()
	if !t.Status.IsTerminal() {
		return &t, fmt.Errorf("task %s is %s and the manager is closed: %w", taskID, t.Status, model.ErrNotValid)
	}
	return &t, nil
}

// Subscribe returns a channel that receives every task change and a function to
// stop the subscription. Slow subscribers miss events instead of blocking the Manager.
func (m *Manager) Subscribe() (<-chan model.TaskEvent, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan model.TaskEvent, subscriberBufferSize)
	if m.closed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
		})
	}
}

// Close halts every poll loop and waits for the background work to end. Unfinished
// tasks keep their last status, locally and on the backend: closing is not cancelling.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.done)
	for _, id := range m.order {
		e := m.tasks[id]
		if !e.task.Status.IsTerminal() {
			e.logger.Debugf("Task polling halted on close as %s", e.task.Status)
		}
	}
	m.mu.Unlock()

	m.cancelLoops()
	m.wg.Wait()
	m.flush()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}

	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) cancelUpstream(taskID string, logger log.Logger) {
	defer m.wg.Done()
	m.cancelBackend(taskID, logger)
}

func (m *Manager) cancelBackend(taskID string, logger log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cancelTimeout)
	defer cancel()

	if err := m.canceller.Cancel(ctx, taskID); err != nil {
		if !errors.Is(err, model.ErrCancellation) {
			err = fmt.Errorf("%w: %w", model.ErrCancellation, err)
		}
		logger.Warningf("Backend task cancellation failed, task remains cancelled locally: %s", err)
		return
	}

	logger.Debugf("Backend task cancelled")
}

// finishLocked moves the task to a terminal status set by fn, stops its poll loop
// and notifies the change. Waiters are released by the next flush.
func (m *Manager) finishLocked(e *entry, fn func(t *model.Task)) {
	fn(&e.task)
	e.task.UpdatedAt = time.Now().UTC()
	e.cancel()
	m.changedLocked(e, model.TaskEventTerminal)
	m.persistQ = append(m.persistQ, persistItem{terminal: e.terminal})
}

// changedLocked publishes the current task snapshot and queues it for persistence.
// Callers must flush after releasing mu.
func (m *Manager) changedLocked(e *entry, evType model.TaskEventType) {
	m.publishLocked(evType, e.task)

	if m.repo == nil {
		return
	}
	t := e.task.Clone()
	m.persistQ = append(m.persistQ, persistItem{task: &t})
}

// flush writes the queued snapshots in order outside mu. When it returns, everything
// queued before the call has been persisted, by this or a concurrent flush.
func (m *Manager) flush() {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	items := m.persistQ
	m.persistQ = nil
	m.mu.Unlock()

	for _, it := range items {
		if it.task != nil {
			m.save(*it.task)
		}
		if it.terminal != nil {
			close(it.terminal)
		}
	}
}

func (m *Manager) save(t model.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.repo.SaveTask(ctx, t); err != nil {
		m.logger.WithValues(log.Kv{"task-id": t.ID}).Errorf("Could not persist task: %s", err)
	}
}

func (m *Manager) publishLocked(evType model.TaskEventType, t model.Task) {
	if len(m.subs) == 0 {
		return
	}

	ev := model.TaskEvent{Type: evType, At: time.Now().UTC()}
	for _, ch := range m.subs {
		ev.Task = t.Clone()
		select {
		case ch <- ev:
		default:
			m.logger.Debugf("Subscriber buffer full, dropping %s event for task %s", evType, t.ID)
		}
	}
}
