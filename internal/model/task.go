package model

import (
	"fmt"
	"time"
)

// TaskStatus represents the lifecycle state of an effect task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal returns true when no more transitions can happen from the status.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Valid returns true if the status is a known one.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusQueued, TaskStatusRunning, TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// rank orders non terminal states, terminal states share the highest rank.
func (s TaskStatus) rank() int {
	switch s {
	case TaskStatusQueued:
		return 0
	case TaskStatusRunning:
		return 1
	default:
		return 2
	}
}

// CanTransitionTo returns true if moving from s to next respects the task state machine:
// terminal states are sinks and running never goes back to queued.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	if s.IsTerminal() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// TaskErrorCode classifies why a task failed.
type TaskErrorCode string

const (
	TaskErrorCodeNone              TaskErrorCode = ""
	TaskErrorCodeBackendFailed     TaskErrorCode = "backend_failed"
	TaskErrorCodeTimeout           TaskErrorCode = "timeout"
	TaskErrorCodeResultFetchFailed TaskErrorCode = "result_fetch_failed"
)

// Task is a single effect application job submitted to the backend.
type Task struct {
	// ID is the backend assigned task identifier.
	ID       string
	EffectID string
	Status   TaskStatus
	// Progress is a percentage in the [0, 100] range.
	Progress  float64
	Error     string
	ErrorCode TaskErrorCode
	// Results are the artifact references (URLs) in backend order.
	Results      []string
	PollAttempts int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastPolledAt *time.Time
}

// Clone returns a deep copy of the task.
func (t Task) Clone() Task {
	c := t
	if t.Results != nil {
		c.Results = append([]string(nil), t.Results...)
	}
	if t.LastPolledAt != nil {
		lp := *t.LastPolledAt
		c.LastPolledAt = &lp
	}
	return c
}

// Err returns the task failure as an error wrapping the matching sentinel,
// nil if the task didn't fail.
func (t Task) Err() error {
	if t.Status != TaskStatusFailed {
		return nil
	}

	msg := t.Error
	if msg == "" {
		msg = "task failed"
	}

	switch t.ErrorCode {
	case TaskErrorCodeTimeout:
		return fmt.Errorf("%s: %w", msg, ErrTimeout)
	case TaskErrorCodeResultFetchFailed:
		return fmt.Errorf("%s: %w", msg, ErrResultFetch)
	}
	return fmt.Errorf("%s", msg)
}

// TaskState is the status of a task as reported by the backend on a single poll.
type TaskState struct {
	Status TaskStatus
	// Progress is nil when the backend didn't report any.
	Progress *float64
	// Message is the backend message, normally set on failures.
	Message string
	// RawStatus is the status string as received from the backend.
	RawStatus string
}

// TaskEventType is the kind of change a task event notifies.
type TaskEventType string

const (
	TaskEventCreated  TaskEventType = "created"
	TaskEventUpdated  TaskEventType = "updated"
	TaskEventTerminal TaskEventType = "terminal"
	TaskEventRemoved  TaskEventType = "removed"
)

// TaskEvent notifies a change on a task of the active task table.
type TaskEvent struct {
	Type TaskEventType
	Task Task
	At   time.Time
}

// AggregateState is the read-only projection of the active task table
// that UIs render from.
type AggregateState struct {
	// IsProcessing is true when any task is queued or running.
	IsProcessing bool
	// Progress is the average progress of the tasks in the table.
	Progress float64
	// TaskProgress is the progress of each task by ID.
	TaskProgress map[string]float64
	// Latest is the most recently created task in the table, nil if empty.
	Latest *Task
	// IsCancelled is true when the latest task was cancelled.
	IsCancelled bool
}
