package lib

import (
	"maps"
	"slices"
	"time"

	"github.com/slok/fxtask/internal/model"
)

// BackendType identifies the effects backend implementation.
type BackendType string

const (
	// BackendAPI talks to the effects backend HTTP API.
	BackendAPI BackendType = "api"
	// BackendFake uses an in-memory scripted backend that succeeds every task.
	// Use this for unit testing without infrastructure dependencies.
	BackendFake BackendType = "fake"
)

// TaskStatus represents the lifecycle state of a task.
//
// The lifecycle is:
//
//	queued -> running -> succeeded | failed | cancelled
//
// Terminal states never change.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal returns true when the status can't change anymore.
func (s TaskStatus) IsTerminal() bool { return model.TaskStatus(s).IsTerminal() }

// TaskErrorCode classifies why a task failed.
type TaskErrorCode string

const (
	TaskErrorCodeNone              TaskErrorCode = ""
	TaskErrorCodeBackendFailed     TaskErrorCode = "backend_failed"
	TaskErrorCodeTimeout           TaskErrorCode = "timeout"
	TaskErrorCodeResultFetchFailed TaskErrorCode = "result_fetch_failed"
)

// Task is a snapshot of a tracked effect task at the time of the call.
type Task struct {
	// ID is the backend assigned task identifier.
	ID       string
	EffectID string
	Status   TaskStatus
	// Progress is a percentage in the [0, 100] range, it never decreases.
	Progress float64
	// Error is the failure message, only set on failed tasks.
	Error     string
	ErrorCode TaskErrorCode
	// Results are the artifact URLs in backend order, only set on succeeded tasks.
	Results      []string
	PollAttempts int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastPolledAt *time.Time
}

// Err returns the failure of a failed task as an error matching [ErrTimeout] or
// [ErrResultFetch] when applicable. It returns nil for any other status.
func (t Task) Err() error {
	return mapError(toInternalTask(t).Err())
}

// EffectRequest is the input to apply an AI effect on one or more images.
type EffectRequest struct {
	EffectID   string
	Parameters map[string]any
	Images     []ImagePayload
	// RequiredImages are the image parameter names that must have a payload.
	// When empty at least one image is required.
	RequiredImages []string
}

// ImagePayload is an image bound to an effect parameter. Set Data to upload the
// image bytes or URL to reference an already uploaded image.
type ImagePayload struct {
	Param    string
	Data     []byte
	Filename string
	URL      string
}

// TaskEventType is the kind of change a [TaskEvent] notifies.
type TaskEventType string

const (
	TaskEventCreated  TaskEventType = "created"
	TaskEventUpdated  TaskEventType = "updated"
	TaskEventTerminal TaskEventType = "terminal"
	TaskEventRemoved  TaskEventType = "removed"
)

// TaskEvent is a task change notification.
type TaskEvent struct {
	Type TaskEventType
	Task Task
	At   time.Time
}

// AggregateState summarizes all the tracked tasks, ready to be rendered by a UI.
type AggregateState struct {
	// IsProcessing is true when any task is queued or running.
	IsProcessing bool
	// Progress is the average progress of the tracked tasks.
	Progress float64
	// TaskProgress is the progress of each task by ID.
	TaskProgress map[string]float64
	// Latest is the most recently created task, nil if there are none.
	Latest *Task
	// IsCancelled is true when the latest task was cancelled.
	IsCancelled bool
}

// HistoryOpts filters the task history.
type HistoryOpts struct {
	// Status only returns tasks with this status when set.
	Status *TaskStatus
	// EffectID only returns tasks of this effect when set.
	EffectID string
	// Limit is the max number of tasks, 0 means all.
	Limit int
}

func toInternalEffectRequest(r EffectRequest) model.EffectRequest {
	images := make([]model.ImagePayload, 0, len(r.Images))
	for _, img := range r.Images {
		images = append(images, model.ImagePayload{
			Param:    img.Param,
			Data:     img.Data,
			Filename: img.Filename,
			URL:      img.URL,
		})
	}

	return model.EffectRequest{
		EffectID:       r.EffectID,
		Parameters:     maps.Clone(r.Parameters),
		Images:         images,
		RequiredImages: slices.Clone(r.RequiredImages),
	}
}

func toInternalTask(t Task) model.Task {
	return model.Task{
		ID:           t.ID,
		EffectID:     t.EffectID,
		Status:       model.TaskStatus(t.Status),
		Progress:     t.Progress,
		Error:        t.Error,
		ErrorCode:    model.TaskErrorCode(t.ErrorCode),
		Results:      slices.Clone(t.Results),
		PollAttempts: t.PollAttempts,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		LastPolledAt: t.LastPolledAt,
	}
}

func fromInternalTask(t model.Task) Task {
	return Task{
		ID:           t.ID,
		EffectID:     t.EffectID,
		Status:       TaskStatus(t.Status),
		Progress:     t.Progress,
		Error:        t.Error,
		ErrorCode:    TaskErrorCode(t.ErrorCode),
		Results:      slices.Clone(t.Results),
		PollAttempts: t.PollAttempts,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		LastPolledAt: t.LastPolledAt,
	}
}

func fromInternalTaskList(ts []model.Task) []Task {
	result := make([]Task, 0, len(ts))
	for _, t := range ts {
		result = append(result, fromInternalTask(t))
	}
	return result
}

func fromInternalEvent(ev model.TaskEvent) TaskEvent {
	return TaskEvent{
		Type: TaskEventType(ev.Type),
		Task: fromInternalTask(ev.Task),
		At:   ev.At,
	}
}

func fromInternalState(s model.AggregateState) AggregateState {
	state := AggregateState{
		IsProcessing: s.IsProcessing,
		Progress:     s.Progress,
		TaskProgress: maps.Clone(s.TaskProgress),
		IsCancelled:  s.IsCancelled,
	}
	if s.Latest != nil {
		t := fromInternalTask(*s.Latest)
		state.Latest = &t
	}
	return state
}

func toInternalStatusFilter(s *TaskStatus) *model.TaskStatus {
	if s == nil {
		return nil
	}
	st := model.TaskStatus(*s)
	return &st
}
