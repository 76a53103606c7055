package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/fxtask/internal/model"
)

func TestTaskStatusCanTransitionTo(t *testing.T) {
	tests := map[string]struct {
		from model.TaskStatus
		to   model.TaskStatus
		exp  bool
	}{
		"Queued to running should be allowed.":        {from: model.TaskStatusQueued, to: model.TaskStatusRunning, exp: true},
		"Queued to queued should be allowed.":         {from: model.TaskStatusQueued, to: model.TaskStatusQueued, exp: true},
		"Running to running should be allowed.":       {from: model.TaskStatusRunning, to: model.TaskStatusRunning, exp: true},
		"Running to succeeded should be allowed.":     {from: model.TaskStatusRunning, to: model.TaskStatusSucceeded, exp: true},
		"Queued to failed should be allowed.":         {from: model.TaskStatusQueued, to: model.TaskStatusFailed, exp: true},
		"Queued to cancelled should be allowed.":      {from: model.TaskStatusQueued, to: model.TaskStatusCancelled, exp: true},
		"Running to queued should not be allowed.":    {from: model.TaskStatusRunning, to: model.TaskStatusQueued, exp: false},
		"Succeeded to running should not be allowed.": {from: model.TaskStatusSucceeded, to: model.TaskStatusRunning, exp: false},
		"Failed to succeeded should not be allowed.":  {from: model.TaskStatusFailed, to: model.TaskStatusSucceeded, exp: false},
		"Cancelled to failed should not be allowed.":  {from: model.TaskStatusCancelled, to: model.TaskStatusFailed, exp: false},
		"Unknown statuses should not be allowed.":     {from: model.TaskStatusQueued, to: model.TaskStatus("wat"), exp: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, test.from.CanTransitionTo(test.to))
		})
	}
}

func TestTaskClone(t *testing.T) {
	now := time.Now()
	task := model.Task{
		ID:           "t1",
		Results:      []string{"a", "b"},
		LastPolledAt: &now,
	}

	c := task.Clone()
	c.Results[0] = "changed"
	*c.LastPolledAt = now.Add(time.Hour)

	assert.Equal(t, []string{"a", "b"}, task.Results)
	assert.Equal(t, now, *task.LastPolledAt)
}

func TestBackendError(t *testing.T) {
	err := &model.BackendError{Kind: model.ErrSubmission, StatusCode: 400, Message: "bad effect"}

	assert.True(t, errors.Is(err, model.ErrSubmission))
	assert.False(t, errors.Is(err, model.ErrResultFetch))
	assert.Equal(t, "submission error: backend answered 400: bad effect", err.Error())
}

func TestTaskErr(t *testing.T) {
	tests := map[string]struct {
		task   model.Task
		expNil bool
		expIs  error
		expMsg string
	}{
		"A non failed task should not have an error.": {
			task:   model.Task{Status: model.TaskStatusCancelled, Error: "ignored"},
			expNil: true,
		},
		"A timed out task should wrap the timeout error.": {
			task:   model.Task{Status: model.TaskStatusFailed, Error: "no terminal status", ErrorCode: model.TaskErrorCodeTimeout},
			expIs:  model.ErrTimeout,
			expMsg: "no terminal status: timeout error",
		},
		"A task failed on result retrieval should wrap the result fetch error.": {
			task:   model.Task{Status: model.TaskStatusFailed, Error: "retrieval failed", ErrorCode: model.TaskErrorCodeResultFetchFailed},
			expIs:  model.ErrResultFetch,
			expMsg: "retrieval failed: result fetch error",
		},
		"A backend failure should use the backend message.": {
			task:   model.Task{Status: model.TaskStatusFailed, Error: "face not detected", ErrorCode: model.TaskErrorCodeBackendFailed},
			expMsg: "face not detected",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.task.Err()
			if test.expNil {
				assert.NoError(t, err)
				return
			}

			assert.EqualError(t, err, test.expMsg)
			if test.expIs != nil {
				assert.True(t, errors.Is(err, test.expIs))
			}
		})
	}
}
