package lib

import (
	"context"
	"sync"
)

// ProcessTask validates and submits an effect request and starts tracking the
// created task in the background. The returned task is queued.
//
// Returns [ErrValidation] when the request lacks required input (no network
// call is made) and [ErrSubmission] when the backend does not accept the task.
// Submission is never retried.
func (c *Client) ProcessTask(ctx context.Context, req EffectRequest) (*Task, error) {
	t, err := c.manager.ProcessTask(ctx, toInternalEffectRequest(req))
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, nil
}

// CancelTask marks a task as cancelled and stops tracking it. The backend is
// notified in the background and its failures are only logged.
//
// Returns [ErrNotFound] if the task is not tracked and [ErrNotValid] (with the
// unchanged task) if it already finished.
func (c *Client) CancelTask(taskID string) (*Task, error) {
	t, err := c.manager.CancelTask(taskID)
	if t == nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, mapError(err)
}

// CancelAll cancels every unfinished task and returns the cancelled ones.
func (c *Client) CancelAll() []Task {
	return fromInternalTaskList(c.manager.CancelAll())
}

// GetTask returns a tracked task.
//
// Returns [ErrNotFound] if the task is not tracked.
func (c *Client) GetTask(taskID string) (*Task, error) {
	t, err := c.manager.Task(taskID)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, nil
}

// ListTasks returns the tracked tasks in creation order.
func (c *Client) ListTasks() []Task {
	return fromInternalTaskList(c.manager.Tasks())
}

// State returns the aggregated view of the tracked tasks.
func (c *Client) State() AggregateState {
	return fromInternalState(c.manager.State())
}

// Acknowledge stops tracking a finished task. It stays on the history.
//
// Returns [ErrNotFound] if the task is not tracked and [ErrNotValid] if it
// has not finished.
func (c *Client) Acknowledge(taskID string) error {
	return mapError(c.manager.Acknowledge(taskID))
}

// Wait blocks until the task finishes or the context is done. Closing the client
// while waiting returns [ErrNotValid].
func (c *Client) Wait(ctx context.Context, taskID string) (*Task, error) {
	t, err := c.manager.Wait(ctx, taskID)
	if err != nil {
		return nil, mapError(err)
	}

	result := fromInternalTask(*t)
	return &result, nil
}

// Subscribe returns a channel receiving every task change and a function to
// stop the subscription. Events are dropped for subscribers that don't keep up.
// The channel is closed after calling the stop function or closing the client.
func (c *Client) Subscribe() (<-chan TaskEvent, func()) {
	in, unsubscribe := c.manager.Subscribe()
	out := make(chan TaskEvent, cap(in))
	done := make(chan struct{})

	go func() {
		defer close(out)
		for ev := range in {
			select {
			case out <- fromInternalEvent(ev):
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			unsubscribe()
		})
	}
}
