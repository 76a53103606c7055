package task

import (
	"context"
	"fmt"
	"time"

	"github.com/slok/fxtask/internal/model"
)

const resultFetchFailedMsg = "succeeded upstream but result retrieval failed"

type pollOutcome int

const (
	pollContinue pollOutcome = iota
	pollFetch
	pollStop
)

// run is the poll loop of a single task. Every wait is an explicit timer so a
// cancellation interrupts the loop at any point, and every poll (failed or not)
// consumes one attempt.
func (m *Manager) run(ctx context.Context, e *entry) {
	defer m.wg.Done()

	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		state, err := m.poller.PollOnce(ctx, e.task.ID)
		if ctx.Err() != nil {
			return
		}

		switch m.applyPoll(e, attempt, state, err) {
		case pollStop:
			return
		case pollFetch:
			m.fetch(ctx, e)
			return
		}

		timer.Reset(m.pollInterval)
	}

	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.task.Status.IsTerminal() {
		return
	}
	m.finishLocked(e, func(t *model.Task) {
		t.Status = model.TaskStatusFailed
		t.ErrorCode = model.TaskErrorCodeTimeout
		t.Error = fmt.Sprintf("no terminal status after %d poll attempts", m.maxAttempts)
	})
	e.logger.Errorf("Task timed out: %s", e.task.Err())
}

// applyPoll updates the task with a single poll result.
func (m *Manager) applyPoll(e *entry, attempt int, state *model.TaskState, pollErr error) pollOutcome {
	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()

	// A cancellation won the race with this poll.
	if e.task.Status.IsTerminal() {
		return pollStop
	}

	now := time.Now().UTC()
	e.task.PollAttempts = attempt
	e.task.LastPolledAt = &now
	e.task.UpdatedAt = now

	if pollErr != nil || state == nil {
		if pollErr == nil {
			pollErr = fmt.Errorf("empty poll response: %w", model.ErrPollTransient)
		}
		e.logger.Warningf("Poll attempt %d/%d failed: %s", attempt, m.maxAttempts, pollErr)
		m.changedLocked(e, model.TaskEventUpdated)
		return pollContinue
	}

	if state.Progress != nil {
		e.task.Progress = max(e.task.Progress, clampProgress(*state.Progress))
	}

	switch state.Status {
	case model.TaskStatusSucceeded:
		if e.task.Status == model.TaskStatusQueued {
			e.task.Status = model.TaskStatusRunning
		}
		m.changedLocked(e, model.TaskEventUpdated)
		return pollFetch

	case model.TaskStatusFailed:
		msg := state.Message
		if msg == "" {
			msg = "backend reported the task as failed"
		}
		m.finishLocked(e, func(t *model.Task) {
			t.Status = model.TaskStatusFailed
			t.ErrorCode = model.TaskErrorCodeBackendFailed
			t.Error = msg
		})
		e.logger.Errorf("Task failed on backend: %s", msg)
		return pollStop

	case model.TaskStatusCancelled:
		m.finishLocked(e, func(t *model.Task) { t.Status = model.TaskStatusCancelled })
		e.logger.Infof("Task cancelled on backend")
		return pollStop
	}

	if e.task.Status.CanTransitionTo(state.Status) {
		e.task.Status = state.Status
	}
	e.logger.Debugf("Task %s (%.0f%%) after poll attempt %d/%d", e.task.Status, e.task.Progress, attempt, m.maxAttempts)
	m.changedLocked(e, model.TaskEventUpdated)

	return pollContinue
}

// fetch retrieves the results once the backend reported success. A failure here
// fails the task, it's never retried.
func (m *Manager) fetch(ctx context.Context, e *entry) {
	results, err := m.fetcher.FetchResults(ctx, e.task.ID)
	if ctx.Err() != nil {
		return
	}

	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.task.Status.IsTerminal() {
		return
	}

	if err != nil {
		m.finishLocked(e, func(t *model.Task) {
			t.Status = model.TaskStatusFailed
			t.ErrorCode = model.TaskErrorCodeResultFetchFailed
			t.Error = fmt.Sprintf("%s: %s", resultFetchFailedMsg, err)
		})
		e.logger.Errorf("Task result retrieval failed: %s", err)
		return
	}

	m.finishLocked(e, func(t *model.Task) {
		t.Status = model.TaskStatusSucceeded
		t.Progress = 100
		t.Results = append([]string(nil), results...)
	})
	e.logger.Infof("Task succeeded with %d results", len(results))
}

func clampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
