package lib

import (
	"errors"

	"github.com/slok/fxtask/internal/model"
)

var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a task with the same ID is already tracked.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid input or operations (e.g. cancelling a finished task).
	ErrNotValid = errors.New("not valid")
	// ErrValidation is returned when an effect request lacks required input. No
	// network call has been made when this error is returned.
	ErrValidation = errors.New("validation error")
	// ErrSubmission is returned when the backend rejects or fails to accept a task.
	ErrSubmission = errors.New("submission error")
	// ErrTimeout is returned by [Task.Err] when the task exhausted its poll attempts.
	ErrTimeout = errors.New("timeout error")
	// ErrResultFetch is returned by [Task.Err] when the task succeeded on the
	// backend but its results could not be retrieved.
	ErrResultFetch = errors.New("result fetch error")
	// ErrCancellation is returned when a backend cancel request fails.
	ErrCancellation = errors.New("cancellation error")
)

var errorMapping = []struct {
	internal error
	public   error
}{
	{model.ErrNotFound, ErrNotFound},
	{model.ErrAlreadyExists, ErrAlreadyExists},
	{model.ErrNotValid, ErrNotValid},
	{model.ErrValidation, ErrValidation},
	{model.ErrSubmission, ErrSubmission},
	{model.ErrTimeout, ErrTimeout},
	{model.ErrResultFetch, ErrResultFetch},
	{model.ErrCancellation, ErrCancellation},
}

// mapError keeps the original error message and makes it match every public
// sentinel its internal counterparts match.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var sentinels []error
	for _, m := range errorMapping {
		if errors.Is(err, m.internal) {
			sentinels = append(sentinels, m.public)
		}
	}
	if len(sentinels) == 0 {
		return err
	}

	return &mappedError{original: err, sentinels: sentinels}
}

type mappedError struct {
	original  error
	sentinels []error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	for _, s := range e.sentinels {
		if target == s {
			return true
		}
	}
	return false
}

func (e *mappedError) Unwrap() error { return e.original }
