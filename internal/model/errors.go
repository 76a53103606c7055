package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource or operation is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrValidation is returned when an effect request lacks required input.
	// It is always detected before any network call.
	ErrValidation = fmt.Errorf("validation error: %w", ErrNotValid)
	// ErrSubmission is returned when the backend rejects or fails to accept a task.
	ErrSubmission = errors.New("submission error")
	// ErrPollTransient is returned when a single status poll fails.
	ErrPollTransient = errors.New("transient poll error")
	// ErrTimeout is used when a task exhausts its poll attempts.
	ErrTimeout = errors.New("timeout error")
	// ErrResultFetch is returned when the results of a succeeded task can't be retrieved.
	ErrResultFetch = errors.New("result fetch error")
	// ErrCancellation is returned when the backend cancel request fails.
	ErrCancellation = errors.New("cancellation error")
)

// BackendError is an error answered by the effects backend.
type BackendError struct {
	// Kind is the sentinel error this backend error belongs to (e.g ErrSubmission).
	Kind error
	// StatusCode is the HTTP status code, 0 if the error happened before getting a response.
	StatusCode int
	// Message is the message returned by the backend, if any.
	Message string
}

func (e *BackendError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: backend answered %d: %s", e.Kind, e.StatusCode, msg)
}

func (e *BackendError) Unwrap() error { return e.Kind }
