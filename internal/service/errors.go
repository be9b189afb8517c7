package service

import "errors"

var (
	// ErrInsufficientCredits is returned when a reservation would exceed
	// the tenant's remaining balance. Nothing is mutated in that case.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotReady is returned when publish is requested for an item that
	// has not reached DONE.
	ErrNotReady = errors.New("item result not ready for publish")

	// ErrAlreadyTerminal is returned when a transition is attempted on an
	// item that already reached DONE or FAILED.
	ErrAlreadyTerminal = errors.New("item already in a terminal state")

	// ErrNotCancelable is returned when cancellation is requested for a
	// job that already finished.
	ErrNotCancelable = errors.New("job is not cancelable")

	// ErrSubmitConflict is returned when a generation submit is recorded
	// for an item that is no longer RUNNING, preventing duplicate
	// submissions to the external provider.
	ErrSubmitConflict = errors.New("item already submitted or finished")

	// errAlreadyPublished signals a duplicate PublishRecord insert; it is
	// resolved to an idempotent success before reaching callers.
	errAlreadyPublished = errors.New("publish record already exists")
)
