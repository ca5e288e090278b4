package store

import "errors"

// Sentinel errors returned by task store operations.
var (
	// ErrTaskNotFound is returned when a task lookup matches no row.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoWaitingTasks is returned by FetchNext when the queue has no
	// waiting row to claim.
	ErrNoWaitingTasks = errors.New("no waiting tasks")

	// ErrInvalidTransition is returned when a status update would move a
	// task backward in its lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)
