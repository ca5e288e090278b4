package session

import "errors"

// Sentinel errors returned by session store operations.
var (
	// ErrNoCurrentUser is returned when no drive account is active.
	ErrNoCurrentUser = errors.New("no current user")

	// ErrUserNotFound is returned when a username matches no stored
	// session.
	ErrUserNotFound = errors.New("user not found")
)
