package hearth

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyResolved indicates an approval queue entry was already
	// approved, denied or otherwise removed. Acting on it twice is a
	// no-op, not a failure.
	ErrAlreadyResolved = errors.New("entry already resolved")

	// ErrSessionBusy indicates a transition was dropped because another
	// transition on the same session was still in flight.
	ErrSessionBusy = errors.New("session transition in flight")

	// ErrSessionClosed indicates the session reached a terminal state and
	// accepts no further transitions.
	ErrSessionClosed = errors.New("session closed")
)

// ValidationError indicates user input did not satisfy a transition's
// precondition (bad threshold, unknown channel mention, unknown command
// name). The workflow stays in its current state and nothing is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// PermissionError indicates a mutating action was attempted by a user
// without guild-management permission. No guard is acquired and no state
// changes.
type PermissionError struct {
	UserID  string
	GuildID string
}

func (e PermissionError) Error() string {
	return fmt.Sprintf(
		"user %s lacks management permission in guild %s",
		e.UserID,
		e.GuildID,
	)
}

// PlatformError wraps a failed Discord send/edit/delete. The controller
// attempts best-effort cleanup and transitions to done rather than
// retrying indefinitely.
type PlatformError struct {
	Op  string
	Err error
}

func (e PlatformError) Error() string {
	return fmt.Sprintf("platform %s: %s", e.Op, e.Err)
}

func (e PlatformError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failed guild state load or save. The in-memory
// mutation is discarded so the user is never shown success for a write
// that didn't take.
type PersistenceError struct {
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %s", e.Op, e.Err)
}

func (e PersistenceError) Unwrap() error {
	return e.Err
}

// StaleReferenceError indicates an approval ID or leaderboard entry no
// longer existed when acted upon. Treated as already-resolved.
type StaleReferenceError struct {
	Kind string
	ID   string
}

func (e StaleReferenceError) Error() string {
	return fmt.Sprintf("%s %q no longer exists", e.Kind, e.ID)
}

func (StaleReferenceError) Is(target error) bool {
	return target == ErrAlreadyResolved
}
