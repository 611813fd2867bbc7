package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition: from, to, or event cannot be nil")
	ErrInvalidEvent      = errors.New("invalid event: event cannot be nil")
	ErrInvalidState      = errors.New("invalid state: state cannot be nil")

	// ErrNoTransition means the table has no transition for the pair.
	ErrNoTransition = errors.New("no transition available")
	// ErrRejected means every candidate transition failed a guard.
	ErrRejected = errors.New("transition rejected by guards")
)

// TransitionError reports why Fire could not move from a state on an event.
// It matches ErrNoTransition or ErrRejected through errors.Is.
type TransitionError struct {
	From   string
	Event  string
	Reason error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: state '%s', event '%s'", e.Reason, e.From, e.Event)
}

func (e *TransitionError) Unwrap() error { return e.Reason }

// IsTransitionError reports whether err was returned because the table does
// not allow the move, as opposed to an action failure or bad arguments.
func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}
