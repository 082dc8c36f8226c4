package command

import (
	"errors"
	"fmt"
)

// Kind names the command variant.
type Kind string

const (
	KindInsert   Kind = "insert"
	KindUpdate   Kind = "update"
	KindDelete   Kind = "delete"
	KindBranch   Kind = "branch"
	KindSequence Kind = "sequence"
	KindNil      Kind = "nil"
)

// Status is the position of a command in its lifecycle.
type Status int

const (
	// StatusPending is the initial state: queued, not yet written.
	StatusPending Status = iota
	// StatusExecuted means the physical write reported back.
	StatusExecuted
	// StatusCommitted means the enclosing transaction committed.
	StatusCommitted
	// StatusRolledBack means the enclosing transaction aborted.
	StatusRolledBack
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuted:
		return "executed"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrInvalidTransition is wrapped by every TransitionError.
var ErrInvalidTransition = errors.New("invalid command transition")

// TransitionError reports a state machine violation.
type TransitionError struct {
	Kind Kind
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s command: cannot move from %s to %s", e.Kind, e.From, e.To)
}

// Unwrap returns ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsTransitionError returns true if err is (or wraps) a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
