package runner

import (
	"errors"
	"fmt"

	"github.com/roach88/uow/internal/command"
)

// ExecError reports a failed run. The transaction was rolled back and
// rollback hooks fired before it was returned.
type ExecError struct {
	// Code identifies the error category.
	Code ExecErrorCode

	// Token identifies the run.
	Token string

	// Kind and Table describe the failing leaf, when there is one.
	Kind  command.Kind
	Table string

	// Err is the underlying driver or hook error.
	Err error
}

// ExecErrorCode categorizes run failures.
type ExecErrorCode string

const (
	// ErrCodeBegin indicates the driver could not open a transaction.
	ErrCodeBegin ExecErrorCode = "BEGIN_FAILED"

	// ErrCodeWrite indicates a physical write failed.
	ErrCodeWrite ExecErrorCode = "WRITE_FAILED"

	// ErrCodeUnresolvedScope indicates an update or delete whose key never
	// became known.
	ErrCodeUnresolvedScope ExecErrorCode = "UNRESOLVED_SCOPE"

	// ErrCodeCommit indicates the transaction failed to commit.
	ErrCodeCommit ExecErrorCode = "COMMIT_FAILED"
)

// Error implements the error interface.
func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s (run=%s)", e.Code, e.Token)
	if e.Table != "" {
		msg = fmt.Sprintf("%s (run=%s, %s %s)", e.Code, e.Token, e.Kind, e.Table)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error { return e.Err }

// IsExecError returns true if err is (or wraps) an ExecError.
func IsExecError(err error) bool {
	var ee *ExecError
	return errors.As(err, &ee)
}

// ExecErrorCodeOf returns the code of a wrapped ExecError, or "".
func ExecErrorCodeOf(err error) ExecErrorCode {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

func errUnresolved(column string) error {
	return fmt.Errorf("scope column %q has no value", column)
}
