package session

import (
	"errors"
	"fmt"

	"github.com/dshills/navhistory/internal/navigation"
)

// Session errors.
var (
	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrNoHistory indicates there is no entry to move to.
	ErrNoHistory = navigation.ErrNoHistory
)

// OperationError represents an error that occurred during a session operation.
type OperationError struct {
	Op     string // Operation name (e.g., "open", "back", "close")
	Target string // Target of the operation (e.g., file path)
	Err    error  // Underlying error
}

// NewOperationError creates a new OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{
		Op:     op,
		Target: target,
		Err:    err,
	}
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op
	if e.Target != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Target)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is implements errors.Is for OperationError.
// Matches both the wrapper itself and the wrapped error.
func (e *OperationError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*OperationError); ok {
		return e == t
	}
	return errors.Is(e.Err, target)
}
