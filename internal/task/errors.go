package task

import (
	"errors"
	"fmt"
)

// TransientError marks a task failure as worth retrying. The scheduler may
// re-release the task while its retry budget lasts.
type TransientError struct {
	Err error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	return fmt.Sprintf("transient: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TransientError) Unwrap() error { return e.Err }

// TerminalError marks a task failure as permanent. All transitive dependents
// of the failed task are blocked and never released.
type TerminalError struct {
	Err error
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *TerminalError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure. A nil err returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Terminal wraps err as a permanent failure. A nil err returns nil.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// IsTransient reports whether err is classified as retryable. Unclassified
// errors are treated as terminal; task authors opt in to retries explicitly.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
