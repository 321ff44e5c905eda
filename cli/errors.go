package cli

import (
	"errors"
	"fmt"
)

// ExitError reports a command failure whose details were already printed.
// Execute returns Code without printing anything further.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an ExitError with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError extracts the exit code from err. Returns (0, false) for nil
// or other errors.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

// Exit codes.
const (
	ExitFailed = 1

	// ExitPostFailed means the thread ended in the failed state.
	ExitPostFailed = 2
)
