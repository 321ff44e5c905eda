package checkpoint

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNotFound        = errors.New("checkpoint not found")
	ErrVersionConflict = errors.New("checkpoint version conflict")
	ErrInvalidThreadID = errors.New("invalid thread id")
	ErrLockTimeout     = errors.New("timed out waiting for thread lock")
)

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op       string // save, load, delete, list, lock
	ThreadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.ThreadID == "" {
		return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.ThreadID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err is a store failure.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

func wrap(op, threadID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, ThreadID: threadID, Err: err}
}
