package graph

import (
	"errors"
	"fmt"
)

// Build errors.
var (
	ErrNoEntry          = errors.New("entry node not set")
	ErrNodeNotFound     = errors.New("node not found")
	ErrDuplicateNode    = errors.New("duplicate node")
	ErrReservedName     = errors.New("reserved node name")
	ErrNoOutgoing       = errors.New("node has no outgoing edge")
	ErrMultipleOutgoing = errors.New("node has more than one outgoing edge")
)

// Run errors.
var (
	ErrThreadExists    = errors.New("thread already exists")
	ErrThreadDone      = errors.New("thread already finished")
	ErrThreadSuspended = errors.New("thread is waiting for a resume value")
	ErrMaxSteps        = errors.New("max steps exceeded")
	ErrInvalidRoute    = errors.New("router returned an undeclared target")
)

// InvalidResumeError is returned when a resume request cannot apply to the
// thread. The thread is left exactly as it was.
type InvalidResumeError struct {
	ThreadID string
	Reason   string
}

func (e *InvalidResumeError) Error() string {
	return fmt.Sprintf("invalid resume for thread %s: %s", e.ThreadID, e.Reason)
}

// NewInvalidResume builds an InvalidResumeError.
func NewInvalidResume(threadID, reason string) *InvalidResumeError {
	return &InvalidResumeError{ThreadID: threadID, Reason: reason}
}

// IsInvalidResume reports whether err is (or wraps) an InvalidResumeError.
func IsInvalidResume(err error) bool {
	var ir *InvalidResumeError
	return errors.As(err, &ir)
}

// NodeError wraps a failure returned by a node.
type NodeError struct {
	Node string
	Step int
	Err  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s (step %d): %v", e.Node, e.Step, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered panic from a node.
type PanicError struct {
	Node  string
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}
