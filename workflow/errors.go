package workflow

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/socialflow/checkpoint"
	"github.com/randalmurphal/socialflow/graph"
	"github.com/randalmurphal/socialflow/platform"
)

// Sentinel errors.
var (
	ErrNotFound           = checkpoint.ErrNotFound
	ErrNoDraft            = errors.New("no draft to review")
	ErrNoFeedback         = errors.New("no feedback to apply")
	ErrUnrecognizedResume = errors.New("unrecognized resume value")
	ErrNotTerminal        = errors.New("thread has not finished")
	ErrInvalidRequest     = errors.New("invalid request")
)

// GenerationError means the completion collaborator produced no usable draft.
type GenerationError struct {
	Attempt int
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// PublishError means a publish adapter rejected or failed the post.
type PublishError struct {
	Platform platform.Platform
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s failed: %v", e.Platform, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// IsGeneration reports whether err is a GenerationError.
func IsGeneration(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// IsPublish reports whether err is a PublishError.
func IsPublish(err error) bool {
	var pe *PublishError
	return errors.As(err, &pe)
}

// IsPersistence reports whether err came from the checkpoint store.
func IsPersistence(err error) bool {
	return checkpoint.IsPersistence(err)
}

// IsInvalidResume reports whether a resume request was rejected without
// touching the thread.
func IsInvalidResume(err error) bool {
	return graph.IsInvalidResume(err)
}
