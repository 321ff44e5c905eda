package notify

import (
	"context"
	"time"
)

// =============================================================================
// Notification Types
// =============================================================================

// EventType represents the type of post workflow event.
type EventType string

// Event type constants.
const (
	EventThreadStarted     EventType = "thread_started"
	EventApprovalRequested EventType = "approval_requested"
	EventPostPublished     EventType = "post_published"
	EventRunFailed         EventType = "run_failed"

	// EventGenerationFailed is a drafting failure the thread can be
	// continued from.
	EventGenerationFailed EventType = "generation_failed"
)

// Severity constants.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a post workflow event.
type Event struct {
	Type      EventType      `json:"type"`
	ThreadID  string         `json:"thread_id"`
	Platform  string         `json:"platform"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"` // SeverityInfo, SeverityWarning, SeverityError
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends notifications about post workflow events.
type Notifier interface {
	// Notify sends a notification. Callers treat errors as non-fatal.
	Notify(ctx context.Context, event Event) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}
