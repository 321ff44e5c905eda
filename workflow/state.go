package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/randalmurphal/socialflow/platform"
)

// DefaultMaxAttempts is the regeneration budget when a request sets none.
const DefaultMaxAttempts = 3

// =============================================================================
// Status
// =============================================================================

// Status drives branching through the post workflow.
type Status string

// Status values.
const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusPublished       Status = "published"
	StatusFailed          Status = "failed"
)

// Terminal reports whether no further node may run.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// =============================================================================
// Draft
// =============================================================================

// Draft is a generated candidate post.
type Draft struct {
	Body      string            `json:"body"`
	Platform  platform.Platform `json:"platform"`
	Hashtags  []string          `json:"hashtags,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// RenderedText is the body followed by a blank line and the hashtags.
// With no hashtags it is just the body.
func (d Draft) RenderedText() string {
	if len(d.Hashtags) == 0 {
		return d.Body
	}
	tags := make([]string, len(d.Hashtags))
	for i, h := range d.Hashtags {
		tags[i] = "#" + h
	}
	return d.Body + "\n\n" + strings.Join(tags, " ")
}

// Length is the character count of RenderedText.
func (d Draft) Length() int {
	return utf8.RuneCountInString(d.RenderedText())
}

func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	out := *d
	out.Hashtags = append([]string(nil), d.Hashtags...)
	return &out
}

// =============================================================================
// Feedback
// =============================================================================

// Action is a reviewer's decision.
type Action string

// Reviewer actions.
const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionEdit    Action = "edit"
)

// Feedback is the normalized form of a resume value.
type Feedback struct {
	Action     Action `json:"action"`
	EditedText string `json:"edited_text,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Validate checks that edited text is present exactly when action is edit.
func (f Feedback) Validate() error {
	switch f.Action {
	case ActionApprove, ActionReject:
		if f.EditedText != "" {
			return fmt.Errorf("edited_text only allowed with action %q", ActionEdit)
		}
	case ActionEdit:
		if strings.TrimSpace(f.EditedText) == "" {
			return fmt.Errorf("action %q requires edited_text", ActionEdit)
		}
	default:
		return fmt.Errorf("unknown action %q", f.Action)
	}
	return nil
}

// =============================================================================
// Message History
// =============================================================================

// Message roles.
const (
	RoleAssistant = "assistant"
	RoleReviewer  = "reviewer"
	RoleSystem    = "system"
)

// Message is one entry in a thread's append-only history.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// =============================================================================
// State
// =============================================================================

// State is the record threaded through every node of a post workflow.
// Nodes never modify it; they return an Update that Merge applies.
type State struct {
	ThreadID string `json:"thread_id"`

	// Inputs, fixed at creation.
	Topic        string            `json:"topic"`
	Platform     platform.Platform `json:"platform"`
	Tone         string            `json:"tone"`
	ExtraContext string            `json:"extra_context,omitempty"`

	Draft    *Draft    `json:"draft,omitempty"`
	Status   Status    `json:"status"`
	Feedback *Feedback `json:"feedback,omitempty"`

	AttemptCount int `json:"attempt_count"`
	MaxAttempts  int `json:"max_attempts"`

	PublishedURL string `json:"published_url,omitempty"`
	PublishedID  string `json:"published_id,omitempty"`
	Error        string `json:"error,omitempty"`

	Messages  []Message `json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Terminal reports whether the thread is finished.
func (s State) Terminal() bool {
	return s.Status.Terminal()
}

// Validate checks the cross-field invariants of a reachable state.
func (s State) Validate() error {
	var errs []error
	if s.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max_attempts must be >= 1, got %d", s.MaxAttempts))
	}
	if s.AttemptCount < 0 || s.AttemptCount > s.MaxAttempts {
		errs = append(errs, fmt.Errorf("attempt_count %d outside [0, %d]", s.AttemptCount, s.MaxAttempts))
	}
	switch s.Status {
	case StatusPendingApproval, StatusApproved, StatusPublished:
		if s.Draft == nil {
			errs = append(errs, fmt.Errorf("status %s requires a draft", s.Status))
		}
	case StatusDraft, StatusRejected, StatusFailed:
	default:
		errs = append(errs, fmt.Errorf("unknown status %q", s.Status))
	}
	if s.Status == StatusPublished && s.PublishedURL == "" {
		errs = append(errs, errors.New("published state without url"))
	}
	if s.Status == StatusFailed && s.Error == "" {
		errs = append(errs, errors.New("failed state without error"))
	}
	if s.Feedback != nil {
		if err := s.Feedback.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Summary is a one-line human description.
func (s State) Summary() string {
	out := fmt.Sprintf("%s [%s] %s post on %q (attempt %d/%d)",
		s.ThreadID, s.Status, s.Platform, s.Topic, s.AttemptCount, s.MaxAttempts)
	switch {
	case s.PublishedURL != "":
		out += ": " + s.PublishedURL
	case s.Error != "":
		out += ": " + s.Error
	}
	return out
}
