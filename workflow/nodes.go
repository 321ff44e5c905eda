package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/socialflow/generate"
	"github.com/randalmurphal/socialflow/graph"
	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/publish"
)

// Node names.
const (
	NodeDraft           = "draft"
	NodeRequestApproval = "request_approval"
	NodeApplyFeedback   = "apply_feedback"
	NodePublish         = "publish"
)

// Default per-call timeouts for the external collaborators.
const (
	DefaultDraftTimeout   = 2 * time.Minute
	DefaultPublishTimeout = 30 * time.Second
)

// Nodes holds the collaborators the workflow nodes call out to.
type Nodes struct {
	Generator  generate.Generator
	Publishers *publish.Registry
	Policy     ResumePolicy

	// Zero timeouts fall back to the defaults.
	DraftTimeout   time.Duration
	PublishTimeout time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

func (n *Nodes) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

func (n *Nodes) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n *Nodes) message(role, content string) Message {
	return Message{Role: role, Content: content, Time: n.now()}
}

func maxAttemptsReached(s State) string {
	return fmt.Sprintf("max generation attempts (%d) reached", s.MaxAttempts)
}

// =============================================================================
// draft
// =============================================================================

// Draft generates a candidate post.
//
// Updates: Draft, Status, AttemptCount, Feedback, Error, Messages
//
// A generation failure with attempts left is returned as an error, so the
// thread keeps its last checkpoint and can be continued. On the last
// permitted attempt the failure is recorded and the thread ends.
func (n *Nodes) Draft(ctx context.Context, s State) (Update, error) {
	if s.AttemptCount >= s.MaxAttempts {
		msg := maxAttemptsReached(s)
		return Update{
			Status:   Set(StatusFailed),
			Error:    Set(msg),
			Messages: []Message{n.message(RoleSystem, msg)},
		}, nil
	}

	attempt := s.AttemptCount + 1
	content, err := n.generate(ctx, s)
	if err != nil {
		gerr := &GenerationError{Attempt: attempt, Err: err}
		if attempt < s.MaxAttempts {
			n.logger().Warn("draft generation failed",
				"thread_id", s.ThreadID,
				"attempt", attempt,
				"error", err,
			)
			return Update{}, gerr
		}
		return Update{
			Status:       Set(StatusFailed),
			AttemptCount: Set(attempt),
			Error:        Set(gerr.Error()),
			Messages:     []Message{n.message(RoleSystem, gerr.Error())},
		}, nil
	}

	draft := &Draft{
		Body:      content.Body,
		Platform:  s.Platform,
		Hashtags:  content.Hashtags,
		CreatedAt: n.now(),
	}
	if pol, err := platform.Lookup(s.Platform); err == nil {
		draft.Hashtags = pol.NormalizeHashtags(draft.Hashtags)
	}

	return Update{
		Draft:        Set(draft),
		Status:       Set(StatusPendingApproval),
		AttemptCount: Set(attempt),
		Feedback:     Clear[*Feedback](),
		Error:        Clear[string](),
		Messages: []Message{n.message(RoleAssistant,
			fmt.Sprintf("Generated %s post:\n\n%s", s.Platform, draft.RenderedText()))},
	}, nil
}

func (n *Nodes) generate(ctx context.Context, s State) (generate.Content, error) {
	if n.Generator == nil {
		return generate.Content{}, errors.New("no generator configured")
	}
	timeout := n.DraftTimeout
	if timeout <= 0 {
		timeout = DefaultDraftTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	content, err := n.Generator.Generate(ctx, generate.Request{
		Topic:        s.Topic,
		Platform:     s.Platform,
		Tone:         s.Tone,
		ExtraContext: s.ExtraContext,
		Notes:        reviewerNotes(s.Messages),
	})
	if err != nil {
		return generate.Content{}, err
	}
	if strings.TrimSpace(content.Body) == "" {
		return generate.Content{}, generate.ErrEmptyCompletion
	}
	return content, nil
}

// reviewerNotes collects what reviewers said about earlier drafts.
func reviewerNotes(msgs []Message) []string {
	var notes []string
	for _, m := range msgs {
		if m.Role == RoleReviewer {
			notes = append(notes, m.Content)
		}
	}
	return notes
}

// =============================================================================
// request_approval
// =============================================================================

// RequestApproval suspends the thread with an ApprovalRequest. When resumed
// it records the reviewer's decision as Feedback.
//
// Updates: Feedback, Messages
func (n *Nodes) RequestApproval(ctx context.Context, s State) (Update, error) {
	if s.Draft == nil {
		return Update{}, ErrNoDraft
	}

	v, ok := graph.ResumeValue(ctx)
	if !ok {
		return Update{}, graph.Suspend(newApprovalRequest(s))
	}

	fb, err := ParseResume(v, n.Policy)
	if err != nil {
		return Update{}, graph.NewInvalidResume(s.ThreadID, err.Error())
	}

	return Update{
		Feedback: Set(&fb),
		Messages: []Message{n.message(RoleReviewer, describeFeedback(fb))},
	}, nil
}

func describeFeedback(fb Feedback) string {
	out := string(fb.Action)
	if fb.Action == ActionEdit {
		out += ": " + fb.EditedText
	}
	if fb.Message != "" {
		out += " (" + fb.Message + ")"
	}
	return out
}

// =============================================================================
// apply_feedback
// =============================================================================

// ApplyFeedback turns the reviewer's decision into a status.
//
// Updates: Status, Draft, Feedback, Error, Messages
func (n *Nodes) ApplyFeedback(ctx context.Context, s State) (Update, error) {
	if s.Feedback == nil {
		return Update{}, ErrNoFeedback
	}

	switch s.Feedback.Action {
	case ActionApprove:
		return Update{Status: Set(StatusApproved)}, nil

	case ActionReject:
		if s.AttemptCount >= s.MaxAttempts {
			msg := maxAttemptsReached(s)
			return Update{
				Status:   Set(StatusFailed),
				Error:    Set(msg),
				Messages: []Message{n.message(RoleSystem, msg)},
			}, nil
		}
		return Update{
			Status:   Set(StatusDraft),
			Feedback: Clear[*Feedback](),
		}, nil

	case ActionEdit:
		if s.Draft == nil {
			return Update{}, ErrNoDraft
		}
		edited := s.Draft.clone()
		edited.Body = s.Feedback.EditedText
		return Update{
			Draft:  Set(edited),
			Status: Set(StatusApproved),
		}, nil
	}
	return Update{}, fmt.Errorf("unknown feedback action %q", s.Feedback.Action)
}

// =============================================================================
// branch
// =============================================================================

// Route picks the node after apply_feedback.
func Route(_ context.Context, s State) string {
	switch s.Status {
	case StatusApproved:
		return NodePublish
	case StatusDraft:
		return NodeDraft
	}
	return graph.END
}

// =============================================================================
// publish
// =============================================================================

// Publish posts the approved draft. Failures are recorded on the thread and
// never retried.
//
// Updates: Status, PublishedURL, PublishedID, Error, Messages
func (n *Nodes) Publish(ctx context.Context, s State) (Update, error) {
	if s.Draft == nil {
		return Update{}, ErrNoDraft
	}

	res, err := n.publish(ctx, s)
	if err != nil {
		perr := &PublishError{Platform: s.Platform, Err: err}
		n.logger().Error("publish failed", "thread_id", s.ThreadID, "error", err)
		return Update{
			Status:   Set(StatusFailed),
			Error:    Set(perr.Error()),
			Messages: []Message{n.message(RoleSystem, perr.Error())},
		}, nil
	}

	return Update{
		Status:       Set(StatusPublished),
		PublishedURL: Set(res.URL),
		PublishedID:  Set(res.ID),
		Error:        Clear[string](),
		Messages: []Message{n.message(RoleSystem,
			fmt.Sprintf("Published to %s: %s", s.Platform, res.URL))},
	}, nil
}

func (n *Nodes) publish(ctx context.Context, s State) (publish.Result, error) {
	if n.Publishers == nil {
		return publish.Result{}, publish.ErrNoPublisher
	}
	p, err := n.Publishers.Get(s.Platform)
	if err != nil {
		return publish.Result{}, err
	}
	timeout := n.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Publish(ctx, s.Draft.RenderedText())
}
