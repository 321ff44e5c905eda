package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/socialflow/notify"
)

// outcomeEvent builds the notification for where a run stopped. ok is false
// when the stop is not worth telling anyone about.
func outcomeEvent(o Outcome, now time.Time) (notify.Event, bool) {
	s := o.State
	ev := notify.Event{
		ThreadID:  s.ThreadID,
		Platform:  string(s.Platform),
		Timestamp: now,
		Metadata:  eventMetadata(s),
	}

	switch {
	case o.Approval != nil:
		ev.Type = notify.EventApprovalRequested
		ev.Severity = notify.SeverityInfo
		ev.Message = fmt.Sprintf("Draft %d of %d for %q is waiting for review",
			s.AttemptCount, s.MaxAttempts, s.Topic)
		ev.Metadata["length"] = o.Approval.Length
		ev.Metadata["draft"] = o.Approval.RenderedText
		if o.Approval.OverLimit {
			ev.Severity = notify.SeverityWarning
		}
	case s.Status == StatusPublished:
		ev.Type = notify.EventPostPublished
		ev.Severity = notify.SeverityInfo
		ev.Message = "Published: " + s.PublishedURL
	case s.Status == StatusFailed:
		ev.Type = notify.EventRunFailed
		ev.Severity = notify.SeverityError
		ev.Message = s.Error
	default:
		return notify.Event{}, false
	}
	return ev, true
}

func eventMetadata(s State) map[string]any {
	meta := map[string]any{
		"topic":    s.Topic,
		"status":   string(s.Status),
		"attempts": s.AttemptCount,
	}
	if s.PublishedURL != "" {
		meta["url"] = s.PublishedURL
	}
	return meta
}

// send delivers ev and logs failures. Notification errors never fail a run.
func send(ctx context.Context, n notify.Notifier, logger *slog.Logger, ev notify.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		logger.Warn("notification failed", "type", ev.Type, "thread_id", ev.ThreadID, "error", err)
	}
}
