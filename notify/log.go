package notify

import (
	"context"
	"log/slog"
	"sort"
)

// LogNotifier writes events to a slog logger. It is the notifier used when
// no webhook or Slack channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs to logger, or to the default
// logger when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{Logger: logger}
}

// Notify implements Notifier. The full draft is left out of the record.
func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}

	attrs := []slog.Attr{
		slog.String("event", string(event.Type)),
		slog.String("thread_id", event.ThreadID),
		slog.String("platform", event.Platform),
	}
	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		if k != "draft" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, event.Metadata[k]))
	}

	n.Logger.LogAttrs(ctx, level, event.Message, attrs...)
	return nil
}
