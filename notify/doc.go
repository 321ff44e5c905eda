// Package notify tells people about post workflow events: a draft waiting
// for review, a published post, a thread that failed.
//
// Core types:
//   - Notifier: Interface for sending notifications
//   - Event: Notification event with type, message, and metadata
//
// Implementations:
//   - SlackNotifier: Sends notifications to Slack webhooks
//   - WebhookNotifier: Sends notifications to generic webhooks
//   - LogNotifier: Logs notifications
//   - MultiNotifier: Combines multiple notifiers
//   - NopNotifier: Discards everything
//
// Example usage:
//
//	notifier := notify.NewSlackNotifier(webhookURL,
//	    notify.WithSlackChannel("#social-review"),
//	)
//	err := notifier.Notify(ctx, notify.Event{
//	    Type:     notify.EventApprovalRequested,
//	    ThreadID: "post-4f9x2k1m8q7z",
//	    Message:  "Draft 1 of 3 is waiting for review",
//	})
package notify
