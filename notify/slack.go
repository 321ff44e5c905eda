package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// SlackNotifier
// =============================================================================

// SlackNotifier posts review messages to a Slack incoming webhook. Drafts
// waiting for review are quoted in full with the command that answers them.
type SlackNotifier struct {
	WebhookURL string
	Channel    string
	Username   string

	// ReplyCommand prefixes the reply hint, e.g. "socialflow approve".
	ReplyCommand string

	Client *http.Client
}

// SlackOption configures SlackNotifier.
type SlackOption func(*SlackNotifier)

// WithSlackChannel overrides the webhook's default channel.
func WithSlackChannel(channel string) SlackOption {
	return func(n *SlackNotifier) { n.Channel = channel }
}

// WithSlackUsername sets the bot username.
func WithSlackUsername(username string) SlackOption {
	return func(n *SlackNotifier) { n.Username = username }
}

// WithReplyCommand sets the command shown under drafts waiting for review.
func WithReplyCommand(cmd string) SlackOption {
	return func(n *SlackNotifier) { n.ReplyCommand = cmd }
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string, opts ...SlackOption) *SlackNotifier {
	n := &SlackNotifier{
		WebhookURL:   webhookURL,
		Username:     "socialflow",
		ReplyCommand: "socialflow approve",
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify implements Notifier.
func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(n.payload(event))
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

func (n *SlackNotifier) payload(event Event) slackPayload {
	headline := headlineFor(event.Type)
	blocks := []slackBlock{
		markdownSection(fmt.Sprintf("*%s*\n%s", headline, slackEscape(event.Message))),
	}

	switch event.Type {
	case EventApprovalRequested:
		if draft, ok := event.Metadata["draft"].(string); ok && draft != "" {
			blocks = append(blocks, markdownSection(quote(slackEscape(draft))))
		}
		if n.ReplyCommand != "" {
			blocks = append(blocks, markdownSection(fmt.Sprintf(
				"Reply with `%s %s` (or `reject`, `edit:<text>`)", n.ReplyCommand, event.ThreadID)))
		}
	case EventPostPublished:
		if url, ok := event.Metadata["url"].(string); ok && url != "" {
			blocks = append(blocks, markdownSection(fmt.Sprintf("<%s|View post>", url)))
		}
	}
	blocks = append(blocks, contextBlock(event))

	return slackPayload{
		Username: n.Username,
		Channel:  n.Channel,
		Text:     fmt.Sprintf("%s: %s", headline, event.Message),
		Attachments: []slackAttachment{{
			Color:  colorForSeverity(event.Severity),
			Blocks: blocks,
		}},
	}
}

func headlineFor(t EventType) string {
	switch t {
	case EventThreadStarted:
		return "Drafting started"
	case EventApprovalRequested:
		return "Draft ready for review"
	case EventPostPublished:
		return "Post published"
	case EventRunFailed:
		return "Post failed"
	case EventGenerationFailed:
		return "Drafting failed"
	}
	return string(t)
}

func colorForSeverity(severity string) string {
	switch severity {
	case SeverityError:
		return "danger"
	case SeverityWarning:
		return "warning"
	}
	return "good"
}

func contextBlock(event Event) slackBlock {
	parts := []string{event.Platform, "`" + event.ThreadID + "`"}
	if n, ok := number(event.Metadata["attempts"]); ok {
		parts = append(parts, fmt.Sprintf("attempt %d", n))
	}
	if n, ok := number(event.Metadata["length"]); ok {
		parts = append(parts, fmt.Sprintf("%d chars", n))
	}
	return slackBlock{
		Type:     "context",
		Elements: []slackText{{Type: "mrkdwn", Text: strings.Join(parts, " · ")}},
	}
}

// number reads ints that may have been through a JSON round trip.
func number(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	}
	return 0, false
}

func markdownSection(text string) slackBlock {
	return slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}}
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// slackEscape escapes the three characters Slack treats as control
// sequences in mrkdwn.
func slackEscape(s string) string {
	return slackEscaper.Replace(s)
}

type slackPayload struct {
	Username    string            `json:"username,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color,omitempty"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
