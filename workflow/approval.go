package workflow

import (
	"fmt"

	"github.com/randalmurphal/socialflow/platform"
)

// AllowedResponses lists the reply forms a reviewer may send.
var AllowedResponses = []string{"approve", "reject", "edit:<text>"}

// ApprovalRequest is the payload a thread suspends with while it waits for
// a reviewer.
type ApprovalRequest struct {
	ThreadID     string            `json:"thread_id"`
	RenderedText string            `json:"rendered_text"`
	Platform     platform.Platform `json:"platform"`

	Length    int  `json:"length"`
	MaxLength int  `json:"max_length"`
	OverLimit bool `json:"over_limit"`

	AttemptNumber int `json:"attempt_number"`
	MaxAttempts   int `json:"max_attempts"`

	AllowedResponses []string `json:"allowed_responses"`
	Instructions     string   `json:"instructions"`

	// ResumeToken must accompany the reply when tokens are enforced. It is
	// filled from the interrupt, not stored in the payload.
	ResumeToken string `json:"resume_token,omitempty"`
}

func newApprovalRequest(s State) ApprovalRequest {
	pol, err := platform.Lookup(s.Platform)
	maxLen := 0
	if err == nil {
		maxLen = pol.MaxLength
	}
	length := s.Draft.Length()
	return ApprovalRequest{
		ThreadID:         s.ThreadID,
		RenderedText:     s.Draft.RenderedText(),
		Platform:         s.Platform,
		Length:           length,
		MaxLength:        maxLen,
		OverLimit:        maxLen > 0 && length > maxLen,
		AttemptNumber:    s.AttemptCount,
		MaxAttempts:      s.MaxAttempts,
		AllowedResponses: append([]string(nil), AllowedResponses...),
		Instructions:     approvalInstructions(s, length, maxLen),
	}
}

func approvalInstructions(s State, length, maxLen int) string {
	text := fmt.Sprintf(
		"Review this %s post (draft %d of %d, %d/%d characters).\n"+
			"Reply with:\n"+
			"- 'approve' to publish as-is\n"+
			"- 'reject' to generate a new draft\n"+
			"- 'edit: <your edited text>' to publish with modifications",
		s.Platform, s.AttemptCount, s.MaxAttempts, length, maxLen)
	if maxLen > 0 && length > maxLen {
		text += fmt.Sprintf("\nThe draft is %d characters over the limit and will be rejected by %s unless edited.",
			length-maxLen, s.Platform)
	}
	return text
}
