package workflow

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseResume(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  Feedback
	}{
		{"approve", "approve", Feedback{Action: ActionApprove}},
		{"approve mixed case", "  Approve ", Feedback{Action: ActionApprove}},
		{"reject", "REJECT", Feedback{Action: ActionReject}},
		{"edit", "edit: New copy ", Feedback{Action: ActionEdit, EditedText: "New copy"}},
		{"edit keeps case of text", "Edit:Hello World", Feedback{Action: ActionEdit, EditedText: "Hello World"}},
		{"feedback value", Feedback{Action: ActionReject, Message: "too long"}, Feedback{Action: ActionReject, Message: "too long"}},
		{"feedback pointer", &Feedback{Action: ActionApprove}, Feedback{Action: ActionApprove}},
		{
			"map any",
			map[string]any{"action": "edit", "edited_text": " New copy "},
			Feedback{Action: ActionEdit, EditedText: "New copy"},
		},
		{
			"map string with feedback_message",
			map[string]string{"action": "Reject", "feedback_message": "off-brand"},
			Feedback{Action: ActionReject, Message: "off-brand"},
		},
		{
			"edited text ignored on approve",
			map[string]any{"action": "approve", "edited_text": "ignored"},
			Feedback{Action: ActionApprove},
		},
		{"json string", json.RawMessage(`"approve"`), Feedback{Action: ActionApprove}},
		{
			"json object bytes",
			[]byte(`{"action":"reject","message":"try again"}`),
			Feedback{Action: ActionReject, Message: "try again"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, policy := range []ResumePolicy{FailOpen, FailClosed} {
				got, err := ParseResume(tt.value, policy)
				require.NoError(t, err, policy)
				assert.Equal(t, tt.want, got, policy)
			}
		})
	}
}

func TestParseResumeUnrecognized(t *testing.T) {
	inputs := []any{
		"lgtm",
		"",
		"edit:",
		"edit:   ",
		42,
		nil,
		(*Feedback)(nil),
		map[string]any{"action": "maybe"},
		map[string]any{"action": "edit"},
		map[string]any{"message": "no action"},
		[]byte(`{not json`),
		Feedback{Action: ActionEdit},
	}

	for _, in := range inputs {
		_, err := ParseResume(in, FailClosed)
		assert.True(t, errors.Is(err, ErrUnrecognizedResume), "%#v: %v", in, err)

		fb, err := ParseResume(in, FailOpen)
		require.NoError(t, err)
		assert.Equal(t, ActionApprove, fb.Action)
		assert.Contains(t, fb.Message, "unrecognized response treated as approval")
	}
}

func TestParseResumeFailOpenDescribesInput(t *testing.T) {
	fb, err := ParseResume("ship it", FailOpen)
	require.NoError(t, err)
	assert.Equal(t, `unrecognized response treated as approval: "ship it"`, fb.Message)
}

func TestParseResumeAlwaysValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.OneOf(
			rapid.SampledFrom([]string{"approve", "reject", "edit:", "edit: x", "Edit: Y"}),
			rapid.String(),
		).Draw(t, "input")
		policy := rapid.SampledFrom([]ResumePolicy{FailOpen, FailClosed}).Draw(t, "policy")

		fb, err := ParseResume(in, policy)
		if err != nil {
			if policy == FailOpen {
				t.Fatalf("fail-open returned error: %v", err)
			}
			return
		}
		if verr := fb.Validate(); verr != nil {
			t.Fatalf("parsed feedback %+v is invalid: %v", fb, verr)
		}
	})
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]ResumePolicy{
		"":            FailOpen,
		"fail_open":   FailOpen,
		" FAIL_OPEN ": FailOpen,
		"fail_closed": FailClosed,
		"Fail_Closed": FailClosed,
	} {
		got, err := ParsePolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParsePolicy("strict")
	assert.Error(t, err)
}
