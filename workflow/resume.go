package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResumePolicy decides what happens to a resume value that can't be parsed.
type ResumePolicy string

const (
	// FailOpen treats unrecognized input as approval and records why.
	FailOpen ResumePolicy = "fail_open"

	// FailClosed rejects unrecognized input and leaves the thread suspended.
	FailClosed ResumePolicy = "fail_closed"
)

// ParsePolicy converts a config string into a ResumePolicy.
func ParsePolicy(s string) (ResumePolicy, error) {
	switch ResumePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown resume policy %q (want %s or %s)", s, FailOpen, FailClosed)
}

const editPrefix = "edit:"

// ParseResume normalizes a resume value into Feedback.
//
// Accepted forms:
//   - "approve", "reject", "edit:<replacement text>" (keyword case-insensitive)
//   - Feedback or *Feedback
//   - map[string]any / map[string]string with action, edited_text and
//     message (feedback_message is accepted for message)
//   - JSON ([]byte or json.RawMessage) holding a string or such an object
//
// Anything else is handled by policy.
func ParseResume(v any, policy ResumePolicy) (Feedback, error) {
	fb, ok := parseResume(v)
	if ok {
		return fb, nil
	}
	if policy == FailClosed {
		return Feedback{}, fmt.Errorf("%w: %s", ErrUnrecognizedResume, describe(v))
	}
	return Feedback{
		Action:  ActionApprove,
		Message: "unrecognized response treated as approval: " + describe(v),
	}, nil
}

func parseResume(v any) (Feedback, bool) {
	switch x := v.(type) {
	case string:
		return parseString(x)
	case Feedback:
		return checked(x)
	case *Feedback:
		if x == nil {
			return Feedback{}, false
		}
		return checked(*x)
	case map[string]any:
		return parseMap(func(k string) (string, bool) {
			s, ok := x[k].(string)
			return s, ok
		})
	case map[string]string:
		return parseMap(func(k string) (string, bool) {
			s, ok := x[k]
			return s, ok
		})
	case json.RawMessage:
		return parseJSON(x)
	case []byte:
		return parseJSON(x)
	}
	return Feedback{}, false
}

func parseString(s string) (Feedback, bool) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	switch {
	case lower == string(ActionApprove):
		return Feedback{Action: ActionApprove}, true
	case lower == string(ActionReject):
		return Feedback{Action: ActionReject}, true
	case strings.HasPrefix(lower, editPrefix):
		return checked(Feedback{
			Action:     ActionEdit,
			EditedText: strings.TrimSpace(trimmed[len(editPrefix):]),
		})
	}
	return Feedback{}, false
}

func parseMap(get func(string) (string, bool)) (Feedback, bool) {
	action, ok := get("action")
	if !ok {
		return Feedback{}, false
	}
	fb := Feedback{Action: Action(strings.ToLower(strings.TrimSpace(action)))}
	if text, ok := get("edited_text"); ok {
		fb.EditedText = strings.TrimSpace(text)
	}
	if msg, ok := get("message"); ok {
		fb.Message = msg
	} else if msg, ok := get("feedback_message"); ok {
		fb.Message = msg
	}
	// edited_text sent alongside approve/reject is ignored
	if fb.Action != ActionEdit {
		fb.EditedText = ""
	}
	return checked(fb)
}

func parseJSON(data []byte) (Feedback, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return parseString(s)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Feedback{}, false
	}
	return parseResume(m)
}

func checked(fb Feedback) (Feedback, bool) {
	if err := fb.Validate(); err != nil {
		return Feedback{}, false
	}
	return fb, true
}

func describe(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("%q", string(x))
	case json.RawMessage:
		return string(x)
	}
	return fmt.Sprintf("%v", v)
}
