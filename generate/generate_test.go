package generate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/task"
)

func TestLLMGenerator(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses(
		"  \"Alignment research is a team sport.\"  ",
		"AI\n#safety\n- alignment\nresearch\nextra",
	)
	g := NewLLMGenerator(NewClientCompleter(mock))

	got, err := g.Generate(context.Background(), Request{
		Topic:    "AI safety",
		Platform: platform.Twitter,
		Tone:     "casual",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alignment research is a team sport.", got.Body)
	assert.Equal(t, []string{"AI", "safety", "alignment"}, got.Hashtags)
	assert.Equal(t, 2, mock.CallCount())
}

type recordingCompleter struct {
	mu      sync.Mutex
	prompts []Prompt
	answers []string
	err     error
}

func (r *recordingCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, p)
	if r.err != nil {
		return "", r.err
	}
	if len(r.answers) == 0 {
		return "", nil
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a, nil
}

func TestLLMGeneratorPrompts(t *testing.T) {
	rec := &recordingCompleter{answers: []string{"Body text", "a\nb\nc\nd\ne\nf"}}
	g := NewLLMGenerator(rec)

	got, err := g.Generate(context.Background(), Request{
		Topic:        "Remote work",
		Platform:     platform.LinkedIn,
		Tone:         "professional",
		ExtraContext: "mention async standups",
		Notes:        []string{"too generic"},
	})
	require.NoError(t, err)
	assert.Len(t, got.Hashtags, 5)

	require.Len(t, rec.prompts, 2)
	draft := rec.prompts[0]
	assert.Contains(t, draft.System, "LinkedIn")
	assert.Contains(t, draft.System, "## Style")
	assert.Contains(t, draft.User, "Topic: Remote work")
	assert.Contains(t, draft.User, "mention async standups")
	assert.Contains(t, draft.User, "too generic")
	assert.Equal(t, string(task.SelectModel(task.Revise)), draft.Model)

	tags := rec.prompts[1]
	assert.Contains(t, tags.User, `"Body text"`)
	assert.Contains(t, tags.User, "Suggest 5")
	assert.Equal(t, string(task.SelectModel(task.Hashtags)), tags.Model)
}

func TestLLMGeneratorFixedModel(t *testing.T) {
	rec := &recordingCompleter{answers: []string{"Body", "tag"}}
	g := NewLLMGenerator(rec, WithModels(task.FixedModel("gpt-4o")))

	_, err := g.Generate(context.Background(), Request{Topic: "x", Platform: platform.Twitter})
	require.NoError(t, err)
	for _, p := range rec.prompts {
		assert.Equal(t, "gpt-4o", p.Model)
	}
}

func TestLLMGeneratorErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown platform", func(t *testing.T) {
		g := NewLLMGenerator(&recordingCompleter{})
		_, err := g.Generate(ctx, Request{Topic: "x", Platform: "myspace"})
		assert.ErrorIs(t, err, platform.ErrUnknown)
	})

	t.Run("completion failure", func(t *testing.T) {
		boom := errors.New("rate limited")
		g := NewLLMGenerator(&recordingCompleter{err: boom})
		_, err := g.Generate(ctx, Request{Topic: "x", Platform: platform.Twitter})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty body", func(t *testing.T) {
		g := NewLLMGenerator(&recordingCompleter{answers: []string{"   "}})
		_, err := g.Generate(ctx, Request{Topic: "x", Platform: platform.Twitter})
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("hashtag failure", func(t *testing.T) {
		mock := llm.NewMockClient("").WithCompleteFunc(func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if req.SystemPrompt == "" {
				return nil, errors.New("hashtags down")
			}
			return &llm.CompletionResponse{Content: "Body"}, nil
		})
		g := NewLLMGenerator(NewClientCompleter(mock))
		_, err := g.Generate(ctx, Request{Topic: "x", Platform: platform.Twitter})
		assert.ErrorContains(t, err, "suggest hashtags")
	})
}

func TestCleanBody(t *testing.T) {
	tests := map[string]string{
		`  plain  `:          "plain",
		`"quoted"`:           "quoted",
		`“curly”`:            "curly",
		`"a" and "b"`:        `"a" and "b"`,
		`'single'`:           "single",
		"\n\nmulti\nline\n": "multi\nline",
		`"unbalanced`:        `"unbalanced`,
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanBody(in), in)
	}
}

func TestParseHashtags(t *testing.T) {
	got := ParseHashtags("1. AI\n2) safety\n- #ml, #data\n\n* 2024Goals\n")
	assert.Equal(t, []string{"AI", "safety", "#ml", "#data", "2024Goals"}, got)
	assert.Empty(t, ParseHashtags("  \n "))
}

func TestFuncAdapter(t *testing.T) {
	var g Generator = Func(func(ctx context.Context, req Request) (Content, error) {
		return Content{Body: "about " + req.Topic}, nil
	})
	got, err := g.Generate(context.Background(), Request{Topic: "go"})
	require.NoError(t, err)
	assert.Equal(t, "about go", got.Body)
}

func TestOpenAICompleter(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "hello world"},
				"finish_reason": "stop"
			}]
		}`)
	}))
	defer srv.Close()

	c, err := NewOpenAICompleter(OpenAISettings{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "gpt-4o"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Prompt{System: "sys", User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestOpenAISettingsValidation(t *testing.T) {
	_, err := NewOpenAICompleter(OpenAISettings{Model: "gpt-4o"})
	assert.ErrorContains(t, err, "api key")
	_, err = NewOpenAICompleter(OpenAISettings{APIKey: "k"})
	assert.ErrorContains(t, err, "model")
}
