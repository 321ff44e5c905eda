package integrationtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/socialflow/generate"
	"github.com/randalmurphal/socialflow/notify"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockWriter returns a generator whose completions cycle through responses.
// Each draft takes two completions: the body, then the hashtags.
func mockWriter(responses ...string) generate.Generator {
	mock := llm.NewMockClient("").WithResponses(responses...)
	return generate.NewLLMGenerator(generate.NewClientCompleter(mock), generate.WithLogger(discardLogger()))
}

// promptRecorder answers every completion and keeps the drafting prompts.
// Hashtag requests carry no system prompt.
type promptRecorder struct {
	mu      sync.Mutex
	prompts []string
}

func (p *promptRecorder) client() *llm.MockClient {
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if req.SystemPrompt == "" {
			return &llm.CompletionResponse{Content: "remote\nteams"}, nil
		}
		p.prompts = append(p.prompts, req.Messages[len(req.Messages)-1].Content)
		return &llm.CompletionResponse{Content: fmt.Sprintf("Remote work lesson %d.", len(p.prompts))}, nil
	})
}

func (p *promptRecorder) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts...)
}

// fakeX serves POST /2/tweets and records every text.
type fakeX struct {
	mu     sync.Mutex
	tweets []string
	srv    *httptest.Server
}

func newFakeX(t *testing.T) *fakeX {
	t.Helper()
	f := &fakeX{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets", r.URL.Path)
		var body struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		f.mu.Lock()
		f.tweets = append(f.tweets, body.Text)
		id := fmt.Sprintf("17000000000000000%02d", len(f.tweets))
		f.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":{"id":%q,"text":%q}}`, id, body.Text)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeX) Tweets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tweets...)
}

// fakeLinkedIn serves the userinfo and ugcPosts endpoints.
type fakeLinkedIn struct {
	mu    sync.Mutex
	posts []string
	srv   *httptest.Server
}

func newFakeLinkedIn(t *testing.T) *fakeLinkedIn {
	t.Helper()
	f := &fakeLinkedIn{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/userinfo":
			_, _ = w.Write([]byte(`{"sub":"member-1"}`))
		case "/v2/ugcPosts":
			var body struct {
				SpecificContent map[string]struct {
					ShareCommentary struct {
						Text string `json:"text"`
					} `json:"shareCommentary"`
				} `json:"specificContent"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.mu.Lock()
			f.posts = append(f.posts, body.SpecificContent["com.linkedin.ugc.ShareContent"].ShareCommentary.Text)
			n := len(f.posts)
			f.mu.Unlock()
			w.Header().Set("X-RestLi-Id", fmt.Sprintf("urn:li:share:%d", n))
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLinkedIn) Posts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

// webhookSink receives signed notify events.
type webhookSink struct {
	mu     sync.Mutex
	events []notify.Event
	srv    *httptest.Server
}

func newWebhookSink(t *testing.T, secret string) *webhookSink {
	t.Helper()
	s := &webhookSink{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, notify.Sign(secret, body), r.Header.Get(notify.SignatureHeader))

		var ev notify.Event
		require.NoError(t, json.Unmarshal(body, &ev))
		s.mu.Lock()
		s.events = append(s.events, ev)
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *webhookSink) Types() []notify.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}
