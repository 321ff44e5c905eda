package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sfhttp "github.com/randalmurphal/socialflow/http"
	"github.com/randalmurphal/socialflow/platform"
)

func TestValidateContent(t *testing.T) {
	r := NewRecorder(platform.Twitter)

	var verr *ValidationError
	require.ErrorAs(t, ValidateContent(r, "  \n"), &verr)
	assert.Equal(t, "content cannot be empty", verr.Reason)

	require.ErrorAs(t, ValidateContent(r, strings.Repeat("a", 281)), &verr)
	assert.Contains(t, verr.Error(), "281 characters exceeds the limit of 280")

	// 280 multi-byte runes is still within the limit.
	assert.NoError(t, ValidateContent(r, strings.Repeat("é", 280)))
}

func TestRegistry(t *testing.T) {
	tw := NewRecorder(platform.Twitter)
	reg := NewRegistry(tw)

	got, err := reg.Get(platform.Twitter)
	require.NoError(t, err)
	assert.Same(t, tw, got)

	_, err = reg.Get(platform.LinkedIn)
	assert.ErrorIs(t, err, ErrNoPublisher)

	reg.Register(NewRecorder(platform.LinkedIn))
	assert.Equal(t, []platform.Platform{platform.LinkedIn, platform.Twitter}, reg.Platforms())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(platform.LinkedIn)
	res, err := r.Publish(context.Background(), "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Contains(t, res.URL, res.ID)
	assert.Equal(t, []Post{{ID: res.ID, Text: "hello"}}, r.Posts())

	boom := errors.New("boom")
	r.FailWith(boom)
	_, err = r.Publish(context.Background(), "again")
	assert.ErrorIs(t, err, boom)
	assert.Len(t, r.Posts(), 1)
}

func TestX(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"1460323737035677698","text":"hi"}}`))
	}))
	defer srv.Close()

	x, err := NewX(context.Background(), XConfig{AccessToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := x.Publish(context.Background(), "hi #go")
	require.NoError(t, err)
	assert.Equal(t, "1460323737035677698", res.ID)
	assert.Equal(t, "https://x.com/i/web/status/1460323737035677698", res.URL)
	assert.Equal(t, "hi #go", got["text"])
}

func TestXErrors(t *testing.T) {
	_, err := NewX(context.Background(), XConfig{})
	assert.True(t, sfhttp.IsUnauthorized(err))

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"title":"Forbidden","detail":"duplicate content"}`))
	}))
	defer srv.Close()

	x, err := NewX(context.Background(), XConfig{AccessToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = x.Publish(context.Background(), "dup")
	assert.True(t, sfhttp.IsForbidden(err))
	assert.ErrorContains(t, err, "duplicate content")

	_, err = x.Publish(context.Background(), strings.Repeat("a", 300))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, int32(1), calls.Load(), "over-limit content must not reach the API")
}

func TestLinkedIn(t *testing.T) {
	var userinfoCalls atomic.Int32
	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer li-tok", r.Header.Get("Authorization"))
		assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
		switch r.URL.Path {
		case "/v2/userinfo":
			userinfoCalls.Add(1)
			_, _ = w.Write([]byte(`{"sub":"abc123","name":"Test"}`))
		case "/v2/ugcPosts":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
			w.Header().Set("X-RestLi-Id", "urn:li:share:42")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	li, err := NewLinkedIn(context.Background(), LinkedInConfig{AccessToken: "li-tok", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := li.Publish(context.Background(), "Lessons from a year of remote work")
	require.NoError(t, err)
	assert.Equal(t, "urn:li:share:42", res.ID)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:42", res.URL)

	assert.Equal(t, "urn:li:person:abc123", posted["author"])
	assert.Equal(t, "PUBLISHED", posted["lifecycleState"])
	vis := posted["visibility"].(map[string]any)
	assert.Equal(t, "PUBLIC", vis["com.linkedin.ugc.MemberNetworkVisibility"])
	share := posted["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	assert.Equal(t, "Lessons from a year of remote work", share["shareCommentary"].(map[string]any)["text"])

	_, err = li.Publish(context.Background(), "second post")
	require.NoError(t, err)
	assert.Equal(t, int32(1), userinfoCalls.Load(), "author urn should be cached")
}

func TestLinkedInErrors(t *testing.T) {
	_, err := NewLinkedIn(context.Background(), LinkedInConfig{})
	assert.True(t, sfhttp.IsUnauthorized(err))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid access token","serviceErrorCode":65600}`))
	}))
	defer srv.Close()

	li, err := NewLinkedIn(context.Background(), LinkedInConfig{AccessToken: "expired", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = li.Publish(context.Background(), "hello")
	assert.True(t, sfhttp.IsUnauthorized(err))
	assert.ErrorContains(t, err, "Invalid access token")
}
