package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"

	sfhttp "github.com/randalmurphal/socialflow/http"
	"github.com/randalmurphal/socialflow/platform"
)

// DefaultLinkedInBaseURL is the LinkedIn API root.
const DefaultLinkedInBaseURL = "https://api.linkedin.com"

// urnTTL bounds how long the author URN is trusted. Tokens are per member,
// so the URN only changes if the token is replaced.
const urnTTL = 12 * time.Hour

// Visibility of a LinkedIn post.
type Visibility string

const (
	VisibilityPublic      Visibility = "PUBLIC"
	VisibilityConnections Visibility = "CONNECTIONS"
)

// LinkedInConfig configures the LinkedIn publisher.
type LinkedInConfig struct {
	// AccessToken is a member token with the w_member_social scope.
	AccessToken string
	BaseURL     string
	Visibility  Visibility
	Logger      *slog.Logger
}

// LinkedIn publishes member posts through the UGC posts API.
type LinkedIn struct {
	client     *sfhttp.Client
	policy     platform.Policy
	visibility Visibility
	urns       *cache.Cache
	logger     *slog.Logger
}

// NewLinkedIn creates a LinkedIn publisher.
func NewLinkedIn(ctx context.Context, cfg LinkedInConfig) (*LinkedIn, error) {
	if cfg.AccessToken == "" {
		return nil, &sfhttp.AuthError{Service: "linkedin", Reason: "access token not configured (set linkedin_access_token)"}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultLinkedInBaseURL
	}
	vis := cfg.Visibility
	if vis == "" {
		vis = VisibilityPublic
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	return &LinkedIn{
		client: sfhttp.NewClient(sfhttp.ClientConfig{
			Client:      oauth2.NewClient(ctx, ts),
			BaseURL:     base,
			ServiceName: "linkedin",
			Headers:     map[string]string{"X-Restli-Protocol-Version": "2.0.0"},
			Logger:      logger,
		}),
		policy:     platform.MustLookup(platform.LinkedIn),
		visibility: vis,
		urns:       cache.New(urnTTL, time.Hour),
		logger:     logger,
	}, nil
}

// Platform implements Publisher.
func (l *LinkedIn) Platform() platform.Platform { return platform.LinkedIn }

// MaxLength implements Publisher.
func (l *LinkedIn) MaxLength() int { return l.policy.MaxLength }

// AuthorURN returns the member URN of the token owner.
func (l *LinkedIn) AuthorURN(ctx context.Context) (string, error) {
	if v, ok := l.urns.Get("me"); ok {
		return v.(string), nil
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := l.client.Get(ctx, "/v2/userinfo", &info); err != nil {
		return "", fmt.Errorf("resolve linkedin author: %w", err)
	}
	if info.Sub == "" {
		return "", fmt.Errorf("resolve linkedin author: userinfo missing sub")
	}
	urn := "urn:li:person:" + info.Sub
	l.urns.SetDefault("me", urn)
	return urn, nil
}

// Publish implements Publisher.
func (l *LinkedIn) Publish(ctx context.Context, text string) (Result, error) {
	if err := ValidateContent(l, text); err != nil {
		return Result{}, err
	}
	author, err := l.AuthorURN(ctx)
	if err != nil {
		return Result{}, err
	}

	body := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": map[string]any{
				"shareCommentary":    map[string]string{"text": text},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": string(l.visibility),
		},
	}

	var resp struct {
		ID string `json:"id"`
	}
	hdr, err := l.client.Post(ctx, "/v2/ugcPosts", body, &resp)
	if err != nil {
		return Result{}, err
	}
	id := resp.ID
	if id == "" {
		id = hdr.Get("X-RestLi-Id")
	}
	if id == "" {
		return Result{}, fmt.Errorf("linkedin: response missing post id")
	}

	l.logger.Info("linkedin post created", "id", id)
	return Result{
		ID:  id,
		URL: "https://www.linkedin.com/feed/update/" + id,
	}, nil
}
