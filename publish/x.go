package publish

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	sfhttp "github.com/randalmurphal/socialflow/http"
	"github.com/randalmurphal/socialflow/platform"
)

// DefaultXBaseURL is the X API root.
const DefaultXBaseURL = "https://api.x.com"

// XConfig configures the X publisher.
type XConfig struct {
	// AccessToken is an OAuth 2.0 user access token with tweet.write scope.
	AccessToken string
	BaseURL     string
	Logger      *slog.Logger
}

// X publishes tweets through the v2 API.
type X struct {
	client *sfhttp.Client
	policy platform.Policy
	logger *slog.Logger
}

// NewX creates an X publisher. The token is wrapped in an oauth2 static
// token source so refresh-capable sources can be swapped in later.
func NewX(ctx context.Context, cfg XConfig) (*X, error) {
	if cfg.AccessToken == "" {
		return nil, &sfhttp.AuthError{Service: "x", Reason: "access token not configured (set x_access_token)"}
	}
	return NewXWithTokenSource(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}), cfg)
}

// NewXWithTokenSource creates an X publisher using ts for credentials.
func NewXWithTokenSource(ctx context.Context, ts oauth2.TokenSource, cfg XConfig) (*X, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultXBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &X{
		client: sfhttp.NewClient(sfhttp.ClientConfig{
			Client:      oauth2.NewClient(ctx, ts),
			BaseURL:     base,
			ServiceName: "x",
			Logger:      logger,
		}),
		policy: platform.MustLookup(platform.Twitter),
		logger: logger,
	}, nil
}

// Platform implements Publisher.
func (x *X) Platform() platform.Platform { return platform.Twitter }

// MaxLength implements Publisher.
func (x *X) MaxLength() int { return x.policy.MaxLength }

// Publish implements Publisher.
func (x *X) Publish(ctx context.Context, text string) (Result, error) {
	if err := ValidateContent(x, text); err != nil {
		return Result{}, err
	}

	var resp struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	if _, err := x.client.Post(ctx, "/2/tweets", map[string]string{"text": text}, &resp); err != nil {
		return Result{}, err
	}
	if resp.Data.ID == "" {
		return Result{}, fmt.Errorf("x: response missing tweet id")
	}

	x.logger.Info("tweet created", "id", resp.Data.ID)
	return Result{
		ID:  resp.Data.ID,
		URL: "https://x.com/i/web/status/" + resp.Data.ID,
	}, nil
}
