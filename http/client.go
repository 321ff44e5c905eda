package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the default number of attempts per request.
const DefaultMaxRetries = 3

// DefaultRetryWait is the default initial wait between retries.
const DefaultRetryWait = 1 * time.Second

// Client is a small JSON client with retries, shared by the platform
// publishers.
type Client struct {
	client      *http.Client
	baseURL     string
	serviceName string
	maxRetries  int
	retryWait   time.Duration
	headers     map[string]string
	logger      *slog.Logger

	// retryPost enables retries for non-idempotent requests. Off by default:
	// a retried POST can create a post twice.
	retryPost bool
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	// Client performs the requests. Platform adapters pass an oauth2 client
	// here so every request carries a bearer token.
	Client      *http.Client
	BaseURL     string
	ServiceName string
	MaxRetries  int
	RetryWait   time.Duration

	// Headers are set on every request.
	Headers map[string]string

	// RetryPost allows retrying POST requests on 429 and 5xx.
	RetryPost bool

	Logger *slog.Logger
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		client:      cfg.Client,
		baseURL:     cfg.BaseURL,
		serviceName: cfg.ServiceName,
		maxRetries:  cfg.MaxRetries,
		retryWait:   cfg.RetryWait,
		headers:     cfg.Headers,
		retryPost:   cfg.RetryPost,
		logger:      cfg.Logger,
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: DefaultTimeout}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// Service returns the service name used in errors.
func (c *Client) Service() string { return c.serviceName }

// Do executes a JSON request, retrying transient failures. The caller
// closes the response body.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = data
	}

	url := c.baseURL + path
	attempts := c.maxRetries
	if method == http.MethodPost && !c.retryPost {
		attempts = 1
	}

	var lastErr error
	for attempt := range attempts {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		last := attempt == attempts-1
		if err != nil {
			lastErr = fmt.Errorf("%s request failed: %w", c.serviceName, err)
			if ctx.Err() != nil || last {
				return nil, lastErr
			}
			if err := c.wait(ctx, c.retryWait*time.Duration(1<<attempt), method, path, attempt, 0); err != nil {
				return nil, err
			}
			continue
		}

		if retryableStatus(resp.StatusCode) && !last {
			wait := c.retryAfter(resp, attempt)
			resp.Body.Close()
			if err := c.wait(ctx, wait, method, path, attempt, resp.StatusCode); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

func (c *Client) wait(ctx context.Context, d time.Duration, method, path string, attempt, status int) error {
	c.logger.Debug("retrying request",
		"service", c.serviceName,
		"method", method,
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"wait", d,
	)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Get performs a GET request and decodes the response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decode(resp, path, result)
}

// Post performs a POST request and decodes the response into result.
// It returns the response headers, which some APIs use to carry ids.
func (c *Client) Post(ctx context.Context, path string, body, result any) (http.Header, error) {
	resp, err := c.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return resp.Header, c.decode(resp, path, result)
}

func (c *Client) decode(resp *http.Response, path string, result any) error {
	if resp.StatusCode >= 400 {
		return c.parseError(resp, path)
	}
	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", c.serviceName, err)
	}
	return nil
}

// parseError turns an error response into an APIError. It understands the
// error shapes of the X v2 API ({title, detail, errors[]}) and LinkedIn
// ({message, serviceErrorCode}).
func (c *Client) parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{
		Service:    c.serviceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  firstHeader(resp.Header, "X-Request-Id", "X-Li-Uuid", "X-Transaction-Id"),
	}

	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Title   string `json:"title"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Detail != "":
			apiErr.Message = errResp.Detail
		case errResp.Message != "":
			apiErr.Message = errResp.Message
		case len(errResp.Errors) > 0 && errResp.Errors[0].Message != "":
			apiErr.Message = errResp.Errors[0].Message
		case errResp.Error != "":
			apiErr.Message = errResp.Error
		case errResp.Title != "":
			apiErr.Message = errResp.Title
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Service:    c.serviceName,
			RetryAfter: retryAfterHeader(resp.Header),
			Cause:      apiErr,
		}
	}
	return apiErr
}

func (c *Client) retryAfter(resp *http.Response, attempt int) time.Duration {
	if d := retryAfterHeader(resp.Header); d > 0 {
		return d
	}
	return c.retryWait * time.Duration(1<<attempt)
}

func retryAfterHeader(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
