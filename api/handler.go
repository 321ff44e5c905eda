// Package api exposes post threads over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/socialflow/graph"
	"github.com/randalmurphal/socialflow/platform"
	"github.com/randalmurphal/socialflow/tracing"
	"github.com/randalmurphal/socialflow/workflow"
)

// ResumeTokenHeader may carry the resume token instead of the request body.
const ResumeTokenHeader = "X-Resume-Token"

// Runner is the subset of workflow.Runner the handler drives.
type Runner interface {
	Start(ctx context.Context, req workflow.Request) (workflow.Outcome, error)
	Resume(ctx context.Context, threadID string, value any, opts ...graph.ResumeOption) (workflow.Outcome, error)
	Inspect(ctx context.Context, threadID string) (workflow.Outcome, error)
	Pending(ctx context.Context, limit int) ([]workflow.Outcome, error)
}

// Handler provides HTTP endpoints for post threads.
type Handler struct {
	runner Runner
	tracer trace.Tracer
	logger *slog.Logger
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	// Runner starts and resumes threads (required).
	Runner Runner
	// Tracer wraps every request in a server span (optional).
	Tracer trace.Tracer
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewHandler creates a handler over runner.
func NewHandler(runner Runner) *Handler {
	return NewHandlerWithConfig(HandlerConfig{Runner: runner})
}

// NewHandlerWithConfig creates a handler with full configuration.
func NewHandlerWithConfig(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runner: cfg.Runner, tracer: cfg.Tracer, logger: logger}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /posts/generate", h.Generate)
	mux.HandleFunc("GET /posts/pending", h.Pending)
	mux.HandleFunc("GET /posts/{id}", h.Get)
	mux.HandleFunc("POST /posts/{id}/approve", h.Approve)
	mux.HandleFunc("GET /posts/{id}/preview", h.Preview)

	mux.HandleFunc("GET /health", h.Health)

	return tracing.Middleware(h.tracer, mux)
}

// === Request/Response Types ===

// GenerateRequest is the body of POST /posts/generate.
type GenerateRequest struct {
	Topic        string `json:"topic"`
	Platform     string `json:"platform,omitempty"`
	Tone         string `json:"tone,omitempty"`
	ExtraContext string `json:"extra_context,omitempty"`
	MaxAttempts  int    `json:"max_attempts,omitempty"`
	ThreadID     string `json:"thread_id,omitempty"`
}

// ApproveRequest is the body of POST /posts/{id}/approve. Response, when
// set, is a raw reply such as "approve" or "edit: new text" and takes
// precedence over the structured fields.
type ApproveRequest struct {
	Action          string `json:"action,omitempty"`
	EditedText      string `json:"edited_text,omitempty"`
	FeedbackMessage string `json:"feedback_message,omitempty"`
	Response        string `json:"response,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// PostResponse describes a thread.
type PostResponse struct {
	ThreadID     string          `json:"thread_id"`
	Status       workflow.Status `json:"status"`
	Topic        string          `json:"topic"`
	Platform     string          `json:"platform"`
	Tone         string          `json:"tone,omitempty"`
	Text         string          `json:"text,omitempty"`
	Hashtags     []string        `json:"hashtags,omitempty"`
	AttemptCount int             `json:"attempt_count"`
	MaxAttempts  int             `json:"max_attempts"`
	PublishedURL string          `json:"published_url,omitempty"`
	Error        string          `json:"error,omitempty"`
	Done         bool            `json:"done"`
	Next         string          `json:"next,omitempty"`
	Version      int64           `json:"version"`
	UpdatedAt    *time.Time      `json:"updated_at,omitempty"`

	// Approval is set while the thread waits for a reviewer.
	Approval *workflow.ApprovalRequest `json:"approval,omitempty"`
}

// PendingResponse lists threads waiting for review.
type PendingResponse struct {
	Posts []PostResponse `json:"posts"`
	Total int            `json:"total"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string   `json:"status"`
	Platforms []string `json:"platforms"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// NewPostResponse converts an outcome into its JSON form.
func NewPostResponse(o workflow.Outcome) PostResponse {
	s := o.State
	resp := PostResponse{
		ThreadID:     o.ThreadID,
		Status:       s.Status,
		Topic:        s.Topic,
		Platform:     string(s.Platform),
		Tone:         s.Tone,
		AttemptCount: s.AttemptCount,
		MaxAttempts:  s.MaxAttempts,
		PublishedURL: s.PublishedURL,
		Error:        s.Error,
		Done:         o.Done(),
		Next:         o.Next,
		Version:      o.Version,
		Approval:     o.Approval,
	}
	if s.Draft != nil {
		resp.Text = s.Draft.RenderedText()
		resp.Hashtags = s.Draft.Hashtags
	}
	if !o.UpdatedAt.IsZero() {
		t := o.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// === Handlers ===

// Generate starts a thread and runs it to the first review request.
// POST /posts/generate
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}

	wreq := workflow.Request{
		Topic:        req.Topic,
		Tone:         req.Tone,
		ExtraContext: req.ExtraContext,
		MaxAttempts:  req.MaxAttempts,
		ThreadID:     req.ThreadID,
	}
	if req.Platform != "" {
		pl, err := platform.Parse(req.Platform)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Unknown platform", err.Error())
			return
		}
		wreq.Platform = pl
	}

	out, err := h.runner.Start(r.Context(), wreq)
	if err != nil {
		h.writeRunError(w, "Failed to start post", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewPostResponse(out))
}

// Pending lists threads waiting for review, oldest first.
// GET /posts/pending?limit=N
func (h *Handler) Pending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer", v)
			return
		}
		limit = n
	}

	outs, err := h.runner.Pending(r.Context(), limit)
	if err != nil {
		h.writeRunError(w, "Failed to list pending posts", err)
		return
	}
	resp := PendingResponse{Posts: make([]PostResponse, 0, len(outs)), Total: len(outs)}
	for _, o := range outs {
		resp.Posts = append(resp.Posts, NewPostResponse(o))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Get returns a thread's stored state.
// GET /posts/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	out, err := h.runner.Inspect(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeRunError(w, "Failed to load post", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewPostResponse(out))
}

// Approve delivers a reviewer's reply to a suspended thread.
// POST /posts/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
		return
	}
	value, ok := resumeValue(req)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "action or response is required", "")
		return
	}

	// Resume reports an unknown thread as an invalid resume; look it up
	// first so clients get a 404.
	current, err := h.runner.Inspect(r.Context(), id)
	if err != nil {
		h.writeRunError(w, "Failed to load post", err)
		return
	}
	if current.Done() {
		h.writeError(w, http.StatusConflict, "thread_done",
			"Post has already finished", string(current.State.Status))
		return
	}

	token := req.ResumeToken
	if token == "" {
		token = r.Header.Get(ResumeTokenHeader)
	}
	var opts []graph.ResumeOption
	if token != "" {
		opts = append(opts, graph.WithToken(token))
	}

	out, err := h.runner.Resume(r.Context(), id, value, opts...)
	if err != nil {
		h.writeRunError(w, "Failed to apply review", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewPostResponse(out))
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	pls := platform.All()
	names := make([]string, len(pls))
	for i, p := range pls {
		names[i] = string(p)
	}
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Platforms: names})
}

func resumeValue(req ApproveRequest) (any, bool) {
	if strings.TrimSpace(req.Response) != "" {
		return req.Response, true
	}
	if req.Action == "" {
		return nil, false
	}
	return map[string]any{
		"action":      req.Action,
		"edited_text": req.EditedText,
		"message":     req.FeedbackMessage,
	}, true
}

// === Helpers ===

// statusFor maps run errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, graph.ErrThreadExists):
		return http.StatusConflict, "thread_exists"
	case errors.Is(err, graph.ErrThreadDone):
		return http.StatusConflict, "thread_done"
	case errors.Is(err, graph.ErrThreadSuspended):
		return http.StatusConflict, "thread_suspended"
	case workflow.IsInvalidResume(err):
		return http.StatusConflict, "invalid_resume"
	case workflow.IsGeneration(err):
		return http.StatusBadGateway, "generation_failed"
	case workflow.IsPublish(err):
		return http.StatusBadGateway, "publish_failed"
	case workflow.IsPersistence(err):
		return http.StatusServiceUnavailable, "persistence_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func (h *Handler) writeRunError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, "code", code, "error", err)
	}
	h.writeError(w, status, code, message, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}
