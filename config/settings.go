package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/randalmurphal/socialflow/platform"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// LLM providers.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Settings is the typed form of a resolved configuration.
type Settings struct {
	Store    StoreSettings
	LLM      LLMSettings
	Workflow WorkflowSettings
	Publish  PublishSettings
	Notify   NotifySettings
	Tracing  TracingSettings

	APIAddr   string
	LogLevel  slog.Level
	LogFormat string
	NoColor   bool
}

// StoreSettings selects and configures the checkpoint store.
type StoreSettings struct {
	Backend       string
	Path          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LLMSettings configures draft generation.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Workdir  string
}

// WorkflowSettings configures the post workflow.
type WorkflowSettings struct {
	DefaultPlatform platform.Platform
	DefaultTone     string
	MaxAttempts     int
	ResumePolicy    string
	DraftTimeout    time.Duration
	PublishTimeout  time.Duration

	TokenSecret  string
	RequireToken bool
	TokenTTL     time.Duration
}

// PublishSettings holds platform credentials.
type PublishSettings struct {
	DryRun              bool
	XAccessToken        string
	LinkedInAccessToken string
	LinkedInVisibility  string
}

// NotifySettings configures outbound notifications.
type NotifySettings struct {
	SlackWebhookURL string
	SlackChannel    string
	WebhookURL      string
	WebhookSecret   string

	// Events limits which event types are sent. Empty sends all.
	Events []string
}

// TracingSettings configures the OpenTelemetry exporter.
type TracingSettings struct {
	Exporter string
	Endpoint string
	Insecure bool
}

// Load converts resolved values into Settings. Every invalid value is
// reported, not just the first.
func Load(c *Resolved) (Settings, error) {
	p := parser{c: c}
	s := Settings{
		Store: StoreSettings{
			Backend:       p.oneOf(KeyStoreBackend, StoreMemory, StoreFile, StoreSQLite, StoreRedis),
			Path:          c.Get(KeyStorePath),
			RedisAddr:     c.Get(KeyRedisAddr),
			RedisPassword: c.Get(KeyRedisPassword),
			RedisDB:       p.int(KeyRedisDB),
			RedisPrefix:   c.Get(KeyRedisPrefix),
		},
		LLM: LLMSettings{
			Provider: p.oneOf(KeyLLMProvider, ProviderClaude, ProviderOpenAI),
			Model:    c.Get(KeyLLMModel),
			APIKey:   c.Get(KeyLLMAPIKey),
			BaseURL:  c.Get(KeyLLMBaseURL),
			Workdir:  c.Get(KeyLLMWorkdir),
		},
		Workflow: WorkflowSettings{
			DefaultTone:    c.Get(KeyDefaultTone),
			MaxAttempts:    p.int(KeyMaxAttempts),
			ResumePolicy:   p.oneOf(KeyResumePolicy, "fail_open", "fail_closed"),
			DraftTimeout:   p.duration(KeyDraftTimeout),
			PublishTimeout: p.duration(KeyPublishTimeout),
			TokenSecret:    c.Get(KeyResumeTokenSecret),
			RequireToken:   p.bool(KeyRequireResumeToken),
			TokenTTL:       p.duration(KeyResumeTokenTTL),
		},
		Publish: PublishSettings{
			DryRun:              p.bool(KeyDryRun),
			XAccessToken:        c.Get(KeyXAccessToken),
			LinkedInAccessToken: c.Get(KeyLinkedInAccessToken),
			LinkedInVisibility:  strings.ToUpper(c.Get(KeyLinkedInVisibility)),
		},
		Notify: NotifySettings{
			SlackWebhookURL: c.Get(KeySlackWebhookURL),
			SlackChannel:    c.Get(KeySlackChannel),
			WebhookURL:      c.Get(KeyWebhookURL),
			WebhookSecret:   c.Get(KeyWebhookSecret),
			Events:          splitList(c.Get(KeyNotifyEvents)),
		},
		Tracing: TracingSettings{
			Exporter: p.oneOf(KeyTraceExporter, ExporterNone, ExporterStdout, ExporterOTLP),
			Endpoint: c.Get(KeyOTLPEndpoint),
			Insecure: p.bool(KeyOTLPInsecure),
		},
		APIAddr:   c.Get(KeyAPIAddr),
		LogFormat: p.oneOf(KeyLogFormat, "text", "json"),
		NoColor:   p.bool(KeyNoColor),
	}

	if pl, err := platform.Parse(c.Get(KeyDefaultPlatform)); err != nil {
		p.fail(fmt.Errorf("%s: %w", KeyDefaultPlatform, err))
	} else {
		s.Workflow.DefaultPlatform = pl
	}
	if err := s.LogLevel.UnmarshalText([]byte(c.Get(KeyLogLevel))); err != nil {
		p.fail(fmt.Errorf("%s: %q is not a log level", KeyLogLevel, c.Get(KeyLogLevel)))
	}
	if s.Workflow.MaxAttempts < 1 {
		p.fail(fmt.Errorf("%s must be at least 1", KeyMaxAttempts))
	}
	if sec := s.Workflow.TokenSecret; sec != "" && len(sec) < 32 {
		p.fail(fmt.Errorf("%s must be at least 32 bytes", KeyResumeTokenSecret))
	}
	if v := s.Publish.LinkedInVisibility; v != "PUBLIC" && v != "CONNECTIONS" {
		p.fail(fmt.Errorf("%s: %q is not PUBLIC or CONNECTIONS", KeyLinkedInVisibility, v))
	}
	if s.LLM.Provider == ProviderOpenAI && s.LLM.APIKey == "" {
		p.fail(fmt.Errorf("%s is required for the openai provider (set %s)", KeyLLMAPIKey, EnvName(KeyLLMAPIKey)))
	}

	if s.Store.Path == "" {
		s.Store.Path = defaultStorePath(s.Store.Backend)
	}
	return s, errors.Join(p.errs...)
}

// DataDir is where stores keep thread data by default.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "socialflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".socialflow"
	}
	return filepath.Join(home, ".local", "share", "socialflow")
}

func defaultStorePath(backend string) string {
	switch backend {
	case StoreFile:
		return filepath.Join(DataDir(), "threads")
	case StoreSQLite:
		return filepath.Join(DataDir(), "socialflow.db")
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser collects conversion errors so Load can report them together.
type parser struct {
	c    *Resolved
	errs []error
}

func (p *parser) fail(err error) {
	p.errs = append(p.errs, err)
}

func (p *parser) int(key string) int {
	n, err := p.c.Int(key)
	if err != nil {
		p.fail(err)
	}
	return n
}

func (p *parser) bool(key string) bool {
	b, err := p.c.Bool(key)
	if err != nil {
		p.fail(err)
	}
	return b
}

func (p *parser) duration(key string) time.Duration {
	d, err := p.c.Duration(key)
	if err != nil {
		p.fail(err)
	}
	return d
}

func (p *parser) oneOf(key string, allowed ...string) string {
	v := strings.ToLower(p.c.Get(key))
	if !contains(allowed, v) {
		p.fail(fmt.Errorf("%s: %q is not one of %s", key, v, strings.Join(allowed, ", ")))
	}
	return v
}
