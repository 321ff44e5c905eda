package config

import (
	"sort"
	"strings"
)

// Scope says which config files may set a key.
type Scope int

// Key scopes.
const (
	// ScopeAny keys may appear in global or local config.
	ScopeAny Scope = iota

	// ScopeGlobal keys hold credentials and are refused in the local file,
	// which is usually committed.
	ScopeGlobal
)

// Key describes one configuration key.
type Key struct {
	Name        string
	Default     string
	Description string
	Scope       Scope
}

// Secret reports whether the key holds a credential.
func (k Key) Secret() bool {
	return k.Scope == ScopeGlobal
}

// Configuration key names.
const (
	KeyStoreBackend  = "store_backend"
	KeyStorePath     = "store_path"
	KeyRedisAddr     = "redis_addr"
	KeyRedisPassword = "redis_password"
	KeyRedisDB       = "redis_db"
	KeyRedisPrefix   = "redis_prefix"

	KeyLLMProvider = "llm_provider"
	KeyLLMModel    = "llm_model"
	KeyLLMAPIKey   = "llm_api_key"
	KeyLLMBaseURL  = "llm_base_url"
	KeyLLMWorkdir  = "llm_workdir"

	KeyDefaultPlatform    = "default_platform"
	KeyDefaultTone        = "default_tone"
	KeyMaxAttempts        = "max_attempts"
	KeyResumePolicy       = "resume_policy"
	KeyDraftTimeout       = "draft_timeout"
	KeyPublishTimeout     = "publish_timeout"
	KeyResumeTokenSecret  = "resume_token_secret"
	KeyRequireResumeToken = "require_resume_token"
	KeyResumeTokenTTL     = "resume_token_ttl"

	KeyDryRun              = "dry_run"
	KeyXAccessToken        = "x_access_token"
	KeyLinkedInAccessToken = "linkedin_access_token"
	KeyLinkedInVisibility  = "linkedin_visibility"

	KeySlackWebhookURL = "slack_webhook_url"
	KeySlackChannel    = "slack_channel"
	KeyWebhookURL      = "webhook_url"
	KeyWebhookSecret   = "webhook_secret"
	KeyNotifyEvents    = "notify_events"

	KeyTraceExporter = "trace_exporter"
	KeyOTLPEndpoint  = "otlp_endpoint"
	KeyOTLPInsecure  = "otlp_insecure"

	KeyAPIAddr   = "api_addr"
	KeyLogLevel  = "log_level"
	KeyLogFormat = "log_format"
	KeyNoColor   = "no_color"
)

var keys = []Key{
	{KeyStoreBackend, "file", "checkpoint store: memory, file, sqlite or redis", ScopeAny},
	{KeyStorePath, "", "directory (file) or database path (sqlite); defaults under ~/.local/share/socialflow", ScopeAny},
	{KeyRedisAddr, "localhost:6379", "redis address for the redis store", ScopeAny},
	{KeyRedisPassword, "", "redis password", ScopeGlobal},
	{KeyRedisDB, "0", "redis database number", ScopeAny},
	{KeyRedisPrefix, "socialflow:", "redis key prefix", ScopeAny},

	{KeyLLMProvider, "claude", "drafting backend: claude or openai", ScopeAny},
	{KeyLLMModel, "", "model name; empty picks one per call", ScopeAny},
	{KeyLLMAPIKey, "", "API key for the openai provider", ScopeGlobal},
	{KeyLLMBaseURL, "", "base URL for an OpenAI-compatible endpoint", ScopeAny},
	{KeyLLMWorkdir, "", "working directory for the claude CLI", ScopeAny},

	{KeyDefaultPlatform, "twitter", "platform used when a request names none", ScopeAny},
	{KeyDefaultTone, "professional", "tone used when a request names none", ScopeAny},
	{KeyMaxAttempts, "3", "draft generation budget per thread", ScopeAny},
	{KeyResumePolicy, "fail_open", "unrecognized review replies: fail_open approves, fail_closed rejects the reply", ScopeAny},
	{KeyDraftTimeout, "2m", "timeout for one draft generation", ScopeAny},
	{KeyPublishTimeout, "30s", "timeout for one publish call", ScopeAny},
	{KeyResumeTokenSecret, "", "HMAC secret for signed resume tokens (32+ bytes)", ScopeGlobal},
	{KeyRequireResumeToken, "false", "reject replies that don't carry the current resume token", ScopeAny},
	{KeyResumeTokenTTL, "168h", "lifetime of a signed resume token", ScopeAny},

	{KeyDryRun, "false", "record posts in memory instead of publishing", ScopeAny},
	{KeyXAccessToken, "", "OAuth 2.0 user token for X", ScopeGlobal},
	{KeyLinkedInAccessToken, "", "OAuth 2.0 member token for LinkedIn", ScopeGlobal},
	{KeyLinkedInVisibility, "PUBLIC", "LinkedIn post visibility: PUBLIC or CONNECTIONS", ScopeAny},

	{KeySlackWebhookURL, "", "Slack incoming webhook for review notifications", ScopeGlobal},
	{KeySlackChannel, "", "Slack channel override", ScopeAny},
	{KeyWebhookURL, "", "generic webhook for thread events", ScopeAny},
	{KeyWebhookSecret, "", "HMAC secret used to sign webhook bodies", ScopeGlobal},
	{KeyNotifyEvents, "", "comma-separated event types to send; empty sends all", ScopeAny},

	{KeyTraceExporter, "none", "tracing exporter: none, stdout or otlp", ScopeAny},
	{KeyOTLPEndpoint, "localhost:4317", "OTLP gRPC collector endpoint", ScopeAny},
	{KeyOTLPInsecure, "true", "disable TLS to the OTLP collector", ScopeAny},

	{KeyAPIAddr, ":8080", "listen address for socialflow serve", ScopeAny},
	{KeyLogLevel, "info", "debug, info, warn or error", ScopeAny},
	{KeyLogFormat, "text", "text or json", ScopeAny},
	{KeyNoColor, "false", "disable styled output", ScopeAny},
}

// Keys returns every known key sorted by name.
func Keys() []Key {
	out := append([]Key(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupKey returns the key named name.
func LookupKey(name string) (Key, bool) {
	name = normalizeKey(name)
	for _, k := range keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// Defaults returns the built-in value of every key.
func Defaults() map[string]string {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k.Name] = k.Default
	}
	return out
}

// GlobalKeys lists keys allowed in the global config file.
func GlobalKeys() []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Name)
	}
	sort.Strings(out)
	return out
}

// LocalKeys lists keys allowed in the local config file.
func LocalKeys() []string {
	var out []string
	for _, k := range keys {
		if k.Scope == ScopeAny {
			out = append(out, k.Name)
		}
	}
	sort.Strings(out)
	return out
}

// normalizeKey accepts dashed flag-style names.
func normalizeKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}
