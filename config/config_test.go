package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/socialflow/platform"
)

// testResolver resolves against files inside a temp dir only.
func testResolver(t *testing.T, global, local string) (*Resolver, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	globalPath := filepath.Join(dir, "global", GlobalFileName)
	if global != "" {
		if err := os.MkdirAll(filepath.Dir(globalPath), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(globalPath, []byte(global), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if local != "" {
		if err := os.WriteFile(filepath.Join(dir, LocalFileName), []byte(local), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var warnings bytes.Buffer
	r := NewResolver(ResolverConfig{
		GlobalPath:    globalPath,
		GitRootFinder: func(string) (string, error) { return dir, nil },
		ErrWriter:     &warnings,
	})
	return r, &warnings
}

func TestResolver_Defaults(t *testing.T) {
	r, _ := testResolver(t, "", "")
	cfg := r.Resolve()

	if got := cfg.Get(KeyStoreBackend); got != "file" {
		t.Errorf("store_backend = %q, want file", got)
	}
	if got := cfg.Source(KeyMaxAttempts); got != SourceDefault {
		t.Errorf("source = %q, want %q", got, SourceDefault)
	}
	if len(cfg.Keys()) != len(keys) {
		t.Errorf("Keys() = %d entries, want %d", len(cfg.Keys()), len(keys))
	}
}

func TestResolver_Precedence(t *testing.T) {
	r, _ := testResolver(t,
		"max_attempts: 5\ndefault_tone: witty\nstore_backend: sqlite\n",
		"max_attempts: 4\n",
	)
	t.Setenv("SOCIALFLOW_DEFAULT_TONE", "formal")

	cfg := r.ResolveWithFlags(map[string]string{"store-backend": "memory", "llm_model": ""})

	tests := []struct {
		key        string
		wantValue  string
		wantSource Source
	}{
		{KeyMaxAttempts, "4", SourceLocal},
		{KeyDefaultTone, "formal", SourceEnv},
		{KeyStoreBackend, "memory", SourceFlag},
		{KeyLLMModel, "", SourceDefault},
		{KeyDefaultPlatform, "twitter", SourceDefault},
	}
	for _, tt := range tests {
		value, source := cfg.GetWithSource(tt.key)
		if value != tt.wantValue || source != tt.wantSource {
			t.Errorf("%s = %q (%s), want %q (%s)", tt.key, value, source, tt.wantValue, tt.wantSource)
		}
	}
}

func TestResolver_GlobalConfig(t *testing.T) {
	r, _ := testResolver(t, "x_access_token: abc\ndry_run: true\nredis_db: 2\n", "")
	cfg := r.Resolve()

	if got := cfg.Get(KeyXAccessToken); got != "abc" {
		t.Errorf("x_access_token = %q, want abc", got)
	}
	if got := cfg.Get(KeyDryRun); got != "true" {
		t.Errorf("dry_run = %q, want true", got)
	}
	if got := cfg.Get(KeyRedisDB); got != "2" {
		t.Errorf("redis_db = %q, want 2", got)
	}
	if got := cfg.Source(KeyXAccessToken); got != SourceGlobal {
		t.Errorf("source = %q, want %q", got, SourceGlobal)
	}
}

func TestResolver_LocalRefusesSecrets(t *testing.T) {
	r, warnings := testResolver(t, "", "x_access_token: leaked\ndefault_tone: casual\n")
	cfg := r.Resolve()

	if got := cfg.Get(KeyXAccessToken); got != "" {
		t.Errorf("x_access_token = %q, want empty", got)
	}
	if got := cfg.Get(KeyDefaultTone); got != "casual" {
		t.Errorf("default_tone = %q, want casual", got)
	}
	if !strings.Contains(warnings.String(), "may only be set in the global config") {
		t.Errorf("warnings = %q", warnings.String())
	}
}

func TestResolver_UnknownAndInvalid(t *testing.T) {
	r, _ := testResolver(t, "colour: blue\n", "not: [valid")
	r.Resolve()

	if len(r.Warnings) != 2 {
		t.Fatalf("Warnings = %v, want 2", r.Warnings)
	}
	if !strings.Contains(r.Warnings[0], `unknown key "colour"`) {
		t.Errorf("Warnings[0] = %q", r.Warnings[0])
	}
	if !strings.Contains(r.Warnings[1], "could not parse") {
		t.Errorf("Warnings[1] = %q", r.Warnings[1])
	}
}

func TestResolver_Paths(t *testing.T) {
	r, _ := testResolver(t, "", "")
	if r.GitRoot() == "" {
		t.Error("GitRoot() is empty")
	}
	if filepath.Base(r.LocalPath()) != LocalFileName {
		t.Errorf("LocalPath() = %q", r.LocalPath())
	}
	if filepath.Base(r.GlobalPath()) != GlobalFileName {
		t.Errorf("GlobalPath() = %q", r.GlobalPath())
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("resume-token-secret"); got != "SOCIALFLOW_RESUME_TOKEN_SECRET" {
		t.Errorf("EnvName() = %q", got)
	}
}

func TestResolvedTypedGetters(t *testing.T) {
	r, _ := testResolver(t, "", "")
	cfg := r.ResolveWithFlags(map[string]string{
		KeyDraftTimeout: "90s",
		KeyDryRun:       "yes",
		KeyRedisDB:      "two",
	})

	if d, err := cfg.Duration(KeyDraftTimeout); err != nil || d != 90*time.Second {
		t.Errorf("Duration() = %v, %v", d, err)
	}
	if _, err := cfg.Bool(KeyDryRun); err == nil {
		t.Error("Bool() should reject \"yes\"")
	}
	if _, err := cfg.Int(KeyRedisDB); err == nil {
		t.Error("Int() should reject \"two\"")
	}
	if n, err := cfg.Int(KeyMaxAttempts); err != nil || n != 3 {
		t.Errorf("Int(max_attempts) = %d, %v", n, err)
	}
}

func TestKeys(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range Keys() {
		if seen[k.Name] {
			t.Errorf("duplicate key %s", k.Name)
		}
		seen[k.Name] = true
		if k.Description == "" {
			t.Errorf("%s has no description", k.Name)
		}
	}

	k, ok := LookupKey("X-Access-Token")
	if !ok || !k.Secret() {
		t.Errorf("LookupKey(X-Access-Token) = %+v, %v", k, ok)
	}
	if contains(LocalKeys(), KeyLLMAPIKey) {
		t.Error("LocalKeys() contains a credential")
	}
	if !contains(GlobalKeys(), KeyLLMAPIKey) {
		t.Error("GlobalKeys() missing llm_api_key")
	}
}

// =============================================================================
// Settings
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	r, _ := testResolver(t, "", "")

	s, err := Load(r.Resolve())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Store.Backend != StoreFile || s.Store.Path != "/data/socialflow/threads" {
		t.Errorf("Store = %+v", s.Store)
	}
	if s.Workflow.DefaultPlatform != platform.Twitter {
		t.Errorf("DefaultPlatform = %q", s.Workflow.DefaultPlatform)
	}
	if s.Workflow.MaxAttempts != 3 || s.Workflow.ResumePolicy != "fail_open" {
		t.Errorf("Workflow = %+v", s.Workflow)
	}
	if s.Workflow.DraftTimeout != 2*time.Minute || s.Workflow.PublishTimeout != 30*time.Second {
		t.Errorf("timeouts = %v, %v", s.Workflow.DraftTimeout, s.Workflow.PublishTimeout)
	}
	if s.Workflow.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %v", s.Workflow.TokenTTL)
	}
	if s.Tracing.Exporter != ExporterNone || !s.Tracing.Insecure {
		t.Errorf("Tracing = %+v", s.Tracing)
	}
	if s.Publish.LinkedInVisibility != "PUBLIC" {
		t.Errorf("LinkedInVisibility = %q", s.Publish.LinkedInVisibility)
	}
	if s.APIAddr != ":8080" || s.LogFormat != "text" {
		t.Errorf("APIAddr = %q, LogFormat = %q", s.APIAddr, s.LogFormat)
	}
}

func TestLoad_Overrides(t *testing.T) {
	r, _ := testResolver(t, "", "")
	s, err := Load(r.ResolveWithFlags(map[string]string{
		KeyStoreBackend:    "SQLite",
		KeyStorePath:       "/tmp/sf.db",
		KeyDefaultPlatform: "x",
		KeyNotifyEvents:    "post_published, run_failed,,",
		KeyLogLevel:        "debug",
		KeyResumePolicy:    "fail_closed",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Store.Backend != StoreSQLite || s.Store.Path != "/tmp/sf.db" {
		t.Errorf("Store = %+v", s.Store)
	}
	if s.Workflow.DefaultPlatform != platform.Twitter {
		t.Errorf("DefaultPlatform = %q", s.Workflow.DefaultPlatform)
	}
	if len(s.Notify.Events) != 2 || s.Notify.Events[1] != "run_failed" {
		t.Errorf("Events = %q", s.Notify.Events)
	}
	if s.LogLevel.String() != "DEBUG" {
		t.Errorf("LogLevel = %v", s.LogLevel)
	}
	if s.Workflow.ResumePolicy != "fail_closed" {
		t.Errorf("ResumePolicy = %q", s.Workflow.ResumePolicy)
	}
}

func TestLoad_ReportsEveryError(t *testing.T) {
	r, _ := testResolver(t, "", "")
	_, err := Load(r.ResolveWithFlags(map[string]string{
		KeyStoreBackend:       "postgres",
		KeyMaxAttempts:        "0",
		KeyDefaultPlatform:    "myspace",
		KeyPublishTimeout:     "soon",
		KeyResumeTokenSecret:  "short",
		KeyLLMProvider:        "openai",
		KeyLinkedInVisibility: "friends",
	}))
	if err == nil {
		t.Fatal("Load() should fail")
	}
	for _, want := range []string{
		"store_backend", "max_attempts", "default_platform", "publish_timeout",
		"resume_token_secret", "llm_api_key", "linkedin_visibility",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
	if !errors.Is(err, platform.ErrUnknown) {
		t.Errorf("error should wrap platform.ErrUnknown: %v", err)
	}
}
