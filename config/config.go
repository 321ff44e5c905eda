package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File locations.
const (
	EnvPrefix       = "SOCIALFLOW_"
	GlobalConfigDir = "socialflow"
	GlobalFileName  = "config.yaml"
	LocalFileName   = ".socialflow.yaml"
)

// ResolverConfig configures a Resolver. The zero value resolves against the
// standard socialflow locations.
type ResolverConfig struct {
	// GlobalPath overrides ~/.config/socialflow/config.yaml.
	GlobalPath string

	// LocalPath overrides .socialflow.yaml in the git root.
	LocalPath string

	// GitRootFinder locates the directory holding the local file.
	// If nil, parent directories are searched for .git.
	GitRootFinder func(startDir string) (string, error)

	// ErrWriter is where warnings are written. Defaults to os.Stderr.
	ErrWriter io.Writer
}

// Resolver merges configuration layers.
type Resolver struct {
	globalPath string
	localPath  string
	gitRoot    string
	errWriter  io.Writer

	// Warnings collects non-fatal issues found during resolution.
	Warnings []string
}

// NewResolver creates a resolver. Paths that can't be determined are
// skipped during resolution.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		globalPath: cfg.GlobalPath,
		localPath:  cfg.LocalPath,
		errWriter:  cfg.ErrWriter,
	}
	if r.errWriter == nil {
		r.errWriter = os.Stderr
	}

	find := cfg.GitRootFinder
	if find == nil {
		find = findGitRoot
	}
	if root, err := find("."); err == nil && root != "" {
		r.gitRoot = root
		if r.localPath == "" {
			r.localPath = filepath.Join(root, LocalFileName)
		}
	}

	if r.globalPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			r.globalPath = filepath.Join(home, ".config", GlobalConfigDir, GlobalFileName)
		}
	}
	return r
}

func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	if r.errWriter != nil {
		fmt.Fprintf(r.errWriter, "Warning: %s\n", msg)
	}
}

// GitRoot returns the detected git root directory.
func (r *Resolver) GitRoot() string { return r.gitRoot }

// GlobalPath returns the path to the global config file.
func (r *Resolver) GlobalPath() string { return r.globalPath }

// LocalPath returns the path to the local config file.
func (r *Resolver) LocalPath() string { return r.localPath }

// =============================================================================
// Resolution
// =============================================================================

// Resolved holds the merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or "" if unset.
func (c *Resolved) Get(key string) string {
	return c.values[normalizeKey(key)]
}

// Source returns where a key's value came from.
func (c *Resolved) Source(key string) Source {
	return c.sources[normalizeKey(key)]
}

// GetWithSource returns both the value and its source.
func (c *Resolved) GetWithSource(key string) (string, Source) {
	key = normalizeKey(key)
	return c.values[key], c.sources[key]
}

// All returns a copy of every key-value pair.
func (c *Resolved) All() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Keys returns all resolved keys, sorted.
func (c *Resolved) Keys() []string {
	out := make([]string, 0, len(c.values))
	for k := range c.values {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Bool parses a boolean key.
func (c *Resolved) Bool(key string) (bool, error) {
	v := c.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

// Int parses an integer key.
func (c *Resolved) Int(key string) (int, error) {
	v := c.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

// Duration parses a duration key such as "30s" or "2m".
func (c *Resolved) Duration(key string) (time.Duration, error) {
	v := c.Get(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}

// Resolve merges every layer.
// Priority (highest to lowest): env > local > global > defaults.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}
	for k, v := range Defaults() {
		cfg.values[k] = v
		cfg.sources[k] = SourceDefault
	}
	r.applyFile(cfg, r.globalPath, SourceGlobal, GlobalKeys())
	r.applyFile(cfg, r.localPath, SourceLocal, LocalKeys())
	r.applyEnv(cfg)
	return cfg
}

// ResolveWithFlags resolves config and applies non-empty flag values on top.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	for key, value := range flags {
		if value != "" {
			key = normalizeKey(key)
			cfg.values[key] = value
			cfg.sources[key] = SourceFlag
		}
	}
	return cfg
}

func (r *Resolver) applyFile(cfg *Resolved, path string, src Source, allowed []string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return // missing files are normal
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", path, err))
		return
	}

	for key, value := range parsed {
		key = normalizeKey(key)
		if _, known := LookupKey(key); !known {
			r.warn(fmt.Sprintf("%s: unknown key %q ignored", path, key))
			continue
		}
		if !contains(allowed, key) {
			r.warn(fmt.Sprintf("%s: %q may only be set in the global config", path, key))
			continue
		}
		if s := toString(value); s != "" {
			cfg.values[key] = s
			cfg.sources[key] = src
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	for _, k := range keys {
		if value := os.Getenv(EnvName(k.Name)); value != "" {
			cfg.values[k.Name] = value
			cfg.sources[k.Name] = SourceEnv
		}
	}

	// NO_COLOR is honored regardless of prefix.
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		cfg.values[KeyNoColor] = "true"
		cfg.sources[KeyNoColor] = SourceEnv
	}
}

// EnvName returns the environment variable that sets key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(normalizeKey(key))
}

// =============================================================================
// Helpers
// =============================================================================

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}

// findGitRoot walks up from startDir looking for a .git directory.
func findGitRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
