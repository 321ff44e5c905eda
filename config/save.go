package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Saver writes single keys into the global or local config file.
type Saver struct {
	// GlobalPath is the global config file.
	GlobalPath string

	// LocalPath is the local config file; empty outside a git repository.
	LocalPath string
}

// NewSaver targets the same files r reads.
func NewSaver(r *Resolver) Saver {
	return Saver{GlobalPath: r.GlobalPath(), LocalPath: r.LocalPath()}
}

// SaveGlobal sets key in the global config file. The file is created with
// owner-only permissions because it may hold credentials.
func (s Saver) SaveGlobal(key, value string) error {
	if s.GlobalPath == "" {
		return errors.New("global config path not configured")
	}
	k, err := validKey(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.GlobalPath), 0o700); err != nil {
		return err
	}
	return update(s.GlobalPath, 0o600, func(m map[string]any) {
		m[k.Name] = parseValue(value)
	})
}

// SaveLocal sets key in the local config file. Credentials are refused
// because the local file is meant to be committed.
func (s Saver) SaveLocal(key, value string) error {
	if s.LocalPath == "" {
		return errors.New("git root not found; local config unavailable")
	}
	k, err := validKey(key)
	if err != nil {
		return err
	}
	if k.Secret() {
		return fmt.Errorf("%s holds a credential and may only be set globally (or via %s)", k.Name, EnvName(k.Name))
	}
	// local config is shared and should be readable
	return update(s.LocalPath, 0o644, func(m map[string]any) {
		m[k.Name] = parseValue(value)
	})
}

// DeleteGlobalKey removes key from the global config. A missing file or key
// is not an error.
func (s Saver) DeleteGlobalKey(key string) error {
	if s.GlobalPath == "" {
		return errors.New("global config path not configured")
	}
	if _, err := os.Stat(s.GlobalPath); os.IsNotExist(err) {
		return nil
	}
	return update(s.GlobalPath, 0o600, func(m map[string]any) {
		delete(m, normalizeKey(key))
	})
}

func validKey(name string) (Key, error) {
	k, ok := LookupKey(name)
	if !ok {
		return Key{}, fmt.Errorf("unknown config key: %s\n\nValid keys: %s",
			name, strings.Join(GlobalKeys(), ", "))
	}
	return k, nil
}

// update rewrites the YAML map at path through fn.
func update(path string, perm os.FileMode, fn func(map[string]any)) error {
	existing := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if existing == nil {
			existing = make(map[string]any)
		}
	}

	fn(existing)

	data, err := yaml.Marshal(existing)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

// parseValue stores booleans as YAML booleans and everything else as strings.
func parseValue(value string) any {
	switch strings.ToLower(value) {
	case "true":
		return true
	case "false":
		return false
	}
	return value
}
