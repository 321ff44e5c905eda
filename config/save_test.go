package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func readYAML(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	return out
}

func TestSaver_SaveGlobal(t *testing.T) {
	dir := t.TempDir()
	s := Saver{GlobalPath: filepath.Join(dir, "socialflow", GlobalFileName)}

	t.Run("creates config file", func(t *testing.T) {
		if err := s.SaveGlobal("x_access_token", "tok"); err != nil {
			t.Fatalf("SaveGlobal() error = %v", err)
		}
		saved := readYAML(t, s.GlobalPath)
		if saved["x_access_token"] != "tok" {
			t.Errorf("x_access_token = %v, want tok", saved["x_access_token"])
		}

		info, err := os.Stat(s.GlobalPath)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("permissions = %o, want 600", perm)
		}
	})

	t.Run("keeps existing keys", func(t *testing.T) {
		if err := s.SaveGlobal("dry-run", "TRUE"); err != nil {
			t.Fatalf("SaveGlobal() error = %v", err)
		}
		saved := readYAML(t, s.GlobalPath)
		if saved["x_access_token"] != "tok" {
			t.Errorf("x_access_token lost: %v", saved)
		}
		if saved["dry_run"] != true {
			t.Errorf("dry_run = %v (%T), want bool true", saved["dry_run"], saved["dry_run"])
		}
	})

	t.Run("rejects unknown key", func(t *testing.T) {
		err := s.SaveGlobal("colour", "blue")
		if err == nil || !strings.Contains(err.Error(), "unknown config key: colour") {
			t.Errorf("SaveGlobal() error = %v", err)
		}
	})

	t.Run("round trips through resolver", func(t *testing.T) {
		r := NewResolver(ResolverConfig{
			GlobalPath:    s.GlobalPath,
			GitRootFinder: func(string) (string, error) { return "", nil },
		})
		cfg := r.Resolve()
		if got, src := cfg.GetWithSource(KeyDryRun); got != "true" || src != SourceGlobal {
			t.Errorf("dry_run = %q (%s)", got, src)
		}
	})
}

func TestSaver_SaveLocal(t *testing.T) {
	dir := t.TempDir()
	s := Saver{LocalPath: filepath.Join(dir, LocalFileName)}

	if err := s.SaveLocal("default_platform", "linkedin"); err != nil {
		t.Fatalf("SaveLocal() error = %v", err)
	}
	if saved := readYAML(t, s.LocalPath); saved["default_platform"] != "linkedin" {
		t.Errorf("default_platform = %v", saved["default_platform"])
	}

	err := s.SaveLocal("linkedin_access_token", "secret")
	if err == nil || !strings.Contains(err.Error(), "SOCIALFLOW_LINKEDIN_ACCESS_TOKEN") {
		t.Errorf("SaveLocal(secret) error = %v", err)
	}
	if saved := readYAML(t, s.LocalPath); saved["linkedin_access_token"] != nil {
		t.Error("secret was written to the local file")
	}

	if err := (Saver{}).SaveLocal("default_tone", "casual"); err == nil {
		t.Error("SaveLocal() without a git root should fail")
	}
}

func TestSaver_DeleteGlobalKey(t *testing.T) {
	dir := t.TempDir()
	s := Saver{GlobalPath: filepath.Join(dir, GlobalFileName)}

	if err := s.DeleteGlobalKey("x_access_token"); err != nil {
		t.Errorf("DeleteGlobalKey() on missing file error = %v", err)
	}

	if err := s.SaveGlobal("x_access_token", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveGlobal("default_tone", "casual"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteGlobalKey("x_access_token"); err != nil {
		t.Fatalf("DeleteGlobalKey() error = %v", err)
	}

	saved := readYAML(t, s.GlobalPath)
	if _, ok := saved["x_access_token"]; ok {
		t.Error("x_access_token still present")
	}
	if saved["default_tone"] != "casual" {
		t.Errorf("default_tone = %v", saved["default_tone"])
	}
}

func TestNewSaver(t *testing.T) {
	r := NewResolver(ResolverConfig{
		GlobalPath:    "/etc/sf/config.yaml",
		GitRootFinder: func(string) (string, error) { return "/repo", nil },
	})
	s := NewSaver(r)
	if s.GlobalPath != "/etc/sf/config.yaml" || s.LocalPath != filepath.Join("/repo", LocalFileName) {
		t.Errorf("NewSaver() = %+v", s)
	}
}
