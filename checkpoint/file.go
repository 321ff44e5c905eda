package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore stores each thread as <dir>/<thread_id>.json.
//
// Saves write a temp file in the same directory and rename it over the old
// one. The version check is serialized within the process only; use the
// SQLite or Redis store when several processes share a thread.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, wrap("open", "", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(threadID string) string {
	return filepath.Join(s.dir, threadID+".json")
}

// Save implements Store.
func (s *FileStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ValidateThreadID(cp.ThreadID); err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	if err := ctx.Err(); err != nil {
		return wrap("save", cp.ThreadID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.read(cp.ThreadID)
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return wrap("save", cp.ThreadID, err)
	}
	if err := checkVersion(stored.Version, exists, cp.Version); err != nil {
		return wrap("save", cp.ThreadID, err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return wrap("save", cp.ThreadID, fmt.Errorf("marshal: %w", err))
	}
	if err := writeFileAtomic(s.path(cp.ThreadID), data); err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	return nil
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	if err := ValidateThreadID(threadID); err != nil {
		return Checkpoint{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, wrap("load", threadID, err)
	}
	cp, err := s.read(threadID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Checkpoint{}, wrap("load", threadID, err)
	}
	return cp, err
}

func (s *FileStore) read(threadID string) (Checkpoint, error) {
	data, err := os.ReadFile(s.path(threadID))
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("parse %s: %w", threadID, err)
	}
	return cp, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, threadID string) error {
	if err := ValidateThreadID(threadID); err != nil {
		return wrap("delete", threadID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(threadID)); err != nil && !os.IsNotExist(err) {
		return wrap("delete", threadID, err)
	}
	return nil
}

// List implements Lister. Unreadable files are skipped.
func (s *FileStore) List(ctx context.Context, filter Filter) ([]Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, wrap("list", "", err)
	}

	var out []Checkpoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		cp, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		if filter.match(cp) {
			out = append(out, cp)
		}
	}
	sortCheckpoints(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
