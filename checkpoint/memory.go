package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]Checkpoint
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string]Checkpoint)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ValidateThreadID(cp.ThreadID); err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	if err := ctx.Err(); err != nil {
		return wrap("save", cp.ThreadID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.threads[cp.ThreadID]
	if err := checkVersion(stored.Version, exists, cp.Version); err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	s.threads[cp.ThreadID] = cp.Clone()
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, wrap("load", threadID, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.threads[threadID]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	return cp.Clone(), nil
}

// Delete implements Store. Deleting a missing thread is not an error.
func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// List implements Lister. Results are ordered oldest update first.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Checkpoint
	for _, cp := range s.threads {
		if filter.match(cp) {
			out = append(out, cp.Clone())
		}
	}
	sortCheckpoints(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored threads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads)
}

func sortCheckpoints(cps []Checkpoint) {
	sort.Slice(cps, func(i, j int) bool {
		if cps[i].UpdatedAt.Equal(cps[j].UpdatedAt) {
			return cps[i].ThreadID < cps[j].ThreadID
		}
		return cps[i].UpdatedAt.Before(cps[j].UpdatedAt)
	})
}
