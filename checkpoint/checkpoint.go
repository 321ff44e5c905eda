// Package checkpoint persists workflow threads between steps.
//
// A Checkpoint is the full saved form of one thread: its serialized state,
// a Cursor naming the next node to run (and whether the thread is suspended
// waiting on a human), and a monotonically increasing Version used for
// optimistic concurrency.
//
// Implementations:
//   - MemoryStore: in-process map, for tests and single-shot CLI runs
//   - FileStore: one JSON document per thread, atomic rename on save
//   - SQLiteStore: single table, schema tracked with PRAGMA user_version
//   - RedisStore: one hash per thread, WATCH/MULTI saves, SET NX locks
//
// Every Save replaces the whole checkpoint or nothing. A reader never sees
// a half-written thread.
package checkpoint

import (
	"context"
	"encoding/json"
	"regexp"
	"time"
)

// End is the cursor value of a finished thread.
const End = "__end__"

// Cursor records where a thread resumes.
type Cursor struct {
	// Next is the node that runs next, or End.
	Next string `json:"next"`

	// Suspended is set while Next is waiting on an external resume value.
	Suspended bool `json:"suspended,omitempty"`

	// Payload is the interrupt payload shown to whoever resumes the thread.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Token must be presented on resume when non-empty.
	Token string `json:"token,omitempty"`

	// Step counts node executions since the thread started.
	Step int `json:"step"`
}

// Done reports whether the thread has reached End.
func (c Cursor) Done() bool {
	return c.Next == End
}

// Checkpoint is one saved thread.
type Checkpoint struct {
	ThreadID  string          `json:"thread_id"`
	State     json.RawMessage `json:"state"`
	Cursor    Cursor          `json:"cursor"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Clone returns a deep copy so callers can't alias store internals.
func (c Checkpoint) Clone() Checkpoint {
	out := c
	out.State = cloneRaw(c.State)
	out.Cursor.Payload = cloneRaw(c.Cursor.Payload)
	return out
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

// =============================================================================
// Store Interfaces
// =============================================================================

// Store is durable keyed storage of checkpoints.
//
// Save must succeed only when cp.Version is exactly one more than the stored
// version (1 for a new thread); otherwise it fails with ErrVersionConflict.
type Store interface {
	Save(ctx context.Context, cp Checkpoint) error
	Load(ctx context.Context, threadID string) (Checkpoint, error)
	Delete(ctx context.Context, threadID string) error
}

// Lister is implemented by stores that can enumerate threads.
type Lister interface {
	List(ctx context.Context, filter Filter) ([]Checkpoint, error)
}

// Locker serializes work on a single thread. The returned func releases the
// lock and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, threadID string) (unlock func(), err error)
}

// Filter narrows List results.
type Filter struct {
	// SuspendedOnly keeps threads waiting on a resume value.
	SuspendedOnly bool

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

func (f Filter) match(cp Checkpoint) bool {
	if f.SuspendedOnly && !cp.Cursor.Suspended {
		return false
	}
	return true
}

var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateThreadID rejects ids that are empty, too long, or unsafe as file
// names and keys.
func ValidateThreadID(id string) error {
	if !threadIDPattern.MatchString(id) {
		return ErrInvalidThreadID
	}
	return nil
}

// checkVersion applies the optimistic concurrency rule shared by every store.
func checkVersion(stored int64, exists bool, next int64) error {
	if !exists {
		if next != 1 {
			return ErrVersionConflict
		}
		return nil
	}
	if next != stored+1 {
		return ErrVersionConflict
	}
	return nil
}
