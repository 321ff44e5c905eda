package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key layout. All keys share a configurable prefix.
//
//	{prefix}checkpoint:{thread}  hash: state, cursor, version, updated_at
//	{prefix}threads              set of every thread id
//	{prefix}suspended            set of suspended thread ids
//	{prefix}lock:{thread}        per-thread lock owner token
const defaultRedisPrefix = "socialflow:"

// RedisStore keeps checkpoints in Redis and doubles as a cross-process Locker.
type RedisStore struct {
	client  goredis.UniversalClient
	prefix  string
	lockTTL time.Duration
	poll    time.Duration
}

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithLockTTL sets how long a thread lock survives a crashed holder. A live
// holder keeps extending it, so runs may take longer than d.
func WithLockTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.lockTTL = d }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client goredis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  defaultRedisPrefix,
		lockTTL: 2 * time.Minute,
		poll:    50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenRedis connects to addr and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, opts ...RedisOption) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, wrap("open", "", err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) checkpointKey(threadID string) string {
	return s.prefix + "checkpoint:" + threadID
}

func (s *RedisStore) threadsKey() string   { return s.prefix + "threads" }
func (s *RedisStore) suspendedKey() string { return s.prefix + "suspended" }

func (s *RedisStore) lockKey(threadID string) string {
	return s.prefix + "lock:" + threadID
}

// Save implements Store using WATCH on the thread key.
func (s *RedisStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ValidateThreadID(cp.ThreadID); err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	fields, err := checkpointToMap(cp)
	if err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	key := s.checkpointKey(cp.ThreadID)

	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		stored, err := tx.HGet(ctx, key, "version").Int64()
		exists := true
		if errors.Is(err, goredis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}
		if err := checkVersion(stored, exists, cp.Version); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			pipe.SAdd(ctx, s.threadsKey(), cp.ThreadID)
			if cp.Cursor.Suspended {
				pipe.SAdd(ctx, s.suspendedKey(), cp.ThreadID)
			} else {
				pipe.SRem(ctx, s.suspendedKey(), cp.ThreadID)
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, goredis.TxFailedErr) {
		err = ErrVersionConflict
	}
	return wrap("save", cp.ThreadID, err)
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	vals, err := s.client.HGetAll(ctx, s.checkpointKey(threadID)).Result()
	if err != nil {
		return Checkpoint{}, wrap("load", threadID, err)
	}
	if len(vals) == 0 {
		return Checkpoint{}, ErrNotFound
	}
	cp, err := mapToCheckpoint(threadID, vals)
	if err != nil {
		return Checkpoint{}, wrap("load", threadID, err)
	}
	return cp, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.checkpointKey(threadID))
	pipe.SRem(ctx, s.threadsKey(), threadID)
	pipe.SRem(ctx, s.suspendedKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("delete", threadID, err)
	}
	return nil
}

// List implements Lister.
func (s *RedisStore) List(ctx context.Context, filter Filter) ([]Checkpoint, error) {
	setKey := s.threadsKey()
	if filter.SuspendedOnly {
		setKey = s.suspendedKey()
	}
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, wrap("list", "", err)
	}
	sort.Strings(ids)

	var out []Checkpoint
	for _, id := range ids {
		cp, err := s.Load(ctx, id)
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

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the lock expiry out only when the caller still owns it.
var extendScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock implements Locker with SET NX PX, polling until ctx is done. The lock
// is extended in the background until the returned func is called.
func (s *RedisStore) Lock(ctx context.Context, threadID string) (func(), error) {
	owner, err := gonanoid.New()
	if err != nil {
		return nil, wrap("lock", threadID, err)
	}
	key := s.lockKey(threadID)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		ok, err := s.client.SetNX(ctx, key, owner, s.lockTTL).Result()
		if err != nil {
			return nil, wrap("lock", threadID, err)
		}
		if ok {
			return s.hold(key, owner), nil
		}
		select {
		case <-ctx.Done():
			return nil, wrap("lock", threadID, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// hold keeps key alive while the owner holds it and returns the release func.
func (s *RedisStore) hold(key, owner string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		t := time.NewTicker(refreshInterval(s.lockTTL))
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				n, err := extendScript.Run(context.Background(), s.client, []string{key}, owner, s.lockTTL.Milliseconds()).Int()
				if err == nil && n == 0 {
					// Lost the lock; nothing left to extend.
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
			// Background context: release must run even if ctx was cancelled.
			releaseScript.Run(context.Background(), s.client, []string{key}, owner)
		})
	}
}

// refreshInterval extends a lock three times per TTL.
func refreshInterval(ttl time.Duration) time.Duration {
	if d := ttl / 3; d >= 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}

func checkpointToMap(cp Checkpoint) (map[string]any, error) {
	cursor, err := json.Marshal(cp.Cursor)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"state":      string(cp.State),
		"cursor":     string(cursor),
		"version":    cp.Version,
		"updated_at": cp.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func mapToCheckpoint(threadID string, vals map[string]string) (Checkpoint, error) {
	cp := Checkpoint{
		ThreadID: threadID,
		State:    json.RawMessage(vals["state"]),
	}
	if err := json.Unmarshal([]byte(vals["cursor"]), &cp.Cursor); err != nil {
		return Checkpoint{}, fmt.Errorf("parse cursor: %w", err)
	}
	v, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("parse version: %w", err)
	}
	cp.Version = v
	if ts := vals["updated_at"]; ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("parse updated_at: %w", err)
		}
		cp.UpdatedAt = t
	}
	return cp, nil
}
