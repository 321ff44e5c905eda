package checkpoint

import (
	"context"
	"sync"
)

// KeyedMutex is an in-process Locker with one mutex per thread id.
// Entries are dropped once no caller holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// NewKeyedMutex creates an empty lock table.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock implements Locker. It blocks until the thread is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, threadID string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[threadID]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[threadID] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(threadID, e)
		return nil, wrap("lock", threadID, ErrLockTimeout)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(threadID, e)
		})
	}, nil
}

func (k *KeyedMutex) release(threadID string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, threadID)
	}
}

// LockerFor returns the store itself when it can lock across processes,
// otherwise a fresh KeyedMutex.
func LockerFor(s Store) Locker {
	if l, ok := s.(Locker); ok {
		return l
	}
	return NewKeyedMutex()
}
