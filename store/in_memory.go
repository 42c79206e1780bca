package store

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/gatemesh/core"
)

// DefaultCleanupInterval is the purge interval used by hosts that own an
// in-memory store.
const DefaultCleanupInterval = time.Minute

type entry struct {
	value     string
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// Now supplies the current time used for expiry. Defaults to time.Now.
	Now func() time.Time
	// CleanupInterval, when positive, starts a background loop calling Purge
	// at that interval until Close.
	CleanupInterval time.Duration
}

// InMemoryStore is a volatile KVStore storing values in a process local map.
// It is safe for concurrent access. Expired keys are dropped when read, and
// keys that are never read again are dropped by Purge or the cleanup loop.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &InMemoryStore{entries: make(map[string]entry), now: opts.Now}
	if opts.CleanupInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.cleanupLoop(opts.CleanupInterval)
	}
	return s
}

func (s *InMemoryStore) cleanupLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Purge()
		}
	}
}

// Close stops the cleanup loop, if any. The stored entries stay readable.
func (s *InMemoryStore) Close() error {
	if s.stop == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

// Set stores value at key, replacing any previous value and expiry.
func (s *InMemoryStore) Set(_ context.Context, key, value string, expire time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if expire > 0 {
		e.expiresAt = s.now().Add(expire)
	}
	s.entries[key] = e
	return nil
}

// Get returns the live value at key.
func (s *InMemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	e, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

// Delete removes key if present.
func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// TTL reports the remaining lifetime of key.
func (s *InMemoryStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	e, ok := s.lookup(key)
	if !ok {
		return 0, false, nil
	}
	if e.expiresAt.IsZero() {
		return core.NoExpiry, true, nil
	}
	return e.expiresAt.Sub(s.now()), true, nil
}

// Purge drops every expired entry and returns how many were removed.
func (s *InMemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// lookup returns the live entry at key and drops it if it has expired.
func (s *InMemoryStore) lookup(key string) (entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return entry{}, false
	}
	if !e.expired(s.now()) {
		return e, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// the key may have been rewritten since the read lock was released
	if cur, ok := s.entries[key]; ok && cur.expired(s.now()) {
		delete(s.entries, key)
	}
	return entry{}, false
}
