package cache

import (
	"sync"
	"time"
)

// entry wraps a stored value with its absolute expiry deadline.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is a mutex-protected in-memory key/value store with per-entry TTL.
// Expired entries are removed lazily on Get; a background sweep reclaims
// entries nobody reads again. Correctness of Get never depends on the sweep
// running, only on the lazy expiry check. All state is process-lifetime only.
type Store[V any] struct {
	mu   sync.Mutex
	data map[string]entry[V]

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// New creates a Store that sweeps expired entries at the given interval.
// A non-positive interval disables the background sweep; lazy expiry on Get
// still applies. Callers own the lifecycle and must Stop the store on shutdown.
func New[V any](sweepInterval time.Duration) *Store[V] {
	s := &Store[V]{
		data:          make(map[string]entry[V]),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	if sweepInterval > 0 {
		go s.sweepLoop()
	}
	return s
}

// Set stores value under key with the given TTL, unconditionally overwriting
// any existing entry for that key.
func (s *Store[V]) Set(key string, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry[V]{value: value, expiresAt: time.Now().Add(ttl)}
}

// Get returns the value for key if present and not past its expiry.
// Expired entries are removed on access and reported as absent.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	if time.Now().After(e.expiresAt) {
		delete(s.data, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Delete removes the entry for key. No-op when absent.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Clear removes all entries.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]entry[V])
}

// Len returns the number of stored entries, including expired entries the
// sweep has not reclaimed yet. Intended for metrics and tests.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Stop terminates the background sweep. In-flight Get/Set calls are
// unaffected and the store remains usable. Safe to call more than once.
func (s *Store[V]) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// sweepLoop evicts expired entries on a fixed interval until Stop is called.
func (s *Store[V]) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store[V]) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, k)
		}
	}
}
