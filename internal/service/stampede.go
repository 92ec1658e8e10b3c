package service

import "sync"

// stampedeTracker counts concurrent cache misses per key. Stampedes (N
// concurrent misses triggering N provider fetches) are an accepted
// simplification; the tracker only makes them visible in metrics.
type stampedeTracker struct {
	mu       sync.Mutex
	inFlight map[string]int // key -> misses currently being resolved
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		inFlight: make(map[string]int),
	}
}

// RecordMiss registers a miss for key and returns the concurrent miss count
// including this one. Pair with a deferred RecordHit(key).
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.inFlight[key]++
	return st.inFlight[key]
}

// RecordHit marks one miss for key as resolved.
func (st *stampedeTracker) RecordHit(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if n, ok := st.inFlight[key]; ok && n > 0 {
		st.inFlight[key]--
		if st.inFlight[key] == 0 {
			delete(st.inFlight, key)
		}
	}
}
