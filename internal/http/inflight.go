package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// inFlightTracker counts requests currently being served. Used during
// graceful shutdown to wait for in-flight work to drain.
type inFlightTracker struct {
	count atomic.Int64
}

func (t *inFlightTracker) add(delta int64) { t.count.Add(delta) }

// Count returns the current in-flight count.
func (t *inFlightTracker) Count() int64 { return t.count.Load() }

// WaitForZero blocks until the in-flight count reaches zero or ctx is done.
// checkInterval is how often to re-check the count.
func (t *inFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for {
		if t.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// globalInFlight is the process-wide in-flight counter fed by InFlightMiddleware.
var globalInFlight = &inFlightTracker{}

// InFlightMiddleware tracks requests for drain-aware shutdown.
func InFlightMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		globalInFlight.add(1)
		defer globalInFlight.add(-1)
		next.ServeHTTP(w, r)
	})
}

// InFlightCount returns the current number of in-flight requests.
func InFlightCount() int64 {
	return globalInFlight.Count()
}

// WaitForInFlight blocks until in-flight requests reach zero or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlight.WaitForZero(ctx, checkInterval)
}
