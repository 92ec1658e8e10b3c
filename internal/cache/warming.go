package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
	"github.com/kjstillabower/weather-lookup-service/internal/units"
)

// TemperatureFetcher is implemented by the service layer to retrieve a
// temperature for a location. Used by Warmer to avoid a circular dependency
// on the service package.
type TemperatureFetcher interface {
	GetCurrentTemperature(ctx context.Context, location, unit string) (models.TemperatureRecord, error)
}

// Warmer prefetches temperatures for a list of locations so the first real
// lookups hit a populated cache.
type Warmer struct {
	fetcher TemperatureFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher TemperatureFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm fetches each location concurrently (Celsius) and populates the cache
// via the fetcher. Returns an aggregated error if any location failed.
func (w *Warmer) Warm(ctx context.Context, locations []string) error {
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("locations", len(locations)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(locations))
	for _, loc := range locations {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.fetcher.GetCurrentTemperature(ctx, loc, units.Celsius); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", loc, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// WarmPeriodic re-warms the cache every interval until ctx is cancelled.
// Individual warm failures are logged and do not stop the loop.
func (w *Warmer) WarmPeriodic(ctx context.Context, locations []string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, locations); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
