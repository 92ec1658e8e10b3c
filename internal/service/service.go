package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/cache"
	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
	"github.com/kjstillabower/weather-lookup-service/internal/units"
	"github.com/kjstillabower/weather-lookup-service/internal/validation"
)

// ErrInvalidInput is returned for an empty or over-length location, or an
// unknown unit. The HTTP layer rejects these before the pipeline runs; the
// pipeline re-checks as a defensive invariant.
var ErrInvalidInput = errors.New("invalid input")

// ErrImplausibleReading is returned when the provider reports a temperature
// outside the accepted physical range. The reading is never cached.
var ErrImplausibleReading = errors.New("implausible temperature reading")

const (
	recordKeyPrefix  = "weather:"
	refreshKeyPrefix = "refresh:"

	// staleAfter is the age past which cached data is still served but
	// relabeled stale. Measured from FetchedAt, strictly greater-than.
	staleAfter = time.Hour

	// Plausible surface temperature range in Celsius, inclusive on both ends.
	plausibleMinC = -90.0
	plausibleMaxC = 60.0

	// Defaults applied when the corresponding constructor argument is zero.
	defaultTTL             = 15 * time.Minute
	defaultRefreshInterval = 30 * time.Second
	defaultMaxLocationLen  = 50
)

// TemperatureService orchestrates temperature retrieval: cache-first lookup
// with staleness relabel, bounded upstream fetch, plausibility validation,
// unit conversion, cache write and offline fallback. Cache-aside; concurrent
// misses for the same key are not deduplicated, only observed (stampede.go).
type TemperatureService struct {
	client          client.WeatherClient
	records         *cache.Store[models.TemperatureRecord]
	refreshGuards   *cache.Store[time.Time]
	ttl             time.Duration
	refreshInterval time.Duration
	maxLocationLen  int
	stampedeTracker *stampedeTracker

	// now is swapped out in tests to simulate the clock.
	now func() time.Time
}

// NewTemperatureService creates a TemperatureService owning the given stores.
// ttl is the record cache TTL, refreshInterval the minimum spacing between
// manual refreshes per location. Zero values select the defaults (15m, 30s, 50).
func NewTemperatureService(
	weatherClient client.WeatherClient,
	records *cache.Store[models.TemperatureRecord],
	refreshGuards *cache.Store[time.Time],
	ttl time.Duration,
	refreshInterval time.Duration,
	maxLocationLen int,
) *TemperatureService {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	if maxLocationLen <= 0 {
		maxLocationLen = defaultMaxLocationLen
	}
	return &TemperatureService{
		client:          weatherClient,
		records:         records,
		refreshGuards:   refreshGuards,
		ttl:             ttl,
		refreshInterval: refreshInterval,
		maxLocationLen:  maxLocationLen,
		stampedeTracker: newStampedeTracker(),
		now:             time.Now,
	}
}

// recordKey builds the cache key for a temperature record. The refresh guard
// namespace uses a distinct prefix so the two can never collide.
func recordKey(location, unit string) string {
	return recordKeyPrefix + location + ":" + unit
}

func refreshKey(location string) string {
	return refreshKeyPrefix + location
}

// GetCurrentTemperature returns the current temperature record for location
// in the requested unit ("celsius" or "fahrenheit"; empty defaults to celsius).
func (s *TemperatureService) GetCurrentTemperature(ctx context.Context, location, unit string) (models.TemperatureRecord, error) {
	loc, unit, err := s.normalize(location, unit)
	if err != nil {
		return models.TemperatureRecord{}, err
	}
	return s.lookup(ctx, loc, unit)
}

// normalize validates and canonicalizes the pipeline inputs.
func (s *TemperatureService) normalize(location, unit string) (string, string, error) {
	loc, err := validation.ValidateLocation(location, s.maxLocationLen)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = units.Celsius
	}
	if !units.IsValid(unit) {
		return "", "", fmt.Errorf("%w: unknown unit %q", ErrInvalidInput, unit)
	}
	return strings.ToLower(loc), unit, nil
}

// lookup runs the retrieval pipeline for an already-normalized location/unit.
func (s *TemperatureService) lookup(ctx context.Context, loc, unit string) (models.TemperatureRecord, error) {
	key := recordKey(loc, unit)
	logger := loggerFromContext(ctx)
	start := s.now()

	if rec, ok := s.records.Get(key); ok {
		observability.CacheHitsTotal.WithLabelValues("temperature").Inc()
		age := s.now().Sub(rec.FetchedAt)
		if logger != nil {
			logger.Debug("cache hit", zap.String("location", loc), zap.Duration("age", age))
		}
		if age > staleAfter {
			observability.StaleServesTotal.Inc()
			return rec.WithStatus(models.StatusStale), nil
		}
		return rec.WithStatus(models.StatusOnline), nil
	}
	observability.CacheMissesTotal.WithLabelValues("temperature").Inc()

	concurrentMisses := s.stampedeTracker.RecordMiss(key)
	defer s.stampedeTracker.RecordHit(key)
	if concurrentMisses > 1 {
		locLabel := observability.MetricLocationLabel(loc)
		observability.CacheStampedeDetectedTotal.WithLabelValues(locLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(locLabel).Observe(float64(concurrentMisses))
	}

	if logger != nil {
		logger.Debug("cache miss, fetching provider", zap.String("location", loc))
	}

	obs, err := s.client.FetchCurrent(ctx, loc)
	if err != nil {
		return s.fallback(key, loc, fmt.Errorf("fetch temperature for %s: %w", loc, err), logger)
	}

	if obs.TempC < plausibleMinC || obs.TempC > plausibleMaxC {
		observability.ImplausibleReadingsTotal.Inc()
		if logger != nil {
			logger.Warn("implausible provider reading",
				zap.String("location", loc), zap.Float64("temp_c", obs.TempC))
		}
		return s.fallback(key, loc,
			fmt.Errorf("%w: %.1f°C for %s", ErrImplausibleReading, obs.TempC, loc), logger)
	}

	fetchedAt := s.now()
	temp := obs.TempC
	if unit == units.Fahrenheit {
		temp = units.CelsiusToFahrenheit(obs.TempC)
	}
	rec := models.TemperatureRecord{
		Temperature:      units.RoundTenth(temp),
		Unit:             units.Symbol(unit),
		Location:         obs.Location,
		LastUpdate:       units.FormatUpdatedAt(fetchedAt),
		ConnectionStatus: models.StatusOnline,
		FetchedAt:        fetchedAt,
	}
	s.records.Set(key, rec, s.ttl)

	if logger != nil {
		logger.Debug("temperature served",
			zap.String("location", loc), zap.Bool("cached", false),
			zap.Duration("duration", s.now().Sub(start)))
	}
	return rec, nil
}

// fallback serves a previously cached record as a degraded success when a
// fetch failed. The second lookup covers the race where a concurrent call
// populated the key after this call missed. Without a cached record the
// original cause propagates.
func (s *TemperatureService) fallback(key, loc string, cause error, logger *zap.Logger) (models.TemperatureRecord, error) {
	if rec, ok := s.records.Get(key); ok {
		observability.OfflineServesTotal.Inc()
		if logger != nil {
			logger.Info("serving offline fallback",
				zap.String("location", loc), zap.Duration("age", s.now().Sub(rec.FetchedAt)),
				zap.String("cause", string(client.CategorizeError(cause))))
		}
		return rec.WithStatus(models.StatusOffline), nil
	}
	if errors.Is(cause, ErrImplausibleReading) {
		return models.TemperatureRecord{}, cause
	}
	return models.TemperatureRecord{}, fmt.Errorf("%w; no cached data available", cause)
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}
