package service

import (
	"context"
	"strings"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// CheckRefreshEligibility reports whether a manual refresh is allowed for
// location. An absent guard entry means eligible; otherwise the minimum
// refresh interval must have elapsed since the last refresh.
func (s *TemperatureService) CheckRefreshEligibility(location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	ts, ok := s.refreshGuards.Get(refreshKey(loc))
	if !ok {
		return true
	}
	return s.now().Sub(ts) >= s.refreshInterval
}

// RefreshTemperature invalidates the cached record for (location, unit),
// stamps the refresh guard for location and re-runs the retrieval pipeline,
// which is guaranteed to take the miss path. It does not re-check
// eligibility; callers gate on CheckRefreshEligibility first.
func (s *TemperatureService) RefreshTemperature(ctx context.Context, location, unit string) (models.TemperatureRecord, error) {
	loc, unit, err := s.normalize(location, unit)
	if err != nil {
		return models.TemperatureRecord{}, err
	}

	observability.RefreshRequestsTotal.Inc()
	s.records.Delete(recordKey(loc, unit))
	s.refreshGuards.Set(refreshKey(loc), s.now(), s.refreshInterval)

	return s.lookup(ctx, loc, unit)
}
