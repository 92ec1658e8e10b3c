package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
	"github.com/kjstillabower/weather-lookup-service/internal/units"
	"github.com/kjstillabower/weather-lookup-service/internal/validation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	temperatureService *service.TemperatureService
	client             client.WeatherClient
	logger             *zap.Logger
	maxLocationLen     int

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	temperatureService *service.TemperatureService,
	weatherClient client.WeatherClient,
	logger *zap.Logger,
	maxLocationLen int,
) *Handler {
	return &Handler{
		temperatureService: temperatureService,
		client:             weatherClient,
		logger:             logger,
		maxLocationLen:     maxLocationLen,
	}
}

// parseRequest validates the location path variable and unit query parameter
// shared by the lookup and refresh endpoints. Writes the error response and
// returns ok=false when invalid.
func (h *Handler) parseRequest(w http.ResponseWriter, r *http.Request) (location, unit string, ok bool) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], h.maxLocationLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return "", "", false
	}

	unit = strings.ToLower(strings.TrimSpace(r.URL.Query().Get("unit")))
	if unit == "" {
		unit = units.Celsius
	}
	if !units.IsValid(unit) {
		writeError(w, r, http.StatusBadRequest, "INVALID_UNIT", "unit must be celsius or fahrenheit")
		return "", "", false
	}
	return location, unit, true
}

// GetTemperature handles GET /temperature/{location}?unit=.
func (h *Handler) GetTemperature(w http.ResponseWriter, r *http.Request) {
	location, unit, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	result, err := h.temperatureService.GetCurrentTemperature(r.Context(), location, unit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PostRefresh handles POST /temperature/{location}/refresh?unit=.
// The eligibility gate runs here, before the pipeline is invoked; the service
// itself does not re-check it.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	location, unit, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	if !h.temperatureService.CheckRefreshEligibility(location) {
		observability.RefreshDeniedTotal.Inc()
		writeError(w, r, http.StatusTooManyRequests, "REFRESH_RATE_LIMITED",
			"refresh allowed at most once every 30 seconds per location")
		return
	}

	result, err := h.temperatureService.RefreshTemperature(r.Context(), location, unit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherProvider": "healthy"}
	if result.status == "degraded" {
		checks["weatherProvider"] = "unhealthy"
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-lookup-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > provider unreachable > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if err := h.client.Ping(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "provider_unreachable"}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard envelope with code,
// message and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps the closed set of pipeline error kinds to transport
// statuses. Invalid input is normally caught before the pipeline runs; the
// mapping here covers the defensive re-check.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "invalid location or unit")
	case errors.Is(err, service.ErrImplausibleReading),
		errors.Is(err, client.ErrProviderUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch temperature data")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("service error", zap.Error(err))
	}
}
