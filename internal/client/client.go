package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// WeatherClient is the upstream fetch adapter consumed by the service layer.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, location string) (Observation, error)
	Ping(ctx context.Context) error
}

// ErrProviderUnavailable is the single failure kind the adapter exposes.
// Timeouts, transport errors, non-2xx statuses, malformed bodies and an open
// circuit breaker all normalize to it, carrying the underlying diagnostic.
var ErrProviderUnavailable = errors.New("weather provider unavailable")

// Observation is the normalized provider reading consumed by the pipeline.
// Condition is accepted from the provider but not currently surfaced.
type Observation struct {
	Location  string // provider's canonical location name
	Region    string
	Country   string
	TempC     float64
	TempF     float64
	Condition string
}

// DefaultTimeout bounds a single provider call. There are no retries here;
// one failed attempt is terminal for that call.
const DefaultTimeout = 5 * time.Second

// WeatherAPIClient fetches current conditions from a WeatherAPI-compatible
// endpoint ({base}/current.json?key=&q=).
type WeatherAPIClient struct {
	apiKey  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewWeatherAPIClient creates a client for the given base URL and credential.
// A non-positive timeout falls back to DefaultTimeout.
func NewWeatherAPIClient(apiKey, baseURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("weatherapi: API key is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("weatherapi: base URL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &WeatherAPIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker installs an optional breaker around provider calls.
// An open breaker fails fast as ErrProviderUnavailable, which flows into the
// caller's offline-fallback path like any other fetch failure.
func (c *WeatherAPIClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// currentResponse mirrors the subset of the provider payload we consume.
type currentResponse struct {
	Location struct {
		Name    string `json:"name"`
		Region  string `json:"region"`
		Country string `json:"country"`
	} `json:"location"`
	Current struct {
		TempC     float64 `json:"temp_c"`
		TempF     float64 `json:"temp_f"`
		Condition struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

// FetchCurrent retrieves the current observation for location, bounded by the
// configured timeout. Every failure is reported as ErrProviderUnavailable.
func (c *WeatherAPIClient) FetchCurrent(ctx context.Context, location string) (Observation, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, location)
	}
	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callAPI(ctx, location)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.ProviderCallsTotal.WithLabelValues("breaker_open").Inc()
			return Observation{}, fmt.Errorf("%w: circuit breaker open", ErrProviderUnavailable)
		}
		return Observation{}, err
	}
	return v.(Observation), nil
}

func (c *WeatherAPIClient) callAPI(ctx context.Context, location string) (Observation, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		return Observation{}, fmt.Errorf("%w: build request: %v", ErrProviderUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		observability.ProviderCallDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Observation{}, fmt.Errorf("%w: request timeout: %v", ErrProviderUnavailable, err)
		}
		return Observation{}, fmt.Errorf("%w: http request failed: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(status).Inc()
	observability.ProviderCallDuration.WithLabelValues(status).Observe(duration)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Observation{}, fmt.Errorf("%w: HTTP %d", ErrProviderUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: read response body: %v", ErrProviderUnavailable, err)
	}

	var apiResp currentResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Observation{}, fmt.Errorf("%w: parse response: %v", ErrProviderUnavailable, err)
	}

	return c.mapResponse(apiResp, location), nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, location string) (*http.Request, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	base = base.JoinPath("current.json")

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", location)
	base.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *WeatherAPIClient) mapResponse(apiResp currentResponse, location string) Observation {
	name := apiResp.Location.Name
	if name == "" {
		name = location
	}
	return Observation{
		Location:  name,
		Region:    apiResp.Location.Region,
		Country:   apiResp.Location.Country,
		TempC:     apiResp.Current.TempC,
		TempF:     apiResp.Current.TempF,
		Condition: apiResp.Current.Condition.Text,
	}
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// Ping performs a bounded connectivity probe against the provider. Used by
// the health endpoint; bypasses the circuit breaker on purpose so health can
// observe recovery while the breaker is still open.
func (c *WeatherAPIClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, "London")
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed: HTTP %d", resp.StatusCode)
	}
	return nil
}
