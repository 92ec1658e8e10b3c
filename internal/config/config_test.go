package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `server:
  port: "9090"
`

const fullEnvYAML = `server:
  port: "9090"
provider:
  base_url: "https://example.test/v1"
  timeout: "3s"
request:
  timeout: "8s"
cache:
  ttl: "10m"
  sweep_interval: "30s"
refresh:
  min_interval: "45s"
validation:
  location_max_length: 64
reliability:
  rate_limit_rps: 10
  rate_limit_burst: 20
  breaker_enabled: false
warming:
  enabled: true
  interval: "5m"
  locations: ["london", "oslo"]
shutdown:
  timeout: "5s"
`

// writeEnvFile writes config/dev.yaml under dir.
func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// writeSecretsFile writes config/secrets.yaml under dir.
func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "secrets.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// chdirTemp moves into a fresh temp dir for the duration of the test.
func chdirTemp(t *testing.T) string {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

// TestLoad_FailsWhenNoAPIKey verifies Load refuses to start without a credential.
func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "")
	os.Unsetenv("WEATHER_API_KEY")

	dir := chdirTemp(t)
	writeEnvFile(t, dir, minimalEnvYAML)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when no WEATHER_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("Load() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

// TestLoad_SucceedsWithSecretsFile verifies the secrets file supplies the API
// key when the env var is unset.
func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "")
	os.Unsetenv("WEATHER_API_KEY")

	dir := chdirTemp(t)
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderAPIKey != "key-from-secrets-file" {
		t.Errorf("ProviderAPIKey = %q, want key from secrets file", cfg.ProviderAPIKey)
	}
}

// TestLoad_Defaults verifies every unset field gets its documented default.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "env-key")
	dir := chdirTemp(t)
	writeEnvFile(t, dir, minimalEnvYAML)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.ProviderBaseURL != "https://api.weatherapi.com/v1" {
		t.Errorf("ProviderBaseURL = %q, want weatherapi default", cfg.ProviderBaseURL)
	}
	if cfg.ProviderTimeout != 5*time.Second {
		t.Errorf("ProviderTimeout = %v, want 5s", cfg.ProviderTimeout)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
	}
	if cfg.CacheSweepInterval != time.Minute {
		t.Errorf("CacheSweepInterval = %v, want 1m", cfg.CacheSweepInterval)
	}
	if cfg.RefreshMinInterval != 30*time.Second {
		t.Errorf("RefreshMinInterval = %v, want 30s", cfg.RefreshMinInterval)
	}
	if cfg.LocationMaxLength != 50 {
		t.Errorf("LocationMaxLength = %d, want 50", cfg.LocationMaxLength)
	}
	if !cfg.BreakerEnabled {
		t.Error("BreakerEnabled = false, want true by default")
	}
}

// TestLoad_FileOverrides verifies YAML values take effect.
func TestLoad_FileOverrides(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "env-key")
	dir := chdirTemp(t)
	writeEnvFile(t, dir, fullEnvYAML)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderBaseURL != "https://example.test/v1" {
		t.Errorf("ProviderBaseURL = %q, want override", cfg.ProviderBaseURL)
	}
	if cfg.ProviderTimeout != 3*time.Second {
		t.Errorf("ProviderTimeout = %v, want 3s", cfg.ProviderTimeout)
	}
	if cfg.CacheTTL != 10*time.Minute {
		t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
	}
	if cfg.RefreshMinInterval != 45*time.Second {
		t.Errorf("RefreshMinInterval = %v, want 45s", cfg.RefreshMinInterval)
	}
	if cfg.LocationMaxLength != 64 {
		t.Errorf("LocationMaxLength = %d, want 64", cfg.LocationMaxLength)
	}
	if cfg.BreakerEnabled {
		t.Error("BreakerEnabled = true, want false per file")
	}
	if !cfg.WarmCache || len(cfg.TrackedLocations) != 2 {
		t.Errorf("warming = %v/%v, want enabled with 2 locations", cfg.WarmCache, cfg.TrackedLocations)
	}
	if cfg.RateLimitRPS != 10 || cfg.RateLimitBurst != 20 {
		t.Errorf("rate limit = %d/%d, want 10/20", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

// TestLoad_EnvOverridesFile verifies env vars beat YAML values.
func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "env-key")
	t.Setenv("WEATHER_API_URL", "https://env.example.test/v1")
	t.Setenv("PORT", "7070")
	dir := chdirTemp(t)
	writeEnvFile(t, dir, fullEnvYAML)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProviderAPIKey != "env-key" {
		t.Errorf("ProviderAPIKey = %q, want env value", cfg.ProviderAPIKey)
	}
	if cfg.ProviderBaseURL != "https://env.example.test/v1" {
		t.Errorf("ProviderBaseURL = %q, want env value", cfg.ProviderBaseURL)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want env value", cfg.ServerPort)
	}
}

// TestLoad_RequestTimeoutHeadroom verifies the request timeout is bumped
// above the provider timeout when misconfigured.
func TestLoad_RequestTimeoutHeadroom(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "env-key")
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `provider:
  timeout: "6s"
request:
  timeout: "2s"
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout <= cfg.ProviderTimeout {
		t.Errorf("RequestTimeout = %v, want > ProviderTimeout %v", cfg.RequestTimeout, cfg.ProviderTimeout)
	}
}

// TestLoad_WarmingRequiresLocations verifies the warming config invariant.
func TestLoad_WarmingRequiresLocations(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "env-key")
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `warming:
  enabled: true
`)

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for warming without locations, got nil")
	}
}

// TestLoad_MissingConfigFile verifies a clear error when the env YAML is absent.
func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", "env-key")
	chdirTemp(t)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing config file, got nil")
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("Load() error = %v, want config file not found", err)
	}
}

// TestParseDuration verifies fallback behavior for bad and empty inputs.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name string
		in   string
		def  time.Duration
		want time.Duration
	}{
		{name: "valid", in: "90s", def: time.Minute, want: 90 * time.Second},
		{name: "empty", in: "", def: time.Minute, want: time.Minute},
		{name: "garbage", in: "soon", def: time.Minute, want: time.Minute},
		{name: "negative falls back", in: "-5s", def: time.Minute, want: time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDuration(tt.in, tt.def); got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
