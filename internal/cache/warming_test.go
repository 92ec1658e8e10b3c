package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
)

// mockFetcher records the locations it was asked for and fails the ones
// listed in failFor.
type mockFetcher struct {
	mu      sync.Mutex
	fetched []string
	failFor map[string]bool
}

func (m *mockFetcher) GetCurrentTemperature(ctx context.Context, location, unit string) (models.TemperatureRecord, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, location)
	m.mu.Unlock()
	if m.failFor[location] {
		return models.TemperatureRecord{}, fmt.Errorf("fetch %s: %w", location, errors.New("provider down"))
	}
	return models.TemperatureRecord{Location: location, Unit: unit}, nil
}

func (m *mockFetcher) fetchedLocations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.fetched...)
}

// TestWarmer_Warm verifies every location is fetched and a clean run returns nil.
func TestWarmer_Warm(t *testing.T) {
	fetcher := &mockFetcher{}
	warmer := NewWarmer(fetcher, zap.NewNop())

	locations := []string{"london", "oslo", "tokyo"}
	if err := warmer.Warm(context.Background(), locations); err != nil {
		t.Fatalf("Warm() error = %v", err)
	}

	fetched := fetcher.fetchedLocations()
	if len(fetched) != len(locations) {
		t.Fatalf("fetched %d locations, want %d", len(fetched), len(locations))
	}
	seen := make(map[string]bool, len(fetched))
	for _, loc := range fetched {
		seen[loc] = true
	}
	for _, loc := range locations {
		if !seen[loc] {
			t.Errorf("location %q was never fetched", loc)
		}
	}
}

// TestWarmer_WarmPartialFailure verifies one failing location does not stop the
// others and the error names the failed location.
func TestWarmer_WarmPartialFailure(t *testing.T) {
	fetcher := &mockFetcher{failFor: map[string]bool{"oslo": true}}
	warmer := NewWarmer(fetcher, zap.NewNop())

	err := warmer.Warm(context.Background(), []string{"london", "oslo", "tokyo"})
	if err == nil {
		t.Fatal("Warm() error = nil, want aggregated failure")
	}
	if !strings.Contains(err.Error(), "oslo") {
		t.Errorf("Warm() error = %v, want mention of oslo", err)
	}
	if got := len(fetcher.fetchedLocations()); got != 3 {
		t.Errorf("fetched %d locations, want all 3 despite the failure", got)
	}
}

// TestWarmer_WarmEmpty verifies warming nothing is a no-op success.
func TestWarmer_WarmEmpty(t *testing.T) {
	warmer := NewWarmer(&mockFetcher{}, zap.NewNop())
	if err := warmer.Warm(context.Background(), nil); err != nil {
		t.Errorf("Warm(nil) error = %v, want nil", err)
	}
}

// TestWarmer_WarmPeriodicStops verifies the loop exits on ctx cancellation.
func TestWarmer_WarmPeriodicStops(t *testing.T) {
	warmer := NewWarmer(&mockFetcher{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := warmer.WarmPeriodic(ctx, []string{"london"}, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("WarmPeriodic() error = %v, want context.Canceled", err)
	}
}
