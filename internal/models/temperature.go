package models

import "time"

// ConnectionStatus describes how a temperature record relates to the upstream
// provider at the moment it is returned.
type ConnectionStatus string

const (
	// StatusOnline means the record was freshly fetched, or cached and fetched
	// within the last hour.
	StatusOnline ConnectionStatus = "online"
	// StatusStale means the record was cached and fetched more than an hour ago.
	StatusStale ConnectionStatus = "stale"
	// StatusOffline means the record was served from cache because a live fetch failed.
	StatusOffline ConnectionStatus = "offline"
)

// TemperatureRecord is the unit of cached and returned temperature data.
// Records are never mutated in place; relabeling goes through WithStatus.
type TemperatureRecord struct {
	Temperature      float64          `json:"temperature"` // rounded to one decimal digit
	Unit             string           `json:"unit"`        // "°C" or "°F"
	Location         string           `json:"location"`    // provider's canonical name
	LastUpdate       string           `json:"lastUpdate"`  // "Updated at HH:MM", moment of fetch
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`

	// FetchedAt is the machine-readable moment the record was fetched from the
	// provider. Staleness is computed from it, never from LastUpdate.
	FetchedAt time.Time `json:"-"`
}

// WithStatus returns a copy of the record with only ConnectionStatus replaced.
func (r TemperatureRecord) WithStatus(s ConnectionStatus) TemperatureRecord {
	out := r
	out.ConnectionStatus = s
	return out
}
