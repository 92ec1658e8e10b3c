package units

import (
	"fmt"
	"math"
	"time"
)

// Requested-unit identifiers accepted by the API and service layer.
const (
	Celsius    = "celsius"
	Fahrenheit = "fahrenheit"
)

// Display symbols carried on temperature records.
const (
	SymbolCelsius    = "°C"
	SymbolFahrenheit = "°F"
)

// IsValid reports whether unit is a recognized requested-unit identifier.
func IsValid(unit string) bool {
	return unit == Celsius || unit == Fahrenheit
}

// Symbol returns the display symbol for a requested unit.
// Unrecognized units fall back to Celsius; callers validate first.
func Symbol(unit string) string {
	if unit == Fahrenheit {
		return SymbolFahrenheit
	}
	return SymbolCelsius
}

// CelsiusToFahrenheit converts a Celsius reading to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts a Fahrenheit reading to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// RoundTenth rounds a value to exactly one fractional digit.
// Applied to every temperature before storage or return.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// FormatUpdatedAt renders the display timestamp shown alongside a reading,
// 24-hour clock with zero padding.
func FormatUpdatedAt(t time.Time) string {
	return fmt.Sprintf("Updated at %02d:%02d", t.Hour(), t.Minute())
}
