package validation

import (
	"errors"
	"strings"
)

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ValidateLocation trims the input and enforces the maximum length in runes.
// Returns the trimmed string or an error suitable for 400 INVALID_LOCATION
// responses. Normalization (e.g. lowercase) is left to the service layer.
func ValidateLocation(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	n := len([]rune(s))
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	return s, nil
}
