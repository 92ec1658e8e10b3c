package validation

import (
	"errors"
	"strings"
	"testing"
)

// TestValidateLocation verifies trimming, the empty check and the maximum
// length bound in runes.
func TestValidateLocation(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		maxLen  int
		want    string
		wantErr error
	}{
		{name: "valid", in: "Seattle", maxLen: 50, want: "Seattle"},
		{name: "trims whitespace", in: "  Seattle  ", maxLen: 50, want: "Seattle"},
		{name: "empty", in: "", maxLen: 50, wantErr: ErrLocationEmpty},
		{name: "whitespace only", in: "   ", maxLen: 50, wantErr: ErrLocationEmpty},
		{name: "at max length", in: strings.Repeat("a", 50), maxLen: 50, want: strings.Repeat("a", 50)},
		{name: "over max length", in: strings.Repeat("a", 51), maxLen: 50, wantErr: ErrLocationTooLong},
		{name: "multibyte counted in runes", in: strings.Repeat("é", 50), maxLen: 50, want: strings.Repeat("é", 50)},
		{name: "no max when zero", in: strings.Repeat("a", 200), maxLen: 0, want: strings.Repeat("a", 200)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateLocation(tt.in, tt.maxLen)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateLocation() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateLocation() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ValidateLocation() = %q, want %q", got, tt.want)
			}
		})
	}
}
