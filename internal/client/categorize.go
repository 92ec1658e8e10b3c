package client

import (
	"context"
	"errors"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics and logs.
type ErrorCategory string

// Error category constants used as metric labels.
const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNetwork     ErrorCategory = "network"
	ErrorCategoryBreakerOpen ErrorCategory = "breaker_open"
	ErrorCategoryUpstream    ErrorCategory = "upstream_status"
	ErrorCategoryParsing     ErrorCategory = "parsing"
	ErrorCategoryUnknown     ErrorCategory = "unknown"
)

// CategorizeError maps a fetch error to a stable ErrorCategory. The adapter
// collapses everything into ErrProviderUnavailable, so categorization works
// off the wrapped diagnostic text.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded"):
		return ErrorCategoryTimeout
	case strings.Contains(errStr, "breaker open"):
		return ErrorCategoryBreakerOpen
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "http request failed"):
		return ErrorCategoryNetwork
	case strings.Contains(errStr, "HTTP "):
		return ErrorCategoryUpstream
	case strings.Contains(errStr, "parse") || strings.Contains(errStr, "unmarshal") ||
		strings.Contains(errStr, "read response body"):
		return ErrorCategoryParsing
	}

	return ErrorCategoryUnknown
}
