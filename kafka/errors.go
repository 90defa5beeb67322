package kafka

import (
	"context"
	"errors"
	"strings"
)

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"broker not available",
	"leader not available",
	"not leader for partition",
	"request timed out",
	"dial tcp",
}

// IsRetryableError reports whether a write error is worth retrying.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
