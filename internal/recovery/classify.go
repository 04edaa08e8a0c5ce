// Package recovery provides error classification, retry with backoff, and fallback substitution
// for calls to unreliable upstream services.
package recovery

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// Category describes how a failure should be handled
type Category string

// Error categories
const (
	CategoryTransient   Category = "transient"
	CategoryPermanent   Category = "permanent"
	CategoryRateLimited Category = "rate_limited"
	CategoryUnknown     Category = "unknown"
)

// Code returns the upper-case machine-readable form of the category
func (c Category) Code() string {
	return strings.ToUpper(string(c))
}

// rateLimitMessages are checked before transientMessages; first match wins.
var rateLimitMessages = []string{
	"rate limit",
	"too many requests",
	"quota exceeded",
	"429",
	"throttl",
}

var transientMessages = []string{
	"connection reset",
	"connection refused",
	"timeout",
	"temporarily unavailable",
	"service unavailable",
	"too many connections",
	"network unreachable",
	"host unreachable",
	"unavailable",
	"unreachable",
}

var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
}

// Classify maps an error to a Category. Type-based checks run before message heuristics because
// upstream SDKs often wrap network failures in generic error values.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	if errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}

	var permanent *PermanentError
	if errors.As(err, &permanent) {
		return CategoryPermanent
	}

	if isTransientKind(err) {
		return CategoryTransient
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range rateLimitMessages {
		if strings.Contains(msg, pattern) {
			return CategoryRateLimited
		}
	}
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return CategoryTransient
		}
	}

	return CategoryUnknown
}

func isTransientKind(err error) bool {
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRetryable reports whether the category alone justifies another attempt
func (c Category) IsRetryable() bool {
	return c == CategoryTransient || c == CategoryRateLimited
}
