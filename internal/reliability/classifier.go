package reliability

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Class names the failure category of a provider call.
type Class string

const (
	ClassTransient       Class = "transient"
	ClassRateLimited     Class = "rate_limited"
	ClassMisconfigured   Class = "misconfigured"
	ClassContentFiltered Class = "content_filtered"
	ClassInvalidInput    Class = "invalid_input"
	ClassUnknown         Class = "unknown"
)

// Retryable reports whether another attempt can succeed where this one failed.
func (c Class) Retryable() bool {
	switch c {
	case ClassMisconfigured, ClassContentFiltered, ClassInvalidInput:
		return false
	default:
		return true
	}
}

// Classified is implemented by errors that already know their class.
type Classified interface {
	FailureClass() Class
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ClassifyHTTPStatus maps an upstream HTTP status onto a failure class.
func ClassifyHTTPStatus(code int) Class {
	switch {
	case code == 401 || code == 403 || code == 404:
		return ClassMisconfigured
	case code == 429:
		return ClassRateLimited
	case IsRetryableHTTPStatus(code):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// Classify inspects err and returns its failure class. A nil error has no class.
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	var classified Classified
	if errors.As(err, &classified) {
		if c := classified.FailureClass(); c != "" && c != ClassUnknown {
			return c
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassifyMessage(err.Error())
}

var (
	misconfiguredMarkers = []string{
		"api key", "api_key", "apikey", "unauthenticated", "unauthorized", "permission denied",
		"invalid credentials", "credential", "not configured", "model not found",
	}
	rateLimitMarkers = []string{
		"rate limit", "rate_limit", "ratelimit", "too many requests", "quota", "resource exhausted",
		"resource_exhausted", "429",
	}
	contentFilterMarkers = []string{
		"safety", "blocked", "content filter", "content_filter", "content policy", "sensitive content",
	}
	transientMarkers = []string{
		"timeout", "timed out", "temporarily unavailable", "unavailable", "connection reset",
		"connection refused", "eof", "502", "503", "504",
	}
)

// ClassifyMessage is the last-resort classifier for providers that only expose error text.
func ClassifyMessage(msg string) Class {
	m := strings.ToLower(msg)
	switch {
	case containsAny(m, contentFilterMarkers):
		return ClassContentFiltered
	case containsAny(m, misconfiguredMarkers):
		return ClassMisconfigured
	case containsAny(m, rateLimitMarkers):
		return ClassRateLimited
	case containsAny(m, transientMarkers):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
