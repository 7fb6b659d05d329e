package llm

import (
	"errors"
	"strings"
)

// AuthError reports rejected or missing credentials. It is never retried.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return "authentication error (" + e.Provider + "): " + e.Message
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

type retryableError struct {
	reason string
	err    error
}

func (e *retryableError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

var (
	authMarkers = []string{"401", "403", "unauthorized", "invalid api key", "invalid x-api-key",
		"authentication", "permission denied", "api key not valid"}
	rateMarkers      = []string{"429", "rate limit", "rate_limit", "too many requests", "quota", "overloaded", "529"}
	transientMarkers = []string{"500", "502", "503", "504", "timeout", "connection reset",
		"connection refused", "eof", "temporarily unavailable"}
)

// classify maps a provider error onto AuthError, a retryable error or leaves
// it as a permanent failure. langchaingo surfaces HTTP failures as strings,
// so matching is textual.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if IsAuthError(err) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, authMarkers):
		return &AuthError{Provider: provider, Message: err.Error()}
	case containsAny(msg, rateMarkers):
		return &retryableError{reason: "rate limited", err: err}
	case containsAny(msg, transientMarkers):
		return &retryableError{reason: "transient failure", err: err}
	default:
		return err
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
