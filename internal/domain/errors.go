package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceNotFound is returned for an id that is not registered.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceExists is returned when registering an id twice.
	ErrSourceExists = errors.New("source already registered")
	// ErrSourceIDRetired is returned when registering an id that belonged to a removed source.
	ErrSourceIDRetired = errors.New("source id was used by a removed source")
	// ErrLocalImmutable is returned for any attempt to remove or edit the local source.
	ErrLocalImmutable = errors.New("local source cannot be modified")
	// ErrCacheMiss is internal to the resource cache and never surfaced to callers.
	ErrCacheMiss = errors.New("cache miss")
)

// AuthErrorCode classifies an authentication failure.
type AuthErrorCode string

const (
	AuthMissingCredential AuthErrorCode = "missing-credential"
	AuthInvalidCredential AuthErrorCode = "invalid-credential"
	AuthUnreachable       AuthErrorCode = "unreachable"
)

// AuthError reports why a source could not be authenticated against.
type AuthError struct {
	Code       AuthErrorCode
	SourceID   string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth %s", e.Code)
	if e.SourceID != "" {
		msg += " for source " + e.SourceID
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a transport failure, timeout, or non-2xx response without a readable body.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Reachable reports whether the host answered at all.
func (e *NetworkError) Reachable() bool { return e.StatusCode != 0 }

// APIError is a non-2xx response carrying a backend supplied message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// StatusCodeOf extracts the HTTP status carried by a NetworkError or APIError, or 0.
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.StatusCode
	}
	return 0
}

// IsUnreachable reports whether err means the host could not be reached at all.
func IsUnreachable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && !netErr.Reachable()
}
