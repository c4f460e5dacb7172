// Package apierrors provides shared error types for the Geoloqi client.
package apierrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingCredentials is returned when neither a user access token nor
	// a full application key/secret pair could be resolved.
	ErrMissingCredentials = errors.New("missing application credentials or a valid user access token")

	// ErrNoRefreshToken is returned when a session has to renew its access
	// token but never received a refresh token and has no application
	// credentials to fall back on.
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrTokenExpired matches API responses carrying the expired_token code.
	ErrTokenExpired = errors.New("access token expired")

	// ErrRetryExhausted matches an expired_token response that was still
	// returned after the session renewed its token and retried.
	ErrRetryExhausted = errors.New("access token still expired after renewal")

	// ErrUnauthorized is returned when the API rejects the credentials.
	ErrUnauthorized = errors.New("invalid or unauthorized credentials")
)

// ExpiredTokenCode is the error code the API uses to signal that the
// access token has to be renewed.
const ExpiredTokenCode = "expired_token"

// GeoloqiError is implemented by every typed error of this module, so
// callers can tell them apart from errors of other packages.
type GeoloqiError interface {
	error
	GeoloqiError()
}

// APIError is an error payload returned by the API, e.g.
// {"error": "invalid_grant", "error_description": "..."}.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	// Retried is set when the response was received after a token renewal.
	Retried bool
	// Response holds the full decoded payload.
	Response map[string]any
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("API error %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	if e.Code != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrTokenExpired:
		return e.Code == ExpiredTokenCode
	case ErrRetryExhausted:
		return e.Code == ExpiredTokenCode && e.Retried
	case ErrUnauthorized:
		return e.StatusCode == 401 && e.Code != ExpiredTokenCode
	}
	return false
}

// GeoloqiError implements the GeoloqiError interface.
func (e *APIError) GeoloqiError() {}

// TransportError represents a failed HTTP exchange: the request could not
// be sent or no response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// GeoloqiError implements the GeoloqiError interface.
func (e *TransportError) GeoloqiError() {}

// ParseError is returned when a response body is not a JSON object.
type ParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response (status %d): %v", e.StatusCode, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// GeoloqiError implements the GeoloqiError interface.
func (e *ParseError) GeoloqiError() {}
