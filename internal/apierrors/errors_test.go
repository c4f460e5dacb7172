package apierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "status code only",
			err:      &APIError{StatusCode: 500},
			expected: "API error 500",
		},
		{
			name:     "with code",
			err:      &APIError{StatusCode: 400, Code: "invalid_request"},
			expected: "API error 400: invalid_request",
		},
		{
			name:     "with code and description",
			err:      &APIError{StatusCode: 401, Code: "invalid_client", Description: "bad secret"},
			expected: "API error 401: invalid_client: bad secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		target   error
		expected bool
	}{
		{
			name:     "expired_token matches ErrTokenExpired",
			err:      &APIError{StatusCode: 401, Code: ExpiredTokenCode},
			target:   ErrTokenExpired,
			expected: true,
		},
		{
			name:     "first expired_token does not match ErrRetryExhausted",
			err:      &APIError{StatusCode: 401, Code: ExpiredTokenCode},
			target:   ErrRetryExhausted,
			expected: false,
		},
		{
			name:     "retried expired_token matches ErrRetryExhausted",
			err:      &APIError{StatusCode: 401, Code: ExpiredTokenCode, Retried: true},
			target:   ErrRetryExhausted,
			expected: true,
		},
		{
			name:     "expired_token does not match ErrUnauthorized",
			err:      &APIError{StatusCode: 401, Code: ExpiredTokenCode},
			target:   ErrUnauthorized,
			expected: false,
		},
		{
			name:     "401 invalid_client matches ErrUnauthorized",
			err:      &APIError{StatusCode: 401, Code: "invalid_client"},
			target:   ErrUnauthorized,
			expected: true,
		},
		{
			name:     "other code does not match ErrTokenExpired",
			err:      &APIError{StatusCode: 400, Code: "not_found"},
			target:   ErrTokenExpired,
			expected: false,
		},
		{
			name:     "unrelated sentinel",
			err:      &APIError{StatusCode: 400, Code: "not_found"},
			target:   ErrMissingCredentials,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("errors.Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAPIError_WrappedIs(t *testing.T) {
	err := fmt.Errorf("run: %w", &APIError{StatusCode: 401, Code: ExpiredTokenCode, Retried: true})

	if !errors.Is(err, ErrTokenExpired) {
		t.Error("wrapped error should match ErrTokenExpired")
	}
	if !errors.Is(err, ErrRetryExhausted) {
		t.Error("wrapped error should match ErrRetryExhausted")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("errors.As failed")
	}
	if apiErr.Code != ExpiredTokenCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, ExpiredTokenCode)
	}
}

func TestTransportError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportError{Method: "GET", URL: "https://api.geoloqi.com/1/layer/list", Err: inner}

	want := "transport error: GET https://api.geoloqi.com/1/layer/list: connection refused"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, inner) {
		t.Error("TransportError should unwrap to the underlying error")
	}
}

func TestParseError(t *testing.T) {
	inner := errors.New("invalid character '<'")
	err := &ParseError{StatusCode: 502, Body: []byte("<html>"), Err: inner}

	want := "parse response (status 502): invalid character '<'"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if errors.Unwrap(err) != inner {
		t.Error("Unwrap() should return the underlying error")
	}
}
