package geoloqi

import (
	"fmt"

	"github.com/geoloqi/geoloqi-go/internal/apierrors"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingCredentials is returned by New and NewSession when neither a
	// user access token nor an application key/secret pair was resolved.
	ErrMissingCredentials = apierrors.ErrMissingCredentials

	// ErrNoRefreshToken is returned when a session created from a user
	// access token has to renew it. Such tokens cannot be renewed.
	ErrNoRefreshToken = apierrors.ErrNoRefreshToken

	// ErrTokenExpired matches an *APIError with the expired_token code.
	ErrTokenExpired = apierrors.ErrTokenExpired

	// ErrRetryExhausted matches an *APIError with the expired_token code
	// that was received again after the session renewed its token.
	ErrRetryExhausted = apierrors.ErrRetryExhausted

	// ErrUnauthorized matches a 401 *APIError other than expired_token.
	ErrUnauthorized = apierrors.ErrUnauthorized
)

// ExpiredTokenCode is the error code that triggers a token renewal.
const ExpiredTokenCode = apierrors.ExpiredTokenCode

// GeoloqiError is implemented by APIError, TransportError and ParseError.
type GeoloqiError = apierrors.GeoloqiError

// APIError is an {"error": ...} payload returned by the API. It is only
// returned as an error by token establishment and in strict mode.
type APIError = apierrors.APIError

// TransportError reports an HTTP exchange that could not be completed.
type TransportError = apierrors.TransportError

// ParseError reports a response body that is not a JSON object.
type ParseError = apierrors.ParseError

// newAPIError builds an *APIError from an error payload.
func newAPIError(statusCode int, resp Response, retried bool) *APIError {
	code := resp.ErrorCode()
	if code == "" && resp.HasError() {
		code = fmt.Sprint(resp["error"])
	}
	return &APIError{
		StatusCode:  statusCode,
		Code:        code,
		Description: resp.ErrorDescription(),
		Retried:     retried,
		Response:    resp,
	}
}
