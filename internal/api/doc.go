// Package api provides the raw HTTP transport for the Geoloqi API. It builds
// request URLs, JSON-encodes request bodies and returns undecoded
// responses. Authentication and token renewal live one layer up, in the
// session.
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration for explicit, type-safe setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// Both default to [DefaultBaseURL] and a [DefaultTimeout] per exchange.
//
// # Results
//
// [Client.Execute] returns a [Response] for every completed exchange,
// whatever its status code, so callers inspect one result type. Only a
// failure to complete the exchange (DNS, connection reset, timeout,
// cancelled context) is reported as an error, always of type
// *apierrors.TransportError.
//
// # Retry Behavior
//
// Transient retries are disabled by default. When enabled with
// [WithRetries], requests are retried through go-retryablehttp for these
// HTTP status codes:
//
//   - 408 Request Timeout
//   - 429 Too Many Requests
//   - 500 Internal Server Error
//   - 502 Bad Gateway
//   - 503 Service Unavailable
//   - 504 Gateway Timeout
//
// The retry delay doubles with each attempt (1s, 2s, 4s, ...) unless the
// server sends Retry-After. Configure it with [WithRetryDelay] and
// [WithRetryOn].
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use once configured.
package api
