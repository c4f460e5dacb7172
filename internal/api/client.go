package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/geoloqi/geoloqi-go/internal/apierrors"
)

// Default configuration values.
const (
	DefaultBaseURL    = "https://api.geoloqi.com/1/"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 0
	DefaultRetryDelay = time.Second
)

// DefaultRetryOn lists the status codes retried when transient retries are
// enabled.
var DefaultRetryOn = []int{408, 429, 500, 502, 503, 504}

// Config holds the transport configuration.
type Config struct {
	// BaseURL is prepended to every request path. Defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient is the underlying client. When nil a client with Timeout is
	// created.
	HTTPClient *http.Client
	// Timeout bounds a single HTTP exchange. Ignored when HTTPClient is set.
	Timeout time.Duration
	// MaxRetries is the number of transient-failure retries. Zero sends every
	// request exactly once.
	MaxRetries int
	// RetryDelay is the first backoff delay.
	RetryDelay time.Duration
	// RetryOn lists the status codes that trigger a transient retry.
	RetryOn []int
	// Logger receives retry diagnostics. Nil disables them.
	Logger *zap.Logger
}

// Client performs raw, unauthenticated exchanges with the API.
type Client struct {
	baseURL    string
	retry      *retryablehttp.Client
	maxRetries int
	policy     *retryPolicy
}

// Response is the raw result of an HTTP exchange. Non-2xx statuses are
// reported here rather than as errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Option configures the API client.
type Option func(*Config)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithRetries sets the number of transient retries.
func WithRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithRetryDelay sets the initial backoff delay.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.RetryDelay = delay
	}
}

// WithRetryOn sets the status codes that trigger a transient retry.
func WithRetryOn(statusCodes []int) Option {
	return func(c *Config) {
		c.RetryOn = statusCodes
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// New creates a new API client using functional options.
func New(opts ...Option) (*Client, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewClient(cfg)
}

// NewClient creates a new API client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if len(cfg.RetryOn) == 0 {
		cfg.RetryOn = DefaultRetryOn
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/") + "/",
		maxRetries: cfg.MaxRetries,
		policy:     newRetryPolicy(cfg.RetryDelay, cfg.RetryOn),
	}
	c.retry = newRetryClient(c, cfg.Logger)
	c.retry.HTTPClient = httpClient

	return c, nil
}

func newRetryClient(c *Client, logger *zap.Logger) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = c.maxRetries
	rc.RetryWaitMin = c.policy.baseDelay
	rc.RetryWaitMax = c.policy.maxDelay
	rc.CheckRetry = c.policy.checkRetry
	rc.Backoff = c.policy.backoff
	// Hand the final response back untouched so callers can inspect
	// non-2xx bodies.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if logger != nil {
		rc.Logger = newLeveledLogger(logger)
	}
	return rc
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL returns the absolute URL for path. The path is appended verbatim so a
// pre-encoded query string survives.
func (c *Client) URL(path string) string {
	return c.baseURL + strings.TrimPrefix(path, "/")
}

// Execute sends data (JSON-encoded when non-nil) to path with exactly the
// given headers. Requests with a body are POSTed, all others use GET.
//
// Execute adds no headers of its own, does not decode the body and does
// not renew tokens. A response with any status code is returned as data;
// only failures to complete the exchange yield a *apierrors.TransportError.
func (c *Client) Execute(ctx context.Context, path string, data any, headers map[string]string) (*Response, error) {
	method := http.MethodGet
	var body []byte
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = encoded
		method = http.MethodPost
	}

	return c.Do(ctx, method, path, body, headers)
}

// Do sends a pre-encoded body with an explicit method.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*Response, error) {
	url := c.URL(path)

	var rawBody any
	if body != nil {
		rawBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, &apierrors.TransportError{Method: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apierrors.TransportError{Method: method, URL: url, Err: fmt.Errorf("read response body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
