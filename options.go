package geoloqi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/geoloqi/geoloqi-go/credentials"
	"github.com/geoloqi/geoloqi-go/internal/api"
)

const (
	// DefaultBaseURL is the root every API path is resolved against.
	DefaultBaseURL = api.DefaultBaseURL
	// DefaultTimeout bounds each HTTP request.
	DefaultTimeout = api.DefaultTimeout
)

// clientConfig holds configuration for the client and its session.
type clientConfig struct {
	credentials credentials.Credentials
	source      credentials.Source

	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	retryOn    []int

	userAgent string
	strict    bool
	logger    *zap.Logger
}

func newClientConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		source:    credentials.Default(),
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		userAgent: UserAgent(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return cfg
}

// Option configures the client.
type Option func(*clientConfig)

// WithAPIKey sets the application key.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.credentials.APIKey = key
	}
}

// WithAPISecret sets the application secret.
func WithAPISecret(secret string) Option {
	return func(c *clientConfig) {
		c.credentials.APISecret = secret
	}
}

// WithCredentials sets the application key and secret used for the
// client-credentials grant.
func WithCredentials(key, secret string) Option {
	return func(c *clientConfig) {
		c.credentials.APIKey = key
		c.credentials.APISecret = secret
	}
}

// WithAccessToken sets a user access token. When present it takes priority
// over application credentials: requests authenticate as the user.
func WithAccessToken(token string) Option {
	return func(c *clientConfig) {
		c.credentials.AccessToken = token
	}
}

// WithCredentialSource sets where missing credential fields are looked up.
// Default: credentials.Default(). Pass nil to disable the lookup.
func WithCredentialSource(src credentials.Source) Option {
	return func(c *clientConfig) {
		c.source = src
	}
}

// WithBaseURL sets the API base URL.
// Default: https://api.geoloqi.com/1/
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout. It also bounds the token
// establishment performed by New.
// Default: 30 seconds
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries enables retries of transient transport failures
// (connection errors and the WithRetryOn status codes). These are separate
// from the single expired-token renewal, which is always on.
// Default: 0
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithRetryDelay sets the initial backoff between transient retries.
// Default: 1 second
func WithRetryDelay(delay time.Duration) Option {
	return func(c *clientConfig) {
		c.retryDelay = delay
	}
}

// WithRetryOn sets the HTTP status codes that trigger a transient retry.
// Default: [408, 429, 500, 502, 503, 504]
func WithRetryOn(statusCodes []int) Option {
	return func(c *clientConfig) {
		c.retryOn = statusCodes
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithStrictErrors makes Get, Post and Run return an *APIError for any
// response carrying an "error" field instead of handing the payload back
// as data.
func WithStrictErrors(strict bool) Option {
	return func(c *clientConfig) {
		c.strict = strict
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(cfg *clientConfig) (*api.Client, error) {
	apiOpts := []api.Option{
		api.WithBaseURL(cfg.baseURL),
		api.WithLogger(cfg.logger),
	}
	if cfg.timeout > 0 {
		apiOpts = append(apiOpts, api.WithTimeout(cfg.timeout))
	}
	if cfg.retries > 0 {
		apiOpts = append(apiOpts, api.WithRetries(cfg.retries))
	}
	if cfg.retryDelay > 0 {
		apiOpts = append(apiOpts, api.WithRetryDelay(cfg.retryDelay))
	}
	if len(cfg.retryOn) > 0 {
		apiOpts = append(apiOpts, api.WithRetryOn(cfg.retryOn))
	}
	if cfg.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(cfg.httpClient))
	}

	return api.New(apiOpts...)
}
