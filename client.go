package geoloqi

import (
	"context"
	"net/url"

	"github.com/geoloqi/geoloqi-go/credentials"
)

// Client is the entry point to the Geoloqi API. It resolves credentials
// once and owns a single Session that every call goes through.
type Client struct {
	creds   credentials.Credentials
	session *Session
}

// New creates a client. Credentials given through options win; any field
// left unset is looked up in the credential source (see
// WithCredentialSource). At least a user access token or an application
// key and secret must result, otherwise ErrMissingCredentials is returned.
//
// When only application credentials are available New obtains an access
// token before returning, bounded by ctx and the configured timeout.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig(opts)

	creds, err := credentials.Resolve(cfg.credentials, cfg.source)
	if err != nil {
		return nil, err
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	session, err := newSession(ctx, creds, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		creds:   creds,
		session: session,
	}, nil
}

// Session returns the session owned by the client.
func (c *Client) Session() *Session {
	return c.session
}

// Credentials returns the resolved credentials.
func (c *Client) Credentials() credentials.Credentials {
	return c.creds
}

// AccessToken returns the token requests are authorized with.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	return c.session.AccessToken(ctx)
}

// Get makes a GET request to path, e.g. "layer/list". See Session.Get.
func (c *Client) Get(ctx context.Context, path string, args url.Values, headers map[string]string) (Response, error) {
	return c.session.Get(ctx, path, args, headers)
}

// Post makes a POST request to path with data as JSON. See Session.Post.
func (c *Client) Post(ctx context.Context, path string, data any, headers map[string]string) (Response, error) {
	return c.session.Post(ctx, path, data, headers)
}

// Run makes a request to path, POSTing data when it is non-nil. See
// Session.Run.
func (c *Client) Run(ctx context.Context, path string, data any, headers map[string]string) (Response, error) {
	return c.session.Run(ctx, path, data, headers)
}
