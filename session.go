package geoloqi

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/geoloqi/geoloqi-go/credentials"
	"github.com/geoloqi/geoloqi-go/internal/api"
)

const (
	// tokenPath is the OAuth2 token endpoint, relative to the base URL.
	tokenPath = "oauth/token"

	// authScheme prefixes the access token in the Authorization header.
	authScheme = "OAuth"

	// maxRenewals bounds expired-token renewals per logical call.
	maxRenewals = 1
)

// OAuth2 grant types sent to the token endpoint.
const (
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// TokenState describes where a session is in its token lifecycle.
type TokenState int

const (
	// NoToken means no access token has been established yet.
	NoToken TokenState = iota
	// TokenEstablishing means a token endpoint call is in flight.
	TokenEstablishing
	// TokenValid means the session holds a token the API has not rejected.
	TokenValid
	// TokenExpired means the API reported the current token as expired.
	TokenExpired
)

func (s TokenState) String() string {
	switch s {
	case NoToken:
		return "no_token"
	case TokenEstablishing:
		return "establishing"
	case TokenValid:
		return "valid"
	case TokenExpired:
		return "expired"
	default:
		return fmt.Sprintf("TokenState(%d)", int(s))
	}
}

// AuthState is the outcome of the last successful token establishment.
type AuthState struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// Expiry is zero when the server did not send expires_in.
	Expiry time.Time
	// Raw is the full token endpoint response.
	Raw Response
}

func newAuthState(resp Response, now time.Time) AuthState {
	auth := AuthState{Raw: resp}
	auth.AccessToken, _ = resp["access_token"].(string)
	auth.RefreshToken, _ = resp["refresh_token"].(string)
	auth.TokenType, _ = resp["token_type"].(string)
	if secs := expiresIn(resp["expires_in"]); secs > 0 {
		auth.Expiry = now.Add(time.Duration(secs * float64(time.Second)))
	}
	return auth
}

// expiresIn reads a lifetime in seconds sent as a number or numeric string.
func expiresIn(v any) float64 {
	switch v := v.(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// OAuth2Token converts the state to an oauth2.Token.
func (a AuthState) OAuth2Token() *oauth2.Token {
	tokenType := a.TokenType
	if tokenType == "" {
		tokenType = authScheme
	}
	token := &oauth2.Token{
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		TokenType:    tokenType,
		Expiry:       a.Expiry,
	}
	if a.Raw != nil {
		token = token.WithExtra(map[string]any(a.Raw))
	}
	return token
}

// Session owns the access token and executes requests against the API,
// renewing the token once per call when the API reports it expired.
//
// A Session is safe for concurrent use. Concurrent callers that hit the
// same expired token share a single renewal.
type Session struct {
	apiClient *api.Client
	creds     credentials.Credentials
	userAgent string
	strict    bool
	timeout   time.Duration
	logger    *zap.Logger
	// userToken is set when the session started from a user access token.
	// Such sessions never fall back to the client-credentials grant.
	userToken bool

	mu          sync.RWMutex
	accessToken string
	auth        *AuthState
	state       TokenState

	flight singleflight.Group
}

// NewSession creates a session from already-resolved credentials. Without an
// access token it immediately establishes one through the
// client-credentials grant.
func NewSession(ctx context.Context, creds credentials.Credentials, opts ...Option) (*Session, error) {
	return newSession(ctx, creds, newClientConfig(opts))
}

func newSession(ctx context.Context, creds credentials.Credentials, cfg *clientConfig) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	apiClient, err := buildAPIClient(cfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		apiClient:   apiClient,
		creds:       creds,
		userAgent:   cfg.userAgent,
		strict:      cfg.strict,
		timeout:     cfg.timeout,
		logger:      cfg.logger.Named("session"),
		userToken:   creds.HasAccessToken(),
		accessToken: creds.AccessToken,
		state:       NoToken,
	}
	s.logger.Debug("session created",
		zap.String("base_url", apiClient.BaseURL()),
		zap.Bool("user_token", s.userToken),
	)
	if s.userToken {
		s.state = TokenValid
		return s, nil
	}

	if _, err := s.AccessToken(ctx); err != nil {
		return nil, fmt.Errorf("establish access token: %w", err)
	}
	return s, nil
}

// State returns the current token lifecycle state.
func (s *Session) State() TokenState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AuthState returns a copy of the last token endpoint result, or nil when
// the session was created from a user access token.
func (s *Session) AuthState() *AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth == nil {
		return nil
	}
	auth := *s.auth
	auth.Raw = maps.Clone(s.auth.Raw)
	return &auth
}

func (s *Session) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// AccessToken returns the current access token, establishing one through
// the client-credentials grant first if none is held.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	if token := s.currentToken(); token != "" {
		return token, nil
	}

	err := s.shared(ctx, "establish", func(ctx context.Context) error {
		if s.currentToken() != "" {
			return nil
		}
		return s.Establish(ctx, map[string]any{"grant_type": GrantClientCredentials})
	})
	if err != nil {
		return "", err
	}
	return s.currentToken(), nil
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// that keeps ctx's values but not its cancellation, bounded by the session
// timeout, so one caller giving up does not fail the others. Each caller
// still stops waiting when its own ctx is done.
func (s *Session) shared(ctx context.Context, key string, fn func(context.Context) error) error {
	ch := s.flight.DoChan(key, func() (any, error) {
		work := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			work, cancel = context.WithTimeout(work, s.timeout)
			defer cancel()
		}
		return nil, fn(work)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	token, err := s.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auth != nil && s.auth.AccessToken == token {
		return s.auth.OAuth2Token(), nil
	}
	return &oauth2.Token{AccessToken: token, TokenType: authScheme}, nil
}

// Establish calls the token endpoint with data plus the application's
// client_id and client_secret. On success the response becomes the
// session's AuthState and its access_token the current token.
//
// A response without an access_token is returned as an *APIError.
func (s *Session) Establish(ctx context.Context, data map[string]any) error {
	body := make(map[string]any, len(data)+2)
	maps.Copy(body, data)
	body["client_id"] = s.creds.APIKey
	body["client_secret"] = s.creds.APISecret

	prev := s.setState(TokenEstablishing)
	s.logger.Debug("establishing access token", zap.Any("grant_type", body["grant_type"]))

	headers := map[string]string{"Content-Type": "application/json"}
	resp, status, err := s.send(ctx, tokenPath, body, headers, "")
	if err != nil {
		s.setState(prev)
		return err
	}

	auth := newAuthState(resp, time.Now())
	if auth.AccessToken == "" {
		s.setState(prev)
		apiErr := newAPIError(status, resp, false)
		if apiErr.Code == "" {
			apiErr.Code = "missing_access_token"
		}
		return apiErr
	}

	s.mu.Lock()
	s.auth = &auth
	s.accessToken = auth.AccessToken
	s.state = TokenValid
	s.mu.Unlock()

	s.logger.Debug("access token established",
		zap.Bool("refreshable", auth.RefreshToken != ""),
		zap.Time("expiry", auth.Expiry),
	)
	return nil
}

func (s *Session) setState(state TokenState) TokenState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = state
	return prev
}

// RenewAccessToken obtains a new access token with the stored refresh
// token. A session that never received a refresh token falls back to the
// client-credentials grant, unless it was created from a user access
// token, in which case ErrNoRefreshToken is returned without contacting
// the API.
func (s *Session) RenewAccessToken(ctx context.Context) error {
	s.mu.RLock()
	var refresh string
	if s.auth != nil {
		refresh = s.auth.RefreshToken
	}
	s.mu.RUnlock()

	switch {
	case refresh != "":
		return s.Establish(ctx, map[string]any{
			"grant_type":    GrantRefreshToken,
			"refresh_token": refresh,
		})
	case !s.userToken && s.creds.HasAppCredentials():
		s.logger.Debug("no refresh token, requesting a new client-credentials token")
		return s.Establish(ctx, map[string]any{"grant_type": GrantClientCredentials})
	default:
		return ErrNoRefreshToken
	}
}

// renewExpired renews the token unless another caller already replaced
// stale. Concurrent renewals of the same token collapse into one.
func (s *Session) renewExpired(ctx context.Context, stale string) error {
	return s.shared(ctx, "renew:"+stale, func(ctx context.Context) error {
		s.mu.Lock()
		if s.accessToken != stale {
			s.mu.Unlock()
			return nil
		}
		s.state = TokenExpired
		s.mu.Unlock()

		return s.RenewAccessToken(ctx)
	})
}

// Get issues a GET request. Non-empty args are URL-encoded and appended to
// path as a query string.
func (s *Session) Get(ctx context.Context, path string, args url.Values, headers map[string]string) (Response, error) {
	if len(args) > 0 {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + args.Encode()
	}
	return s.Run(ctx, path, nil, headers)
}

// Post issues a POST request with data as its JSON body. Content-Type is
// always application/json, replacing any caller-supplied value. A nil
// data sends an empty JSON object.
func (s *Session) Post(ctx context.Context, path string, data any, headers map[string]string) (Response, error) {
	if data == nil {
		data = map[string]any{}
	}
	h := canonicalHeaders(headers)
	h["Content-Type"] = "application/json"
	return s.Run(ctx, path, data, h)
}

// Run sends an authenticated request and decodes the JSON response.
//
// When the API answers {"error": "expired_token"} the token is renewed and
// the request is sent once more with the original data and headers. Any
// other error payload is returned as the Response; with WithStrictErrors
// it is returned as an *APIError instead. A second expired_token after a
// renewal is handled the same way and matches ErrRetryExhausted.
func (s *Session) Run(ctx context.Context, path string, data any, headers map[string]string) (Response, error) {
	renewals := 0
	for {
		token := s.currentToken()
		resp, status, err := s.send(ctx, path, data, headers, token)
		if err != nil {
			return nil, err
		}
		if !resp.HasError() {
			return resp, nil
		}

		code := resp.ErrorCode()
		if code == ExpiredTokenCode && renewals < maxRenewals {
			renewals++
			s.logger.Info("access token expired, renewing", zap.String("path", path))
			if err := s.renewExpired(ctx, token); err != nil {
				return nil, fmt.Errorf("renew access token: %w", err)
			}
			continue
		}

		if code == ExpiredTokenCode {
			s.mu.Lock()
			if s.accessToken == token {
				s.state = TokenExpired
			}
			s.mu.Unlock()
			s.logger.Warn("access token still expired after renewal, returning response unrenewed",
				zap.String("path", path),
				zap.Int("renewals", renewals),
			)
		} else {
			s.logger.Debug("API returned an error",
				zap.String("path", path),
				zap.Int("status", status),
				zap.Any("error", resp["error"]),
			)
		}

		if s.strict {
			return nil, newAPIError(status, resp, renewals > 0)
		}
		return resp, nil
	}
}

// Execute performs the raw exchange for path. It adds no Authorization or
// User-Agent header, does not decode the body and never renews the token.
func (s *Session) Execute(ctx context.Context, path string, data any, headers map[string]string) (*api.Response, error) {
	return s.apiClient.Execute(ctx, path, data, headers)
}

// send performs one authenticated exchange and decodes the result.
func (s *Session) send(ctx context.Context, path string, data any, headers map[string]string, token string) (Response, int, error) {
	h := canonicalHeaders(headers)
	h["User-Agent"] = s.userAgent
	if token != "" {
		h["Authorization"] = authScheme + " " + token
	}

	raw, err := s.Execute(ctx, path, data, h)
	if err != nil {
		return nil, 0, err
	}

	resp, err := decodeResponse(raw)
	if err != nil {
		return nil, raw.StatusCode, err
	}
	return resp, raw.StatusCode, nil
}

// canonicalHeaders copies headers with canonical keys so later writes of
// the same header replace earlier ones regardless of case.
func canonicalHeaders(headers map[string]string) map[string]string {
	h := make(map[string]string, len(headers)+3)
	for k, v := range headers {
		h[http.CanonicalHeaderKey(k)] = v
	}
	return h
}
