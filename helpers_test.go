package geoloqi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geoloqi/geoloqi-go/credentials"
)

// recordedRequest is a request seen by fakeAPI, with the "/1/" prefix
// stripped from Path.
type recordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

func (r recordedRequest) JSON(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(r.Body, &m))
	return m
}

// fakeAPI is an httptest server standing in for api.geoloqi.com/1/.
type fakeAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

// apiHandler returns the status code and body for a request.
type apiHandler func(req recordedRequest) (int, string)

func newFakeAPI(t *testing.T, handler apiHandler) *fakeAPI {
	t.Helper()

	f := &fakeAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := recordedRequest{
			Method:   r.Method,
			Path:     strings.TrimPrefix(r.URL.Path, "/1/"),
			RawQuery: r.URL.RawQuery,
			Header:   r.Header.Clone(),
			Body:     body,
		}

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()

		status, resp := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeAPI) URL() string {
	return f.server.URL + "/1/"
}

func (f *fakeAPI) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeAPI) RequestsTo(path string) []recordedRequest {
	var out []recordedRequest
	for _, r := range f.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// tokenServer hands out sequential tokens: the first grant returns T1/R1,
// the next T2/R2, and so on.
type tokenServer struct {
	mu    sync.Mutex
	count int
	// omitRefresh drops refresh_token from responses.
	omitRefresh bool
}

func (s *tokenServer) issue() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	n := strconv.Itoa(s.count)
	if s.omitRefresh {
		return 200, `{"access_token":"T` + n + `"}`
	}
	return 200, `{"access_token":"T` + n + `","refresh_token":"R` + n + `","expires_in":3600}`
}

// Issued returns how many tokens have been handed out.
func (s *tokenServer) Issued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func testOptions(f *fakeAPI, opts ...Option) []Option {
	return append([]Option{
		WithBaseURL(f.URL()),
		WithCredentialSource(credentials.None),
	}, opts...)
}

func newTestSession(t *testing.T, f *fakeAPI, creds credentials.Credentials, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(context.Background(), creds, testOptions(f, opts...)...)
	require.NoError(t, err)
	return s
}

var appCreds = credentials.Credentials{APIKey: "app-key", APISecret: "app-secret"}
