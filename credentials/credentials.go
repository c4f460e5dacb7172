// Package credentials resolves the application key/secret pair and user
// access token used to authenticate against the Geoloqi API.
//
// Values come from explicit arguments first and then from a [Source]. The
// default source reads the GEOLOQI_* environment variables, then the INI
// files ~/.geoloqi and /etc/geoloqi/geoloqi.cfg:
//
//	[Credentials]
//	user_access_token = <your_user_access_token>
//	application_access_key = <client_api_key>
//	application_secret_key = <client_api_secret>
package credentials

import (
	"fmt"

	"github.com/geoloqi/geoloqi-go/internal/apierrors"
)

// Credentials holds the values a session authenticates with.
type Credentials struct {
	APIKey      string
	APISecret   string
	AccessToken string
}

// HasAccessToken reports whether a user access token is set.
func (c Credentials) HasAccessToken() bool {
	return c.AccessToken != ""
}

// HasAppCredentials reports whether both the application key and secret
// are set.
func (c Credentials) HasAppCredentials() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// Validate returns ErrMissingCredentials unless a user access token or a
// complete application key/secret pair is present.
func (c Credentials) Validate() error {
	if c.HasAccessToken() || c.HasAppCredentials() {
		return nil
	}
	return apierrors.ErrMissingCredentials
}

// Merge returns c with every empty field taken from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.APIKey == "" {
		c.APIKey = fallback.APIKey
	}
	if c.APISecret == "" {
		c.APISecret = fallback.APISecret
	}
	if c.AccessToken == "" {
		c.AccessToken = fallback.AccessToken
	}
	return c
}

// String redacts the secret values.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{APIKey: %q, APISecret: %s, AccessToken: %s}",
		c.APIKey, redact(c.APISecret), redact(c.AccessToken))
}

func redact(s string) string {
	if s == "" {
		return `""`
	}
	return "[redacted]"
}

// Resolve fills the empty fields of explicit from src and validates the
// result. A nil src skips the lookup.
func Resolve(explicit Credentials, src Source) (Credentials, error) {
	creds := explicit
	if src != nil {
		found, err := src.Credentials()
		if err != nil {
			return Credentials{}, fmt.Errorf("resolve credentials: %w", err)
		}
		creds = creds.Merge(found)
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}
