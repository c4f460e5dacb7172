package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/ini.v1"
)

// EnvPrefix is the prefix of the environment variables read by Env.
const EnvPrefix = "GEOLOQI"

// Config file locations searched by Default, in order of precedence.
const (
	UserConfigFile   = "~/.geoloqi"
	SystemConfigFile = "/etc/geoloqi/geoloqi.cfg"
)

// INI section and keys of a credentials file.
const (
	fileSection        = "Credentials"
	fileKeyAccessToken = "user_access_token"
	fileKeyAPIKey      = "application_access_key"
	fileKeyAPISecret   = "application_secret_key"
)

// Source supplies credentials. Missing values are left empty; an error is
// returned only when the source exists but cannot be read.
type Source interface {
	Credentials() (Credentials, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() (Credentials, error)

// Credentials implements Source.
func (f SourceFunc) Credentials() (Credentials, error) {
	return f()
}

// Static is a fixed set of credentials.
type Static Credentials

// Credentials implements Source.
func (s Static) Credentials() (Credentials, error) {
	return Credentials(s), nil
}

// None is a source that never supplies anything.
var None Source = Static{}

// Chain consults each source in order and keeps the first non-empty value
// found for every field.
type Chain []Source

// Credentials implements Source.
func (c Chain) Credentials() (Credentials, error) {
	var creds Credentials
	for _, src := range c {
		found, err := src.Credentials()
		if err != nil {
			return Credentials{}, err
		}
		creds = creds.Merge(found)
	}
	return creds, nil
}

// Default returns the source used when none is configured: environment,
// then the user file, then the system file.
func Default() Source {
	return Chain{
		Env(),
		File(UserConfigFile),
		File(SystemConfigFile),
	}
}

type envSpec struct {
	APIKey      string `envconfig:"API_KEY"`
	APISecret   string `envconfig:"API_SECRET"`
	AccessToken string `envconfig:"ACCESS_TOKEN"`
}

// Env reads GEOLOQI_API_KEY, GEOLOQI_API_SECRET and GEOLOQI_ACCESS_TOKEN.
func Env() Source {
	return SourceFunc(func() (Credentials, error) {
		var spec envSpec
		if err := envconfig.Process(EnvPrefix, &spec); err != nil {
			return Credentials{}, fmt.Errorf("read environment: %w", err)
		}
		return Credentials(spec), nil
	})
}

// File reads the [Credentials] section of an INI file. A leading "~/" is
// expanded to the user's home directory. A missing file yields nothing.
func File(path string) Source {
	return SourceFunc(func() (Credentials, error) {
		resolved, err := expandHome(path)
		if err != nil {
			// No home directory means no user file.
			return Credentials{}, nil
		}
		cfg, err := ini.LooseLoad(resolved)
		if err != nil {
			return Credentials{}, fmt.Errorf("read %s: %w", resolved, err)
		}
		sec := cfg.Section(fileSection)
		return Credentials{
			APIKey:      sec.Key(fileKeyAPIKey).String(),
			APISecret:   sec.Key(fileKeyAPISecret).String(),
			AccessToken: sec.Key(fileKeyAccessToken).String(),
		}, nil
	})
}

// DotEnv reads GEOLOQI_* keys from a .env file without touching the process
// environment. A missing file yields nothing.
func DotEnv(path string) Source {
	return SourceFunc(func() (Credentials, error) {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Credentials{}, nil
			}
			return Credentials{}, fmt.Errorf("read %s: %w", path, err)
		}
		return Credentials{
			APIKey:      values[EnvPrefix+"_API_KEY"],
			APISecret:   values[EnvPrefix+"_API_SECRET"],
			AccessToken: values[EnvPrefix+"_ACCESS_TOKEN"],
		}, nil
	})
}

func expandHome(path string) (string, error) {
	if len(path) < 2 || path[:2] != "~/" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[2:]), nil
}
