// Command geoloqi makes raw calls to the Geoloqi API from the command line
// and prints the JSON response.
//
//	geoloqi get layer/list -p count=10
//	geoloqi post link/create -d '{"minutes": 5}'
//	echo '{"token": "abc"}' | geoloqi post link/expire -d @-
//	geoloqi token
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/geoloqi/geoloqi-go"
	"github.com/geoloqi/geoloqi-go/credentials"
)

// Config holds the process streams the command talks to.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config bound to the process streams.
func DefaultConfig() Config {
	return Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

type globalFlags struct {
	apiKey      string
	apiSecret   string
	accessToken string
	baseURL     string
	envFile     string
	noConfig    bool
	timeout     time.Duration
	retries     int
	strict      bool
	verbose     bool
}

func run(args []string, cfg Config) error {
	cmd := newRootCmd(cfg)
	cmd.SetArgs(args[1:])
	return cmd.ExecuteContext(context.Background())
}

func newRootCmd(cfg Config) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "geoloqi",
		Short:         "Call the Geoloqi API",
		Version:       geoloqi.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(cfg.Stdin)
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.apiKey, "api-key", "", "application key")
	pf.StringVar(&flags.apiSecret, "api-secret", "", "application secret")
	pf.StringVar(&flags.accessToken, "access-token", "", "user access token (takes precedence over the application key)")
	pf.StringVar(&flags.baseURL, "base-url", geoloqi.DefaultBaseURL, "API base URL")
	pf.StringVar(&flags.envFile, "env-file", ".env", "fall back to GEOLOQI_* credentials in this file")
	pf.BoolVar(&flags.noConfig, "no-config", false, "do not read credentials from the environment or config files")
	pf.DurationVar(&flags.timeout, "timeout", geoloqi.DefaultTimeout, "per-request timeout")
	pf.IntVar(&flags.retries, "retries", 0, "retries for transient transport failures")
	pf.BoolVar(&flags.strict, "strict", false, "exit with an error when the API returns an error payload")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log requests and token renewals to stderr")

	root.AddCommand(
		newGetCmd(flags),
		newPostCmd(flags),
		newRunCmd(flags),
		newTokenCmd(flags),
	)
	return root
}

func newGetCmd(flags *globalFlags) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Make a GET request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseParams(params)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}
			resp, err := client.Get(cmd.Context(), args[0], values, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter as key=value (repeatable)")
	return cmd
}

func newPostCmd(flags *globalFlags) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "post PATH",
		Short: "Make a POST request with a JSON body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readData(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}
			resp, err := client.Post(cmd.Context(), args[0], body, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, or @- to read it from stdin")
	return cmd
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "run PATH",
		Short: "Make a request: POST when --data is given, GET otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readData(cmd.InOrStdin(), data)
			if err != nil {
				return err
			}
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}
			resp, err := client.Run(cmd.Context(), args[0], body, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON body, or @- to read it from stdin")
	return cmd
}

func newTokenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the access token requests are made with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, flags)
			if err != nil {
				return err
			}
			token, err := client.Session().Token()
			if err != nil {
				return err
			}
			out := map[string]any{
				"access_token": token.AccessToken,
				"token_type":   token.Type(),
			}
			if token.RefreshToken != "" {
				out["refresh_token"] = token.RefreshToken
			}
			if !token.Expiry.IsZero() {
				out["expiry"] = token.Expiry.Format(time.RFC3339)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newClient(cmd *cobra.Command, flags *globalFlags) (*geoloqi.Client, error) {
	logger := zap.NewNop()
	if flags.verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	var source credentials.Source
	if !flags.noConfig {
		source = credentials.Chain{
			credentials.Default(),
			credentials.DotEnv(flags.envFile),
		}
	}

	client, err := geoloqi.New(cmd.Context(),
		geoloqi.WithAPIKey(flags.apiKey),
		geoloqi.WithAPISecret(flags.apiSecret),
		geoloqi.WithAccessToken(flags.accessToken),
		geoloqi.WithCredentialSource(source),
		geoloqi.WithBaseURL(flags.baseURL),
		geoloqi.WithTimeout(flags.timeout),
		geoloqi.WithRetries(flags.retries),
		geoloqi.WithStrictErrors(flags.strict),
		geoloqi.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// parseParams turns key=value pairs into query values.
func parseParams(params []string) (url.Values, error) {
	values := url.Values{}
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: want key=value", p)
		}
		values.Add(key, value)
	}
	return values, nil
}

// readData decodes the --data flag. "@-" reads the body from stdin; an
// empty flag means no body.
func readData(stdin io.Reader, data string) (any, error) {
	if data == "" {
		return nil, nil
	}
	raw := []byte(data)
	if data == "@-" {
		var err error
		raw, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("parse --data: %w", err)
	}
	return body, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
