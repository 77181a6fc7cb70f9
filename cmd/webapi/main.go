// Package main provides a CLI and HTTP proxy for the Web API client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/slack-webapi-client/pkg/client"
	"github.com/Sternrassler/slack-webapi-client/pkg/form"
	"github.com/Sternrassler/slack-webapi-client/pkg/logging"
	"github.com/Sternrassler/slack-webapi-client/pkg/pagination"
	"github.com/Sternrassler/slack-webapi-client/pkg/result"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	apiURL            string
	token             string
	redisURL          string
	logLevel          string
	prettyLogs        bool
	timeout           time.Duration
	concurrency       int
	retryPolicy       string
	rejectRateLimited bool

	// Output target, replaced in tests.
	stdout io.Writer = os.Stdout
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "webapi",
	Short: "Web API client CLI",
	Long: `A command-line client and HTTP proxy for the Web API.

Environment variables:
  WEBAPI_TOKEN    - bearer token sent with every call
  WEBAPI_BASE_URL - API base URL (default: https://slack.com/api/)
  REDIS_URL       - Redis address for the shared rate limit pause (optional)
  LOG_LEVEL       - debug, info, warn or error (default: info)
  PORT            - listen port for serve (default: 8080)`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := logging.ConfigFromEnv()
		if logLevel != "" {
			cfg.Level = logging.LogLevel(logLevel)
		}
		if prettyLogs {
			cfg.Pretty = true
		}
		logging.Setup(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "", "API base URL (or WEBAPI_BASE_URL env)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (or WEBAPI_TOKEN env)")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Redis address for shared rate limit pauses (or REDIS_URL env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (or LOG_LEVEL env)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", false, "Human-readable log output")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Per-exchange HTTP timeout")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 3, "Maximum concurrent HTTP exchanges")
	rootCmd.PersistentFlags().StringVar(&retryPolicy, "retry-policy", "default", "Retry policy: default, five, rapid or none")
	rootCmd.PersistentFlags().BoolVar(&rejectRateLimited, "reject-rate-limited", false, "Fail rate limited calls instead of waiting")

	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(serveCmd)
}

// getBaseURL returns the API base URL from flags or environment
func getBaseURL() string {
	if apiURL != "" {
		return apiURL
	}
	if url := os.Getenv("WEBAPI_BASE_URL"); url != "" {
		return url
	}
	return client.DefaultBaseURL
}

// getToken returns the token from flags or environment
func getToken() string {
	if token != "" {
		return token
	}
	return os.Getenv("WEBAPI_TOKEN")
}

// getRedisURL returns the Redis address from flags or environment
func getRedisURL() string {
	if redisURL != "" {
		return redisURL
	}
	return os.Getenv("REDIS_URL")
}

// parseRetryPolicy maps a policy name to a preset.
func parseRetryPolicy(name string) (client.RetryPolicy, error) {
	switch strings.ToLower(name) {
	case "", "default", "ten":
		return client.TenRetriesInAboutThirtyMinutes, nil
	case "five":
		return client.FiveRetriesInFiveMinutes, nil
	case "rapid":
		return client.RapidRetryPolicy, nil
	case "none":
		return client.NoRetryPolicy, nil
	default:
		return client.RetryPolicy{}, fmt.Errorf("unknown retry policy %q", name)
	}
}

// newClient creates a client from flags and environment
func newClient() (*client.Client, error) {
	policy, err := parseRetryPolicy(retryPolicy)
	if err != nil {
		return nil, err
	}

	cfg := client.DefaultConfig(getToken())
	cfg.BaseURL = getBaseURL()
	cfg.Timeout = timeout
	cfg.MaxRequestConcurrency = concurrency
	cfg.RetryPolicy = policy
	cfg.RejectRateLimitedCalls = rejectRateLimited

	if addr := getRedisURL(); addr != "" {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			opts = &redis.Options{Addr: addr}
		}
		cfg.Redis = redis.NewClient(opts)
	}

	return client.New(cfg)
}

// outputJSON prints the value as JSON
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseArgs turns key=value arguments into call options. A value starting
// with @ names a file to upload.
func parseArgs(args []string) (client.Options, error) {
	opts := client.Options{}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile && path != "" {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", path, err)
			}
			opts[key] = f
			continue
		}
		opts[key] = value
	}
	return opts, nil
}

// closeFiles closes any file values in opts.
func closeFiles(opts client.Options) {
	for _, v := range opts {
		switch f := v.(type) {
		case form.File:
			if closer, ok := f.Reader.(io.Closer); ok {
				closer.Close()
			}
		case io.Closer:
			f.Close()
		}
	}
}

// Call command
var callCmd = &cobra.Command{
	Use:   "call <method> [key=value ...]",
	Short: "Call a Web API method",
	Long: `Calls a Web API method and prints the result as JSON.

Example:
  webapi call chat.postMessage channel=C123 text=hello
  webapi call files.upload channels=C123 file=@report.csv
  webapi call conversations.list limit=100 --paginate`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paginate, _ := cmd.Flags().GetBool("paginate")
		maxPages, _ := cmd.Flags().GetInt("max-pages")

		opts, err := parseArgs(args[1:])
		if err != nil {
			return err
		}
		defer closeFiles(opts)

		c, err := newClient()
		if err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		defer c.Close()

		ctx, cancel := signalContext()
		defer cancel()

		if paginate {
			pages, err := fetchPages(ctx, c, args[0], opts, maxPages)
			if err != nil {
				return err
			}
			return outputJSON(pages)
		}

		res, err := c.APICall(ctx, args[0], opts)
		if err != nil {
			var platErr *client.PlatformError
			if errors.As(err, &platErr) {
				outputJSON(platErr.Data)
			}
			return err
		}
		return outputJSON(res)
	},
}

func init() {
	callCmd.Flags().Bool("paginate", false, "Follow next_cursor and print every page")
	callCmd.Flags().Int("max-pages", 0, "Stop after this many pages (0 = no limit)")
}

// fetchPages collects pages of method, up to maxPages when positive.
func fetchPages(ctx context.Context, c *client.Client, method string, opts client.Options, maxPages int) ([]result.Result, error) {
	it, err := c.Paginate(method, opts)
	if err != nil {
		return nil, err
	}

	count := 0
	return pagination.Reduce(ctx, it,
		func(result.Result) bool {
			count++
			return maxPages > 0 && count >= maxPages
		},
		func(acc []result.Result, page result.Result, _ int) []result.Result {
			return append(acc, page)
		})
}
