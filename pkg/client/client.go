// Package client provides the Web API client: bounded concurrency, retries,
// rate limit handling, and typed errors around a single APICall entry point.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/slack-webapi-client/pkg/form"
	"github.com/Sternrassler/slack-webapi-client/pkg/logging"
	"github.com/Sternrassler/slack-webapi-client/pkg/methods"
	"github.com/Sternrassler/slack-webapi-client/pkg/queue"
	"github.com/Sternrassler/slack-webapi-client/pkg/ratelimit"
	"github.com/Sternrassler/slack-webapi-client/pkg/result"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for Web API client operations.
var (
	webapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapi_requests_total",
		Help: "Total HTTP exchanges by method and status",
	}, []string{"method", "status"})

	webapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webapi_request_duration_seconds",
		Help:    "APICall duration in seconds by method, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method"})

	webapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapi_errors_total",
		Help: "Total failed APICalls by error class",
	}, []string{"class"})

	webapiRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webapi_rate_limited_total",
		Help: "Total 429 responses by method",
	}, []string{"method"})
)

// DefaultBaseURL is the Web API root every method path is appended to.
const DefaultBaseURL = "https://slack.com/api/"

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "slack-webapi-client-go/1.0"

// PauseScope selects what waits out a 429 before the call is retried.
type PauseScope string

const (
	// PauseClient pauses the whole request queue, so no sibling call starts
	// while the limited call waits.
	PauseClient PauseScope = "client"

	// PauseCall only delays the limited call; siblings keep running.
	PauseCall PauseScope = "call"
)

// Client is the Web API client. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	queue   *queue.Queue
	limiter *rate.Limiter
	tracker *ratelimit.Tracker
	config  Config
	logger  zerolog.Logger

	// baseLogger has no component field; sub-components derive from it.
	baseLogger zerolog.Logger

	listenersMu sync.RWMutex
	listeners   []func(RateLimitedEvent)
}

// Config holds the client configuration. It is copied by New and not
// consulted again afterwards.
type Config struct {
	// BaseURL is prepended to every method path.
	BaseURL string

	// Token is sent as a bearer token unless a call supplies its own.
	Token string

	// TeamID is merged into every call as team_id unless the call sets one.
	TeamID string

	// Headers are added to every request.
	Headers map[string]string

	// UserAgent header value.
	UserAgent string

	// MaxRequestConcurrency bounds HTTP exchanges in flight.
	MaxRequestConcurrency int

	// RetryPolicy governs retries of failed exchanges. The zero value
	// selects TenRetriesInAboutThirtyMinutes; use NoRetryPolicy for a
	// single attempt.
	RetryPolicy RetryPolicy

	// RejectRateLimitedCalls fails 429 responses immediately with a
	// RateLimitedError instead of waiting and retrying.
	RejectRateLimitedCalls bool

	// RateLimitPauseScope selects what waits out a 429 (default PauseClient).
	RateLimitPauseScope PauseScope

	// RequestsPerSecond paces exchanges client-side. Zero disables pacing.
	RequestsPerSecond float64

	// Timeout for a single HTTP exchange. Ignored when HTTPClient is set.
	Timeout time.Duration

	// HTTPClient replaces the default transport client.
	HTTPClient *http.Client

	// Redis enables the shared rate limit tracker, so every client using the
	// same Redis waits out a 429 seen by any of them.
	Redis *redis.Client

	// Logger overrides the default component logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(token string) Config {
	return Config{
		BaseURL:               DefaultBaseURL,
		Token:                 token,
		UserAgent:             DefaultUserAgent,
		MaxRequestConcurrency: queue.DefaultConcurrency,
		RetryPolicy:           TenRetriesInAboutThirtyMinutes,
		RateLimitPauseScope:   PauseClient,
		Timeout:               30 * time.Second,
	}
}

// New creates a new Web API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxRequestConcurrency == 0 {
		cfg.MaxRequestConcurrency = queue.DefaultConcurrency
	}
	if cfg.MaxRequestConcurrency < 0 {
		return nil, fmt.Errorf("max_request_concurrency must be >= 1 (got %d)", cfg.MaxRequestConcurrency)
	}
	if cfg.RetryPolicy == (RetryPolicy{}) {
		cfg.RetryPolicy = TenRetriesInAboutThirtyMinutes
	}
	if err := cfg.RetryPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	switch cfg.RateLimitPauseScope {
	case "":
		cfg.RateLimitPauseScope = PauseClient
	case PauseClient, PauseCall:
	default:
		return nil, fmt.Errorf("unknown rate limit pause scope %q", cfg.RateLimitPauseScope)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %v)", cfg.RequestsPerSecond)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	base := log.Logger
	if cfg.Logger != nil {
		base = *cfg.Logger
	}
	logger := base.With().Str("component", logging.ComponentClient).Logger()

	q, err := queue.New(cfg.MaxRequestConcurrency)
	if err != nil {
		return nil, err
	}

	var httpClient *resty.Client
	if cfg.HTTPClient != nil {
		httpClient = resty.NewWithClient(cfg.HTTPClient)
	} else {
		httpClient = resty.New().SetTimeout(cfg.Timeout)
	}
	httpClient.
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(0).
		SetLogger(logging.NewRestyLogger(base.With().Str("component", logging.ComponentTransport).Logger())).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeaders(cfg.Headers)

	c := &Client{
		http:       httpClient,
		queue:      q,
		config:     cfg,
		logger:     logger,
		baseLogger: base,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.Redis != nil {
		c.tracker = ratelimit.NewTracker(cfg.Redis, base.With().Str("component", logging.ComponentRateLimit).Logger())
	}

	return c, nil
}

// APICall invokes a Web API method and returns its result.
//
// options may be nil, a map with string keys, url.Values, or a struct that
// encodes to a JSON object. A successful return always has ok: true.
// Failures are one of *ArgumentError, *RequestError, *HTTPError,
// *PlatformError or *RateLimitedError.
func (c *Client) APICall(ctx context.Context, method string, options any) (result.Result, error) {
	startTime := time.Now()
	defer func() {
		webapiRequestDuration.WithLabelValues(method).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().
		Str("method", method).
		Str("call_id", uuid.NewString()).
		Logger()

	opts, err := normalizeOptions(options)
	if err != nil {
		return nil, c.fail(logger, err)
	}

	args := c.withDefaults(opts)
	warnDeprecated(logger, method)
	warnMessageShape(logger, method, args)

	req, err := newRequest(methods.Path(method), args)
	if err != nil {
		return nil, c.fail(logger, err)
	}

	logger.Debug().Msg("apiCall start")

	var resp result.Response
	err = retry(ctx, c.config.RetryPolicy, logger, func(attempt int) error {
		r, err := c.attempt(ctx, logger.With().Int("attempt", attempt).Logger(), method, req)
		resp = r
		return err
	})
	if err != nil {
		if _, ok := CodeOf(err); !ok {
			err = &RequestError{Original: err}
		}
		return nil, c.fail(logger, err)
	}

	res := result.Build(resp)
	md := res.Metadata()
	for _, warning := range md.Warnings {
		logger.Warn().Msg(warning)
	}
	logging.LogMessages(logger, md.Messages)

	if !res.OK() && !resp.IsGzip() {
		return nil, c.fail(logger, &PlatformError{ErrorCode: res.ErrorCode(), Data: res})
	}

	logger.Debug().Msg("apiCall end")
	return res, nil
}

// fail records and logs a failed call.
func (c *Client) fail(logger zerolog.Logger, err error) error {
	class := classifyError(err)
	webapiErrorsTotal.WithLabelValues(string(class)).Inc()
	logger.Debug().
		Err(err).
		Str("error_class", string(class)).
		Msg("apiCall failed")
	return err
}

// withDefaults merges the configured identity fields under the caller's
// options. Caller values win.
func (c *Client) withDefaults(opts map[string]any) map[string]any {
	args := make(map[string]any, len(opts)+2)
	if c.config.Token != "" {
		args[tokenOption] = c.config.Token
	}
	if c.config.TeamID != "" {
		args[teamIDOption] = c.config.TeamID
	}
	for k, v := range opts {
		args[k] = v
	}
	return args
}

// request is an encoded call, reused by every attempt.
type request struct {
	path    string
	body    []byte
	headers map[string]string
}

// newRequest pulls the token out of args into the Authorization header and
// encodes the rest.
func newRequest(path string, args map[string]any) (*request, error) {
	headers := map[string]string{}
	if token, ok := args[tokenOption]; ok {
		delete(args, tokenOption)
		switch t := token.(type) {
		case nil:
		case string:
			if t != "" {
				headers["Authorization"] = "Bearer " + t
			}
		default:
			return nil, &ArgumentError{Reason: fmt.Sprintf("token must be a string, got %T", token)}
		}
	}

	body, contentHeaders, err := form.Encode(args)
	if err != nil {
		return nil, &ArgumentError{Reason: "encode options", Err: err}
	}
	for k, v := range contentHeaders {
		headers[k] = v
	}

	return &request{path: path, body: body, headers: headers}, nil
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// Queue exposes the request queue for introspection.
func (c *Client) Queue() *queue.Queue {
	return c.queue
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}
