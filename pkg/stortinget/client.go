// Package stortinget fetches roll-call data from the Norwegian parliament's
// open data export at data.stortinget.no and normalizes it into rollcall
// records.
package stortinget

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/errors"
	"github.com/Leftovergoldennuggets/stortingsvotering/pkg/logger"
)

// Default client settings.
const (
	DefaultBaseURL             = "https://data.stortinget.no/eksport"
	DefaultUserAgent           = "stortingsvotering/1.0"
	DefaultTimeout             = 60 * time.Second
	DefaultRateLimit           = 700 * time.Millisecond
	DefaultMaxAttempts         = 3
	DefaultTimeoutRetryWait    = 5 * time.Second
	DefaultConnectionRetryWait = 10 * time.Second
	DefaultCacheTTL            = 1 * time.Hour
)

// Config holds configuration for the Client.
type Config struct {
	// BaseURL is the export root, without a trailing slash.
	BaseURL string

	// HTTPClient is the underlying HTTP client. Its Timeout is replaced by
	// Timeout when that is set.
	HTTPClient *http.Client

	// Timeout bounds a single request.
	Timeout time.Duration

	// RateLimit is the minimum interval between requests.
	RateLimit time.Duration

	// MaxAttempts is the number of tries for a request that times out or
	// cannot connect. HTTP error statuses are never retried.
	MaxAttempts int

	// TimeoutRetryWait is the pause before retrying a timed out request.
	TimeoutRetryWait time.Duration

	// ConnectionRetryWait is the pause before retrying a failed connection.
	ConnectionRetryWait time.Duration

	// UserAgent is the User-Agent header.
	UserAgent string

	// CacheTTL is how long successful responses are reused. Zero disables
	// the cache.
	CacheTTL time.Duration
}

// DefaultConfig returns a Config with the standard settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:             DefaultBaseURL,
		Timeout:             DefaultTimeout,
		RateLimit:           DefaultRateLimit,
		MaxAttempts:         DefaultMaxAttempts,
		TimeoutRetryWait:    DefaultTimeoutRetryWait,
		ConnectionRetryWait: DefaultConnectionRetryWait,
		UserAgent:           DefaultUserAgent,
		CacheTTL:            DefaultCacheTTL,
	}
}

// Client fetches data from the export API. It is safe for concurrent use;
// all requests share one rate limiter.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	cache   *responseCache
	logger  *zap.SugaredLogger
}

// NewClient creates a client, filling unset fields from DefaultConfig.
// A nil log uses the global logger.
func NewClient(config Config, log *zap.SugaredLogger) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.RateLimit < 0 {
		config.RateLimit = 0
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	clone := *httpClient
	clone.Timeout = config.Timeout

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Every(config.RateLimit)
	}

	var cache *responseCache
	if config.CacheTTL > 0 {
		cache = newResponseCache(config.CacheTTL)
	}

	return &Client{
		config:  config,
		http:    &clone,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		logger:  logger.OrDefault(log, "stortinget"),
	}
}

// getJSON fetches endpoint with params and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}

// get performs a rate-limited GET with the retry policy from Config.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("format", "json")
	target := c.config.BaseURL + "/" + endpoint + "?" + params.Encode()

	if c.cache != nil {
		if body, ok := c.cache.Get(target); ok {
			return body, nil
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		body, status, err := c.do(ctx, target)
		if err == nil && status == http.StatusOK {
			if c.cache != nil {
				c.cache.Set(target, body)
			}
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if err == nil {
			c.logger.Warnw("Unexpected status from upstream",
				logger.FieldURL, target,
				logger.FieldStatus, status)
			return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "GET %s: status %d", target, status)
		}

		lastErr = err
		wait := c.config.ConnectionRetryWait
		if isTimeout(err) {
			wait = c.config.TimeoutRetryWait
		}

		if attempt == c.config.MaxAttempts {
			break
		}

		c.logger.Warnw("Request failed, retrying",
			logger.FieldURL, target,
			logger.FieldAttempt, attempt,
			logger.FieldError, err)

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "GET %s after %d attempts: %v",
		target, c.config.MaxAttempts, lastErr)
}

// do issues one request. A non-nil error means no response was received.
func (c *Client) do(ctx context.Context, target string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read response")
	}

	c.logger.Debugw("GET",
		logger.FieldURL, target,
		logger.FieldStatus, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
