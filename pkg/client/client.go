// Package client provides the core Materials API HTTP client: a single-request
// dispatcher with transport retry, response caching, rate limit gating, and
// typed error handling.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/materialsproject/mp-api-go/pkg/cache"
	"github.com/materialsproject/mp-api-go/pkg/query"
	"github.com/materialsproject/mp-api-go/pkg/ratelimit"
)

// Version identifies this client in the User-Agent header.
const Version = "0.1.0"

// DefaultEndpoint is the production Materials API base URL.
const DefaultEndpoint = "https://api.materialsproject.org/"

// Prometheus metrics for client operations.
var (
	mapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapi_requests_total",
		Help: "Total Materials API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	mapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mapi_request_duration_seconds",
		Help:    "Materials API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	mapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapi_errors_total",
		Help: "Total Materials API errors by class",
	}, []string{"class"})
)

// Client is the request dispatcher for the Materials API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	cache      *cache.Manager
	limiter    *ratelimit.Tracker
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the API base URL. Defaults to DefaultEndpoint.
	Endpoint string

	// APIKey is sent in the x-api-key header (REQUIRED).
	APIKey string

	// UserAgent overrides the default composed User-Agent header.
	UserAgent string

	// Timeout is the per-request timeout. Defaults to 20s.
	Timeout time.Duration

	// Redis enables the shared response cache and rate limit state when set.
	Redis *redis.Client

	// CacheTTL is how long cached pages stay valid. Defaults to 15m.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		Endpoint: DefaultEndpoint,
		APIKey:   apiKey,
		Timeout:  20 * time.Second,
		CacheTTL: 15 * time.Minute,
	}
}

// New creates a new Materials API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{Reason: "api key is required"}
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if !strings.HasSuffix(cfg.Endpoint, "/") {
		cfg.Endpoint += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = fmt.Sprintf("mp-api-go/%s (%s %s/%s)",
			Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	}

	logger := log.With().Str("component", "mapi-client").Logger()

	c := &Client{
		httpClient: &http.Client{},
		endpoint:   cfg.Endpoint,
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
		c.limiter = ratelimit.NewTracker(cfg.Redis, logger)
	}

	return c, nil
}

// Endpoint returns the configured API base URL (with trailing slash).
func (c *Client) Endpoint() string {
	return c.endpoint
}

// FetchPage performs one GET request against endpoint+suburl with the given
// criteria and decodes the response envelope. It returns the page and the
// server-side subtotal of documents matching the criteria.
//
// Status handling: 200 decodes; 400 is a soft failure surfaced as a warning
// (the server may not support a parameter combination) returning an empty
// page; timeouts map to RequestTimeoutError; everything else raises a
// RestError carrying status, URL, and the extracted detail message. Retries
// for 5xx/429/network failures happen inside the transport, never here.
func (c *Client) FetchPage(ctx context.Context, suburl string, criteria query.Criteria, timeout time.Duration) (*Page, int, error) {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}

	reqURL := c.buildURL(suburl)
	fullURL := reqURL
	if len(criteria) > 0 {
		fullURL += "?" + criteria.Encode()
	}
	endpointLabel := "/" + strings.Trim(suburl, "/")

	start := time.Now()
	defer func() {
		mapiRequestDuration.WithLabelValues(endpointLabel).Observe(time.Since(start).Seconds())
	}()

	if c.limiter != nil {
		allowed, err := c.limiter.ShouldAllowRequest(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Rate limit check failed")
		} else if !allowed {
			mapiRequestsTotal.WithLabelValues(endpointLabel, "rate_limited").Inc()
			return nil, 0, &RestError{URL: fullURL, Message: "request blocked: shared rate limit exhausted"}
		}
	}

	var cacheKey cache.Key
	if c.cache != nil {
		cacheKey = cache.Key{Endpoint: endpointLabel, Params: criteria.Encode()}
		if entry, err := c.cache.Get(ctx, cacheKey); err == nil {
			page, decodeErr := decodePage(entry.Body)
			if decodeErr == nil {
				c.logger.Debug().Str("endpoint", endpointLabel).Msg("Serving page from cache")
				return page, page.Subtotal(), nil
			}
			c.logger.Warn().Err(decodeErr).Msg("Discarding undecodable cache entry")
			_ = c.cache.Delete(ctx, cacheKey)
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("endpoint", endpointLabel).Msg("Cache get error")
		}
	}

	var body []byte
	var status int
	var netErr error

	attempt := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		req.URL.RawQuery = criteria.Encode()
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			netErr = err
			mapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			mapiRequestsTotal.WithLabelValues(endpointLabel, "network_error").Inc()
			return &retryableError{class: ErrorClassNetwork, err: err}
		}
		defer resp.Body.Close()

		if c.limiter != nil {
			if err := c.limiter.UpdateFromResponse(ctx, resp.StatusCode, resp.Header); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update rate limit state")
			}
		}

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			netErr = err
			mapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &retryableError{class: ErrorClassNetwork, err: err}
		}

		status = resp.StatusCode
		body = b
		mapiRequestsTotal.WithLabelValues(endpointLabel, strconv.Itoa(status)).Inc()

		if class := classifyStatus(status); class == ErrorClassServer || class == ErrorClassRateLimit {
			mapiErrorsTotal.WithLabelValues(string(class)).Inc()
			return &retryableError{
				class:      class,
				retryAfter: parseRetryAfter(resp.Header),
				err:        fmt.Errorf("server returned %s", resp.Status),
			}
		}

		return nil
	}

	if err := retryWithBackoff(ctx, c.logger, attempt); err != nil {
		return nil, 0, c.transportError(fullURL, err, netErr)
	}

	switch {
	case status == http.StatusOK:
		page, err := decodePage(body)
		if err != nil {
			return nil, 0, &RestError{URL: fullURL, Message: "undecodable response body", Err: err}
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(body, status, c.config.CacheTTL)); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			}
		}
		return page, page.Subtotal(), nil

	case status == http.StatusBadRequest:
		mapiErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		c.logger.Warn().
			Str("endpoint", endpointLabel).
			Str("detail", parseDetail(body)).
			Msg("Server rejected parameter combination (400), continuing without this page")
		return &Page{}, 0, nil

	default:
		mapiErrorsTotal.WithLabelValues(string(classifyStatus(status))).Inc()
		return nil, 0, &RestError{StatusCode: status, URL: fullURL, Message: parseDetail(body)}
	}
}

// Post sends a JSON body to endpoint+suburl, used by structure and molecule
// match-finding operations. Success and error envelopes match FetchPage.
func (c *Client) Post(ctx context.Context, suburl string, payload any, params query.Criteria) (*Page, error) {
	reqURL := c.buildURL(suburl)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode post body: %w", err)
	}

	endpointLabel := "/" + strings.Trim(suburl, "/")
	start := time.Now()
	defer func() {
		mapiRequestDuration.WithLabelValues(endpointLabel).Observe(time.Since(start).Seconds())
	}()

	var body []byte
	var status int
	var netErr error

	attempt := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, reqURL, bytes.NewReader(encoded))
		if err != nil {
			return err
		}
		if len(params) > 0 {
			req.URL.RawQuery = params.Encode()
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			netErr = err
			mapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &retryableError{class: ErrorClassNetwork, err: err}
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			netErr = err
			return &retryableError{class: ErrorClassNetwork, err: err}
		}

		status = resp.StatusCode
		body = b
		mapiRequestsTotal.WithLabelValues(endpointLabel, strconv.Itoa(status)).Inc()

		if class := classifyStatus(status); class == ErrorClassServer || class == ErrorClassRateLimit {
			mapiErrorsTotal.WithLabelValues(string(class)).Inc()
			return &retryableError{
				class:      class,
				retryAfter: parseRetryAfter(resp.Header),
				err:        fmt.Errorf("server returned %s", resp.Status),
			}
		}
		return nil
	}

	if err := retryWithBackoff(ctx, c.logger, attempt); err != nil {
		return nil, c.transportError(reqURL, err, netErr)
	}

	if status != http.StatusOK {
		mapiErrorsTotal.WithLabelValues(string(classifyStatus(status))).Inc()
		return nil, &RestError{StatusCode: status, URL: reqURL, Message: parseDetail(body)}
	}

	page, err := decodePage(body)
	if err != nil {
		return nil, &RestError{URL: reqURL, Message: "undecodable response body", Err: err}
	}
	return page, nil
}

// DatabaseVersion returns the database release tag reported by the API's
// heartbeat route (e.g. "2025.06.09"). The bulk object-store path uses it
// to derive the collection prefix.
func (c *Client) DatabaseVersion(ctx context.Context) (string, error) {
	reqURL := c.endpoint + "heartbeat"

	var body []byte
	var status int
	var netErr error

	attempt := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			netErr = err
			mapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &retryableError{class: ErrorClassNetwork, err: err}
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			netErr = err
			return &retryableError{class: ErrorClassNetwork, err: err}
		}

		status = resp.StatusCode
		body = b

		if class := classifyStatus(status); class == ErrorClassServer || class == ErrorClassRateLimit {
			mapiErrorsTotal.WithLabelValues(string(class)).Inc()
			return &retryableError{
				class:      class,
				retryAfter: parseRetryAfter(resp.Header),
				err:        fmt.Errorf("server returned %s", resp.Status),
			}
		}
		return nil
	}

	if err := retryWithBackoff(ctx, c.logger, attempt); err != nil {
		return "", c.transportError(reqURL, err, netErr)
	}

	if status != http.StatusOK {
		return "", &RestError{StatusCode: status, URL: reqURL, Message: parseDetail(body)}
	}

	var heartbeat struct {
		DBVersion string `json:"db_version"`
	}
	if err := json.Unmarshal(body, &heartbeat); err != nil {
		return "", &RestError{URL: reqURL, Message: "undecodable heartbeat body", Err: err}
	}
	return heartbeat.DBVersion, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) buildURL(suburl string) string {
	if suburl == "" {
		return c.endpoint
	}
	u := c.endpoint + strings.Trim(suburl, "/")
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
}

// transportError maps a final transport failure to the error taxonomy.
// Timeouts become RequestTimeoutError so callers know to shrink the request.
func (c *Client) transportError(url string, err, netErr error) error {
	if isTimeout(err) || isTimeout(netErr) {
		return &RequestTimeoutError{URL: url, Err: err}
	}
	if errors.Is(err, ErrContextCancelled) || errors.Is(err, ErrRetryExhausted) {
		return &RestError{URL: url, Message: err.Error(), Err: err}
	}
	var rest *RestError
	if errors.As(err, &rest) {
		return err
	}
	return &RestError{URL: url, Message: err.Error(), Err: err}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classifyStatus categorizes an HTTP status for observability and retry.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func parseRetryAfter(headers http.Header) time.Duration {
	raw := headers.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}

func decodePage(body []byte) (*Page, error) {
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
