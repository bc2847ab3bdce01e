// Package client provides the SWAPI HTTP client with a global concurrency
// ceiling, retry with randomized exponential backoff, and typed memoized
// entity fetchers built on top of it.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/swapi-etl/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Prometheus metrics for SWAPI client operations.
var (
	swapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_requests_total",
		Help: "Total SWAPI requests by resource kind and status",
	}, []string{"kind", "status"})

	swapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_request_duration_seconds",
		Help:    "SWAPI request duration in seconds by resource kind",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"kind"})

	swapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_errors_total",
		Help: "Total SWAPI errors by class",
	}, []string{"class"})

	swapiInflightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "swapi_inflight_requests",
		Help: "Number of HTTP requests currently holding a concurrency slot",
	})
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 * 1024 * 1024

// ErrorClass represents a classification of request errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the SWAPI HTTP client. One Client is shared by every fetch of a
// pipeline run so that all of them draw from the same concurrency budget.
type Client struct {
	httpClient *http.Client
	sem        *semaphore.Weighted
	limiter    *ratelimit.Limiter
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// User-Agent header sent with every request
	UserAgent string

	// Concurrency
	MaxConcurrency int // Max simultaneous in-flight requests across the whole run

	// Pacing
	RequestsPerSecond float64 // 0 disables client-side pacing

	// Retry
	Retry RetryConfig

	// Timeout per HTTP attempt
	Timeout time.Duration
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent:      userAgent,
		MaxConcurrency: 10,
		Retry:          DefaultRetryConfig(),
		Timeout:        30 * time.Second,
	}
}

// New creates a new SWAPI client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be >= 1 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	logger := log.With().Str("component", "swapi-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, 1, logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// Get fetches url and returns the response body. kind labels metrics and
// logs (e.g. "people", "species"). Transient failures are retried; the
// concurrency slot is released while waiting between attempts.
func (c *Client) Get(ctx context.Context, kind, url string) ([]byte, error) {
	var body []byte

	err := retryWithBackoff(ctx, c.config.Retry, url, func(attempt int) error {
		var err error
		body, err = c.do(ctx, kind, url, attempt)
		return err
	}, func(err error) ErrorClass {
		return c.classifyError(ctx, err)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// do performs a single attempt. It waits for the rate limiter first and
// holds a concurrency slot only for the request itself.
func (c *Client) do(ctx context.Context, kind, url string, attempt int) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire request slot: %w", err)
	}
	defer c.sem.Release(1)

	swapiInflightRequests.Inc()
	defer swapiInflightRequests.Dec()

	startTime := time.Now()
	defer func() {
		swapiRequestDuration.WithLabelValues(kind).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("kind", kind).
		Str("url", url).
		Int("attempt", attempt).
		Msg("Executing SWAPI request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		swapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		swapiRequestsTotal.WithLabelValues(kind, "network_error").Inc()
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	status := strconv.Itoa(resp.StatusCode)
	swapiRequestsTotal.WithLabelValues(kind, status).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		swapiErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("url", url).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("SWAPI request error")

		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		swapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// classifyStatus maps an HTTP error status to an ErrorClass.
func classifyStatus(code int) ErrorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case code >= 400 && code < 500:
		return ErrorClassClient
	case code >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyError categorizes an attempt error for retry decisions.
// Errors caused by the caller's own context ending are never retried.
func (c *Client) classifyError(ctx context.Context, err error) ErrorClass {
	if err == nil {
		return ""
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ErrorClass
	}

	if ctx.Err() != nil {
		return ""
	}

	return ErrorClassNetwork
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// MaxConcurrency returns the size of the shared concurrency budget.
func (c *Client) MaxConcurrency() int {
	return c.config.MaxConcurrency
}
