package client

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for retry operations.
var (
	swapiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	swapiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 3, 5},
	}, []string{"error_class"})

	swapiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the backoff ceiling before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff ceiling.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the ceiling after every attempt.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        3 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// ceiling returns the upper bound of the wait after the given attempt (1-based).
func (c RetryConfig) ceiling(attempt int) time.Duration {
	mult := c.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(c.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if c.MaxBackoff > 0 && d > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	// float64(MaxInt64) rounds up to 2^63, which does not convert
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Backoff returns a random wait in [0, ceiling(attempt)] (full jitter).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	ceil := c.ceiling(attempt)
	if ceil <= 0 {
		return 0
	}
	if ceil == math.MaxInt64 {
		return time.Duration(rand.Int64N(int64(ceil)))
	}
	return time.Duration(rand.Int64N(int64(ceil) + 1))
}

func (c RetryConfig) attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// retryWithBackoff executes fn until it succeeds, returns an error classified
// as permanent, or runs out of attempts. Exhaustion yields a
// *FetchExhaustedError carrying the last error.
func retryWithBackoff(ctx context.Context, config RetryConfig, url string, fn func(attempt int) error, classify func(error) ErrorClass) error {
	maxAttempts := config.attempts()

	var lastErr error
	var errorClass ErrorClass

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("url", url).
					Str("error_class", string(errorClass)).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		lastErr = err
		errorClass = classify(err)

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		swapiRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		backoff := config.Backoff(attempt)
		swapiRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(backoff.Seconds())

		log.Warn().
			Err(err).
			Str("url", url).
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn().
				Str("url", url).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	swapiRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	log.Error().
		Err(lastErr).
		Str("url", url).
		Str("error_class", string(errorClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return &FetchExhaustedError{URL: url, Attempts: maxAttempts, Err: lastErr}
}
