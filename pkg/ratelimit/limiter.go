// Package ratelimit paces outgoing requests on the client side.
//
// The upstream API publishes no rate-limit headers, so pacing is a fixed
// token bucket shared by every request of a run. A zero rate disables it.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "swapi_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for a rate limit token",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swapi_rate_limit_throttles_total",
		Help: "Total number of requests that had to wait for a token",
	})
)

// throttleThreshold is the wait above which a request counts as throttled.
const throttleThreshold = time.Millisecond

// Limiter gates requests with a token bucket.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewLimiter creates a limiter allowing perSecond requests per second with
// the given burst. perSecond <= 0 disables limiting.
func NewLimiter(perSecond float64, burst int, logger zerolog.Logger) *Limiter {
	if perSecond <= 0 {
		return &Limiter{logger: logger}
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:  logger,
	}
}

// Enabled reports whether the limiter paces requests at all.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter != nil
}

// Wait blocks until a request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}

	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	waited := time.Since(start)
	rateLimitWaitSeconds.Observe(waited.Seconds())
	if waited > throttleThreshold {
		rateLimitThrottlesTotal.Inc()
		l.logger.Debug().
			Dur("waited", waited).
			Msg("Request throttled by client rate limit")
	}
	return nil
}
