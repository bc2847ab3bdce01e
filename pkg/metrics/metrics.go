// Package metrics exposes the Prometheus metrics of a pipeline run.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination, rank, sink) to maintain modularity and avoid
// circular dependencies.
//
// This package provides the exposition endpoint and a reference for all
// available metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the pipeline.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves /metrics on an address for the lifetime of a run.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and starts serving /metrics in the background.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	s := &Server{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", ln.Addr().String()).Msg("Metrics server failed")
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - swapi_requests_total{kind, status} (Counter): Requests by resource kind and HTTP status
//   - swapi_request_duration_seconds{kind} (Histogram): Request duration by resource kind
//   - swapi_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - swapi_inflight_requests (Gauge): Requests holding a concurrency slot
//   - swapi_validation_errors_total{kind} (Counter): Payloads rejected by validation
//
// Retry Metrics (pkg/client):
//   - swapi_retries_total{error_class} (Counter): Retry attempts by error class
//   - swapi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - swapi_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - swapi_cache_hits_total{kind} (Counter): Fetches served from a completed entry
//   - swapi_cache_misses_total{kind} (Counter): Fetches that went to the API
//   - swapi_cache_coalesced_total{kind} (Counter): Fetches that joined one in flight
//
// Pacing Metrics (pkg/ratelimit):
//   - swapi_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//   - swapi_rate_limit_throttles_total (Counter): Requests that had to wait
//
// Pipeline Metrics:
//   - swapi_pages_fetched_total (Counter, pkg/pagination): Pages fetched successfully
//   - swapi_rank_records_total{outcome} (Counter, pkg/rank): kept, rejected, discarded, evicted
//   - swapi_sink_sends_total{sink, status} (Counter, pkg/sink): Sink deliveries
//
// Example Prometheus Queries:
//
//   # Species cache effectiveness
//   sum(rate(swapi_cache_hits_total{kind="species"}[5m]) + rate(swapi_cache_coalesced_total{kind="species"}[5m])) /
//   sum(rate(swapi_cache_misses_total{kind="species"}[5m]))
//
//   # Retry Rate
//   rate(swapi_retries_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(swapi_request_duration_seconds_bucket[5m]))
