// Package sink delivers the exported table to its destination.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Sternrassler/swapi-etl/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var sinkSendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "swapi_sink_sends_total",
	Help: "Total sink deliveries by sink and status",
}, []string{"sink", "status"})

// Sink sends a rendered body somewhere.
type Sink interface {
	Send(ctx context.Context, contentType string, body []byte) error
	Name() string
}

// HTTPSink POSTs the body to a URL.
type HTTPSink struct {
	url        string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPSink creates a sink posting to url.
func NewHTTPSink(url, userAgent string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		url:        url,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.With().Str("component", "sink").Str("sink", "http").Logger(),
	}
}

// Name implements Sink.
func (s *HTTPSink) Name() string { return "http" }

// Send implements Sink. A non-2xx response is returned as *client.StatusError.
func (s *HTTPSink) Send(ctx context.Context, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create sink request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		sinkSendsTotal.WithLabelValues(s.Name(), "error").Inc()
		return fmt.Errorf("post to sink: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	s.logger.Info().
		Str("url", s.url).
		Int("status", resp.StatusCode).
		Int("bytes_sent", len(body)).
		Int("response_bytes", len(respBody)).
		Msg("Sink responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		sinkSendsTotal.WithLabelValues(s.Name(), "error").Inc()
		class := client.ErrorClassServer
		if resp.StatusCode < 500 {
			class = client.ErrorClassClient
		}
		return &client.StatusError{
			URL:        s.url,
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    resp.Status,
		}
	}

	sinkSendsTotal.WithLabelValues(s.Name(), "ok").Inc()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (s *HTTPSink) SetHTTPClient(c *http.Client) {
	s.httpClient = c
}

// RedisSink stores the body under a key.
type RedisSink struct {
	redis  *redis.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisSink creates a sink writing to key. ttl 0 keeps the key forever.
func NewRedisSink(rdb *redis.Client, key string, ttl time.Duration) *RedisSink {
	return &RedisSink{
		redis:  rdb,
		key:    key,
		ttl:    ttl,
		logger: log.With().Str("component", "sink").Str("sink", "redis").Logger(),
	}
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Send implements Sink.
func (s *RedisSink) Send(ctx context.Context, contentType string, body []byte) error {
	if err := s.redis.Set(ctx, s.key, body, s.ttl).Err(); err != nil {
		sinkSendsTotal.WithLabelValues(s.Name(), "error").Inc()
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}

	sinkSendsTotal.WithLabelValues(s.Name(), "ok").Inc()
	s.logger.Info().
		Str("key", s.key).
		Str("content_type", contentType).
		Int("bytes_sent", len(body)).
		Dur("ttl", s.ttl).
		Msg("Export stored in Redis")
	return nil
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	return s.redis.Close()
}

// WriterSink writes the body to an io.Writer, e.g. stdout.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink creates a sink writing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Name implements Sink.
func (s *WriterSink) Name() string { return "stdout" }

// Send implements Sink.
func (s *WriterSink) Send(ctx context.Context, contentType string, body []byte) error {
	if _, err := s.w.Write(body); err != nil {
		sinkSendsTotal.WithLabelValues(s.Name(), "error").Inc()
		return fmt.Errorf("write export: %w", err)
	}
	sinkSendsTotal.WithLabelValues(s.Name(), "ok").Inc()
	return nil
}
