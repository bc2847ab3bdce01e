package client

import (
	"context"

	"github.com/Sternrassler/swapi-etl/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var swapiValidationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "swapi_validation_errors_total",
	Help: "Total SWAPI payloads rejected by schema validation, by resource kind",
}, []string{"kind"})

// Getter fetches the raw body at a URL. *Client implements it.
type Getter interface {
	Get(ctx context.Context, kind, url string) ([]byte, error)
}

// DecodeFunc turns a raw response body into a typed record.
type DecodeFunc[T any] func(data []byte) (T, error)

// EntityFetcher fetches, validates and memoizes one resource kind. Each
// distinct URL is requested from the API at most once per fetcher;
// concurrent requests for the same URL share one fetch.
type EntityFetcher[T any] struct {
	client Getter
	kind   string
	decode DecodeFunc[T]
	memo   *cache.Memo[T]
	logger zerolog.Logger
}

// NewEntityFetcher creates a fetcher for the given resource kind.
func NewEntityFetcher[T any](c Getter, kind string, decode func(data []byte) (T, error)) *EntityFetcher[T] {
	return &EntityFetcher[T]{
		client: c,
		kind:   kind,
		decode: decode,
		memo:   cache.NewMemo[T](kind),
		logger: log.With().Str("component", "fetcher").Str("kind", kind).Logger(),
	}
}

// Fetch returns the record at rawURL. Transport failures surface as the
// client returned them; payloads that fail validation surface as
// *ValidationError. Both outcomes are memoized; a failure caused by ctx
// ending is not.
func (f *EntityFetcher[T]) Fetch(ctx context.Context, rawURL string) (T, error) {
	key, err := cache.NewKey(f.kind, rawURL)
	if err != nil {
		var zero T
		return zero, err
	}

	return f.memo.Do(ctx, key, func() (T, error) {
		var zero T

		body, err := f.client.Get(ctx, f.kind, key.URL())
		if err != nil {
			return zero, err
		}

		v, err := f.decode(body)
		if err != nil {
			swapiValidationErrorsTotal.WithLabelValues(f.kind).Inc()
			f.logger.Error().
				Err(err).
				Str("url", key.URL()).
				Bytes("payload", body).
				Msg("Payload failed validation")
			return zero, &ValidationError{URL: key.URL(), Kind: f.kind, Payload: body, Err: err}
		}
		return v, nil
	})
}

// Requested returns the number of distinct URLs requested so far.
func (f *EntityFetcher[T]) Requested() int {
	return f.memo.Len()
}

// Kind returns the resource kind.
func (f *EntityFetcher[T]) Kind() string {
	return f.kind
}
