package pagination

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "swapi_pages_fetched_total",
	Help: "Total collection pages fetched successfully",
})

// Config holds walker configuration
type Config struct {
	// PageSize is the number of records per page. 0 means use the size of
	// the first page.
	PageSize int
	// PageParam is the query parameter selecting a page
	PageParam string
}

// DefaultConfig returns the configuration matching SWAPI
func DefaultConfig() Config {
	return Config{
		PageSize:  0,
		PageParam: "page",
	}
}

// Page is one decoded page of a collection.
type Page[T any] interface {
	Items() []T
	Total() int
}

// PageSource fetches a single page and returns its records plus the total
// record count of the collection.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, pageURL string) (items []T, total int, err error)
}

// PageFetcher fetches a typed page by URL, e.g. a client.EntityFetcher.
type PageFetcher[P Page[T], T any] interface {
	Fetch(ctx context.Context, url string) (P, error)
}

type fetcherSource[P Page[T], T any] struct {
	fetcher PageFetcher[P, T]
}

func (s fetcherSource[P, T]) FetchPage(ctx context.Context, pageURL string) ([]T, int, error) {
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, 0, err
	}
	return page.Items(), page.Total(), nil
}

// FromFetcher adapts a typed page fetcher to a PageSource.
func FromFetcher[P Page[T], T any](f PageFetcher[P, T]) PageSource[T] {
	return fetcherSource[P, T]{fetcher: f}
}

type pageResult[T any] struct {
	page  int
	items []T
	err   error
}

// Walker lazily walks every page of a collection
type Walker[T any] struct {
	source PageSource[T]
	config Config
}

// NewWalker creates a new walker
func NewWalker[T any](source PageSource[T], config Config) *Walker[T] {
	if config.PageParam == "" {
		config.PageParam = "page"
	}
	if config.PageSize < 0 {
		config.PageSize = 0
	}

	return &Walker[T]{
		source: source,
		config: config,
	}
}

// Walk yields every record of the collection at collectionURL.
//
// A first-page failure yields a single error and no records. A failure on a
// later page is yielded when it arrives and ends the walk. Stopping early
// is safe: outstanding page fetches finish into a buffered channel.
func (w *Walker[T]) Walk(ctx context.Context, collectionURL string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		start := time.Now()

		firstItems, total, err := w.source.FetchPage(ctx, collectionURL)
		if err != nil {
			yield(zero, fmt.Errorf("fetch first page: %w", err))
			return
		}
		pagesFetchedTotal.Inc()

		pageSize := w.config.PageSize
		if pageSize == 0 {
			pageSize = len(firstItems)
		}
		totalPages := TotalPages(total, pageSize)

		log.Info().
			Str("collection", collectionURL).
			Int("count", total).
			Int("page_size", pageSize).
			Int("total_pages", totalPages).
			Msg("Starting parallel page fetch")

		for _, item := range firstItems {
			if !yield(item, nil) {
				return
			}
		}

		if totalPages <= 1 {
			log.Info().
				Str("collection", collectionURL).
				Int("pages", 1).
				Dur("duration", time.Since(start)).
				Msg("Fetch complete (single page)")
			return
		}

		urls, err := PageURLs(collectionURL, w.config.PageParam, totalPages)
		if err != nil {
			yield(zero, err)
			return
		}

		// Buffered so no fetch goroutine blocks once the consumer stops.
		results := make(chan pageResult[T], len(urls))
		for i, u := range urls {
			page := i + 2
			go func() {
				items, _, err := w.source.FetchPage(ctx, u)
				results <- pageResult[T]{page: page, items: items, err: err}
			}()
		}

		fetchedPages := 1
		for range urls {
			result := <-results
			if result.err != nil {
				log.Warn().
					Err(result.err).
					Int("page", result.page).
					Int("fetched_pages", fetchedPages).
					Int("total_pages", totalPages).
					Msg("Page fetch failed")
				yield(zero, fmt.Errorf("fetch page %d: %w", result.page, result.err))
				return
			}

			pagesFetchedTotal.Inc()
			fetchedPages++

			log.Debug().
				Int("page", result.page).
				Int("fetched", fetchedPages).
				Int("total", totalPages).
				Float64("progress_pct", float64(fetchedPages)/float64(totalPages)*100).
				Msg("Fetch progress")

			for _, item := range result.items {
				if !yield(item, nil) {
					return
				}
			}
		}

		log.Info().
			Str("collection", collectionURL).
			Int("pages", fetchedPages).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete")
	}
}

// TotalPages returns ceil(count / pageSize), or 1 when pageSize is 0.
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// PageURLs builds the URLs of pages 2..totalPages of collectionURL.
func PageURLs(collectionURL, pageParam string, totalPages int) ([]string, error) {
	base, err := url.Parse(collectionURL)
	if err != nil {
		return nil, fmt.Errorf("parse collection url: %w", err)
	}

	urls := make([]string, 0, max(totalPages-1, 0))
	for page := 2; page <= totalPages; page++ {
		u := *base
		q := u.Query()
		q.Set(pageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
		urls = append(urls, u.String())
	}
	return urls, nil
}
