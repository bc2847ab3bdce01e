// Package cache provides the process-scoped fetch cache shared by every
// request of one pipeline run.
//
// The cache memoizes results by normalized resource URL and coalesces
// concurrent requests: the first caller for a key performs the fetch, every
// caller arriving while it is in flight waits for the same outcome, and every
// later caller receives the stored value or error without a new request.
//
// # Basic Usage
//
//	memo := cache.NewMemo[swapi.Species]("species")
//
//	key, err := cache.NewKey("species", "https://swapi.dev/api/species/2/")
//	if err != nil {
//		return err
//	}
//
//	species, err := memo.Do(ctx, key, func() (swapi.Species, error) {
//		return fetchSpecies(ctx, key.URL())
//	})
//
// # Keys
//
// Keys are deterministic: scheme and host are lower-cased, the fragment is
// dropped and query parameters are sorted, so "?b=2&a=1" and "?a=1&b=2" share
// one entry.
//
// # Metrics
//
//   - swapi_cache_hits_total{kind} - completed entries served from memory
//   - swapi_cache_misses_total{kind} - keys fetched for the first time
//   - swapi_cache_coalesced_total{kind} - callers that joined an in-flight fetch
//
// Nothing is persisted: entries live as long as the Memo value.
package cache
