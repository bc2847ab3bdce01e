// Package pagination walks paginated SWAPI collections.
//
// SWAPI reports the total item count on every page, so once the first page
// is known the remaining page URLs can be derived and fetched in parallel.
// The walker yields records lazily as pages arrive:
//
//	walker := pagination.NewWalker(source, pagination.DefaultConfig())
//	for person, err := range walker.Walk(ctx, "https://swapi.dev/api/people/") {
//		...
//	}
//
// The walker:
//   - Fetches the first page synchronously and yields its records in order
//   - Derives the page count from the reported total and the page size
//   - Starts one goroutine per remaining page
//   - Yields later pages in arrival order, stopping at the first failure
//
// Concurrency across pages is bounded by the shared HTTP client, not here.
package pagination
