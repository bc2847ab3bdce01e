package cache

import (
	"context"
	"fmt"
	"sync"
)

// call is one in-flight or completed fetch.
type call[T any] struct {
	done chan struct{}
	val  T
	err  error

	// abandoned is set when the fetch ended because its caller's context
	// did; the entry is removed and waiters fetch again.
	abandoned bool
}

// Memo memoizes fetch results by key and coalesces concurrent fetches of the
// same key into one call. Failures are memoized like values, except a
// failure caused by the fetching caller's context ending.
type Memo[T any] struct {
	kind string

	mu    sync.Mutex
	calls map[string]*call[T]
}

// NewMemo creates an empty memo for one resource kind.
func NewMemo[T any](kind string) *Memo[T] {
	return &Memo[T]{
		kind:  kind,
		calls: make(map[string]*call[T]),
	}
}

// Do returns the memoized result for key, calling fn when the key has never
// been requested. fn runs under ctx. Callers arriving while fn runs wait for
// its result. A waiter whose ctx ends first returns ctx.Err() and leaves the
// entry intact. When fn fails after ctx ended, nothing is stored: the next
// caller, or a waiter with a live ctx, fetches again.
func (m *Memo[T]) Do(ctx context.Context, key CacheKey, fn func() (T, error)) (T, error) {
	k := key.String()

	for {
		m.mu.Lock()
		c, ok := m.calls[k]
		if !ok {
			break
		}
		m.mu.Unlock()

		select {
		case <-c.done:
			if !c.abandoned {
				CacheHits.WithLabelValues(m.kind).Inc()
				return c.val, c.err
			}
			continue
		default:
		}

		CacheCoalesced.WithLabelValues(m.kind).Inc()
		select {
		case <-c.done:
			if c.abandoned && ctx.Err() == nil {
				continue
			}
			return c.val, c.err
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("wait for %s: %w", k, ctx.Err())
		}
	}

	c := &call[T]{done: make(chan struct{})}
	m.calls[k] = c
	m.mu.Unlock()

	CacheMisses.WithLabelValues(m.kind).Inc()
	defer close(c.done)

	c.val, c.err = fn()
	if c.err != nil && ctx.Err() != nil {
		c.abandoned = true
		m.mu.Lock()
		if m.calls[k] == c {
			delete(m.calls, k)
		}
		m.mu.Unlock()
	}
	return c.val, c.err
}

// Len returns the number of keys requested so far, in flight or completed.
func (m *Memo[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Kind returns the resource kind the memo was created for.
func (m *Memo[T]) Kind() string {
	return m.kind
}
