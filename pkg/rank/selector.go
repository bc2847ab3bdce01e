// Package rank keeps the K highest-ranked records of a stream in O(K) memory.
package rank

import (
	"container/heap"
	"iter"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rankRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "swapi_rank_records_total",
	Help: "Records offered to the top-K selector by outcome",
}, []string{"outcome"})

// Outcomes of Offer.
const (
	OutcomeKept      = "kept"
	OutcomeRejected  = "rejected"
	OutcomeDiscarded = "discarded"
	OutcomeEvicted   = "evicted"
)

type entry[T any] struct {
	key  int
	item T
}

// minHeap orders entries by key only.
type minHeap[T any] []entry[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return h[i].key < h[j].key }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(entry[T]))
}

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Stats counts what happened to offered records.
type Stats struct {
	Seen      int // records offered
	Rejected  int // failed the validity predicate
	Discarded int // valid but lost to the heap, including evictions
}

// Selector retains the k records with the largest keys among valid ones.
// A record whose key ties the current minimum of a full selector is
// discarded, so earlier records win ties. Not safe for concurrent use.
type Selector[T any] struct {
	k     int
	key   func(T) int
	valid func(T) bool
	h     minHeap[T]
	stats Stats
}

// New creates a selector for the top k records by key. valid may be nil,
// in which case every record is valid. k <= 0 retains nothing.
func New[T any](k int, key func(T) int, valid func(T) bool) *Selector[T] {
	if k < 0 {
		k = 0
	}
	return &Selector[T]{
		k:     k,
		key:   key,
		valid: valid,
		h:     make(minHeap[T], 0, k),
	}
}

// Offer considers item and reports whether it is now retained.
func (s *Selector[T]) Offer(item T) bool {
	s.stats.Seen++

	if s.valid != nil && !s.valid(item) {
		s.stats.Rejected++
		rankRecordsTotal.WithLabelValues(OutcomeRejected).Inc()
		return false
	}

	if s.k == 0 {
		s.stats.Discarded++
		rankRecordsTotal.WithLabelValues(OutcomeDiscarded).Inc()
		return false
	}

	key := s.key(item)
	if len(s.h) < s.k {
		heap.Push(&s.h, entry[T]{key: key, item: item})
		rankRecordsTotal.WithLabelValues(OutcomeKept).Inc()
		return true
	}

	if key > s.h[0].key {
		s.h[0] = entry[T]{key: key, item: item}
		heap.Fix(&s.h, 0)
		s.stats.Discarded++
		rankRecordsTotal.WithLabelValues(OutcomeEvicted).Inc()
		rankRecordsTotal.WithLabelValues(OutcomeKept).Inc()
		return true
	}

	s.stats.Discarded++
	rankRecordsTotal.WithLabelValues(OutcomeDiscarded).Inc()
	return false
}

// Len returns the number of retained records.
func (s *Selector[T]) Len() int {
	return len(s.h)
}

// Stats returns the counters accumulated so far.
func (s *Selector[T]) Stats() Stats {
	return s.stats
}

// Sorted returns the retained records ordered by cmp. The selector is
// left unchanged.
func (s *Selector[T]) Sorted(cmp func(a, b T) int) []T {
	items := make([]T, 0, len(s.h))
	for _, e := range s.h {
		items = append(items, e.item)
	}
	slices.SortStableFunc(items, cmp)
	return items
}

// Select offers every record of seq to s and returns the retained records
// ordered by cmp. The first error from seq is returned with no records.
func Select[T any](s *Selector[T], seq iter.Seq2[T, error], cmp func(a, b T) int) ([]T, error) {
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		s.Offer(item)
	}
	return s.Sorted(cmp), nil
}
