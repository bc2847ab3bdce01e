package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks completed entries served from memory
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_cache_hits_total",
			Help: "Total number of fetch cache hits",
		},
		[]string{"kind"},
	)

	// CacheMisses tracks keys fetched for the first time
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_cache_misses_total",
			Help: "Total number of fetch cache misses",
		},
		[]string{"kind"},
	)

	// CacheCoalesced tracks callers that waited on an in-flight fetch
	CacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapi_cache_coalesced_total",
			Help: "Total number of requests coalesced onto an in-flight fetch",
		},
		[]string{"kind"},
	)
)
