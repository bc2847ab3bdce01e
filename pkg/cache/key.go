package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// CacheKey identifies one upstream resource.
type CacheKey struct {
	// Kind is the resource kind (e.g. "people", "species")
	Kind string

	u *url.URL
}

// NewKey normalizes rawURL into a CacheKey. The URL must be absolute.
func NewKey(kind, rawURL string) (CacheKey, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return CacheKey{}, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return CacheKey{}, fmt.Errorf("url %q is not absolute", rawURL)
	}

	n := *u
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	n.Fragment = ""
	n.RawFragment = ""
	n.RawQuery = n.Query().Encode() // Encode sorts by key

	return CacheKey{Kind: kind, u: &n}, nil
}

// URL returns the normalized URL.
func (k CacheKey) URL() string {
	if k.u == nil {
		return ""
	}
	return k.u.String()
}

// String generates a deterministic cache key string.
// Format: swapi:kind:normalized-url
//
// Example:
//
//	swapi:people:https://swapi.dev/api/people/?page=2
func (k CacheKey) String() string {
	parts := []string{"swapi"}
	if k.Kind != "" {
		parts = append(parts, k.Kind)
	}
	parts = append(parts, k.URL())
	return strings.Join(parts, ":")
}
