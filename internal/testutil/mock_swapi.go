// Package testutil provides testing utilities for the SWAPI ETL.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock SWAPI endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSWAPI is a configurable mock SWAPI server for testing.
type MockSWAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	counts            map[string]int
	inflight          int
	maxInflight       int
}

// NewMockSWAPI creates a new mock SWAPI server.
func NewMockSWAPI() *MockSWAPI {
	mock := &MockSWAPI{
		handlers: make(map[string]http.HandlerFunc),
		counts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.counts[r.URL.RequestURI()]++
		mock.LastRequestHeader = r.Header.Clone()
		mock.inflight++
		if mock.inflight > mock.maxInflight {
			mock.maxInflight = mock.inflight
		}
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		// A request stops counting as in flight once its response starts,
		// since the client may release its slot right after reading it.
		tw := &trackingWriter{ResponseWriter: w, done: func() {
			mock.mu.Lock()
			mock.inflight--
			mock.mu.Unlock()
		}}
		defer tw.finish()

		if exists {
			handler(tw, r)
			return
		}
		notFound(tw)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockSWAPI) URL() string {
	return m.server.URL
}

// BaseURL returns the API root, the equivalent of https://swapi.dev/api/.
func (m *MockSWAPI) BaseURL() string {
	return m.server.URL + "/api/"
}

// Close shuts down the mock server.
func (m *MockSWAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockSWAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.counts = make(map[string]int)
	m.maxInflight = 0
}

// SetHandler sets a custom handler for a specific path.
func (m *MockSWAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockSWAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, r, resp)
	})
}

// SetSequence configures successive responses for a path. The last
// response repeats once the sequence is used up.
func (m *MockSWAPI) SetSequence(path string, resps ...MockResponse) {
	var mu sync.Mutex
	next := 0
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := resps[next]
		if next < len(resps)-1 {
			next++
		}
		mu.Unlock()
		writeResponse(w, r, resp)
	})
}

// SetSpecies serves a species record at /api/species/{id}/ and returns its URL.
func (m *MockSWAPI) SetSpecies(id int, name string) string {
	path := fmt.Sprintf("/api/species/%d/", id)
	body, _ := json.Marshal(map[string]any{
		"name":           name,
		"classification": "mammal",
		"url":            m.server.URL + path,
	})
	m.SetResponse(path, NewHealthyResponse(string(body)))
	return m.server.URL + path
}

// SpeciesURL returns the URL SetSpecies would serve id at.
func (m *MockSWAPI) SpeciesURL(id int) string {
	return fmt.Sprintf("%s/api/species/%d/", m.server.URL, id)
}

// SetPeople serves people (JSON records, see Person) as the paginated
// /api/people/ collection with pageSize records per page.
func (m *MockSWAPI) SetPeople(pageSize int, people ...string) {
	total := len(people)
	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}

	m.SetHandler("/api/people/", func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil || n < 1 || n > pages {
				notFound(w)
				return
			}
			page = n
		}

		start := (page - 1) * pageSize
		end := min(start+pageSize, total)

		link := func(n int) string {
			if n < 1 || n > pages {
				return "null"
			}
			return strconv.Quote(fmt.Sprintf("%s/api/people/?page=%d", m.server.URL, n))
		}

		body := fmt.Sprintf(`{"count": %d, "next": %s, "previous": %s, "results": [%s]}`,
			total, link(page+1), link(page-1), strings.Join(people[start:end], ","))
		writeResponse(w, r, NewHealthyResponse(body))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockSWAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockSWAPI) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// GetPathCount returns the number of requests for a path including its
// query, e.g. "/api/people/?page=2".
func (m *MockSWAPI) GetPathCount(requestURI string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[requestURI]
}

// MaxInflight returns the highest number of concurrently served requests.
func (m *MockSWAPI) MaxInflight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxInflight
}

// Person renders a people record. An empty height renders as "unknown".
func Person(name, height string, films int, speciesURLs ...string) string {
	if height == "" {
		height = "unknown"
	}
	filmURLs := make([]string, films)
	for i := range filmURLs {
		filmURLs[i] = fmt.Sprintf("https://swapi.dev/api/films/%d/", i+1)
	}
	if speciesURLs == nil {
		speciesURLs = []string{}
	}

	body, _ := json.Marshal(map[string]any{
		"name":       name,
		"height":     height,
		"mass":       "unknown",
		"hair_color": "brown",
		"skin_color": "fair",
		"eye_color":  "blue",
		"birth_year": "19BBY",
		"gender":     "n/a",
		"homeworld":  "https://swapi.dev/api/planets/1/",
		"films":      filmURLs,
		"species":    speciesURLs,
		"vehicles":   []string{},
		"starships":  []string{},
		"created":    "2014-12-09T13:50:51.644000Z",
		"edited":     "2014-12-20T21:17:56.891000Z",
		"url":        "https://swapi.dev/api/people/" + url.PathEscape(name) + "/",
	})
	return string(body)
}

type trackingWriter struct {
	http.ResponseWriter
	once sync.Once
	done func()
}

func (t *trackingWriter) finish() {
	t.once.Do(t.done)
}

func (t *trackingWriter) WriteHeader(code int) {
	t.finish()
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackingWriter) Write(b []byte) (int, error) {
	t.finish()
	return t.ResponseWriter.Write(b)
}

func writeResponse(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail": "Not found"}`))
}

// NewHealthyResponse creates a standard 200 OK JSON response.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"detail": "Not found"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
