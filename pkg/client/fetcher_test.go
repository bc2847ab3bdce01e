package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/swapi-etl/internal/testutil"
	"github.com/Sternrassler/swapi-etl/pkg/swapi"
)

// fakeGetter serves fixed bodies and counts calls per URL.
type fakeGetter struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
	delay  time.Duration
}

func newFakeGetter() *fakeGetter {
	return &fakeGetter{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (g *fakeGetter) Get(ctx context.Context, kind, url string) ([]byte, error) {
	g.mu.Lock()
	g.calls[url]++
	body, err := g.bodies[url], g.errs[url]
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if err != nil {
		return nil, err
	}
	return []byte(body), nil
}

func (g *fakeGetter) callCount(url string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[url]
}

const humanURL = "https://swapi.dev/api/species/1/"

func TestEntityFetcher_MemoizesSuccess(t *testing.T) {
	g := newFakeGetter()
	g.bodies[humanURL] = `{"name": "Human"}`

	f := NewEntityFetcher(g, "species", swapi.DecodeSpecies)

	for i := 0; i < 3; i++ {
		s, err := f.Fetch(context.Background(), humanURL)
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if s.Name != "Human" {
			t.Errorf("Name = %q, want Human", s.Name)
		}
	}

	if got := g.callCount(humanURL); got != 1 {
		t.Errorf("Get calls = %d, want 1", got)
	}
	if f.Requested() != 1 {
		t.Errorf("Requested() = %d, want 1", f.Requested())
	}
	if f.Kind() != "species" {
		t.Errorf("Kind() = %q, want species", f.Kind())
	}
}

func TestEntityFetcher_NormalizedURLsShareEntry(t *testing.T) {
	g := newFakeGetter()
	g.bodies[humanURL] = `{"name": "Human"}`

	f := NewEntityFetcher(g, "species", swapi.DecodeSpecies)

	for _, u := range []string{humanURL, "HTTPS://SWAPI.DEV/api/species/1/", humanURL + "#top"} {
		if _, err := f.Fetch(context.Background(), u); err != nil {
			t.Fatalf("Fetch(%q) error = %v", u, err)
		}
	}
	if got := g.callCount(humanURL); got != 1 {
		t.Errorf("Get calls = %d, want 1", got)
	}
}

func TestEntityFetcher_CoalescesConcurrentFetches(t *testing.T) {
	g := newFakeGetter()
	g.bodies[humanURL] = `{"name": "Human"}`
	g.delay = 30 * time.Millisecond

	f := NewEntityFetcher(g, "species", swapi.DecodeSpecies)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), humanURL); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Errorf("%d fetches failed", failures.Load())
	}
	if got := g.callCount(humanURL); got != 1 {
		t.Errorf("Get calls = %d, want 1", got)
	}
}

func TestEntityFetcher_ValidationError(t *testing.T) {
	g := newFakeGetter()
	g.bodies[humanURL] = `{"wrong_key": null}`

	f := NewEntityFetcher(g, "species", swapi.DecodeSpecies)

	_, err := f.Fetch(context.Background(), humanURL)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("Expected *ValidationError, got %T: %v", err, err)
	}
	if vErr.Kind != "species" {
		t.Errorf("Kind = %q, want species", vErr.Kind)
	}
	if string(vErr.Payload) != `{"wrong_key": null}` {
		t.Errorf("Payload = %s", vErr.Payload)
	}
	if !errors.Is(err, swapi.ErrMissingField) {
		t.Errorf("Expected wrapped ErrMissingField, got %v", err)
	}

	// Failure is memoized
	_, err2 := f.Fetch(context.Background(), humanURL)
	if !errors.As(err2, &vErr) {
		t.Errorf("Second Fetch() error = %v, want memoized *ValidationError", err2)
	}
	if got := g.callCount(humanURL); got != 1 {
		t.Errorf("Get calls = %d, want 1", got)
	}
}

func TestEntityFetcher_TransportErrorMemoized(t *testing.T) {
	g := newFakeGetter()
	cause := &FetchExhaustedError{URL: humanURL, Attempts: 3, Err: errors.New("connection refused")}
	g.errs[humanURL] = cause

	f := NewEntityFetcher(g, "species", swapi.DecodeSpecies)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), humanURL)
		if !errors.Is(err, ErrRetryExhausted) {
			t.Errorf("Fetch() error = %v, want ErrRetryExhausted", err)
		}
	}
	if got := g.callCount(humanURL); got != 1 {
		t.Errorf("Get calls = %d, want 1", got)
	}
}

func TestEntityFetcher_InvalidURL(t *testing.T) {
	f := NewEntityFetcher(newFakeGetter(), "species", swapi.DecodeSpecies)

	if _, err := f.Fetch(context.Background(), "/api/species/1/"); err == nil {
		t.Error("Expected error for relative URL")
	}
}

func TestEntityFetcher_WithClient(t *testing.T) {
	mock := testutil.NewMockSWAPI()
	defer mock.Close()
	url := mock.SetSpecies(3, "Wookie")

	c := newTestClient(t, testConfig())
	f := NewEntityFetcher(c, "species", swapi.DecodeSpecies)

	s, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if s.Name != "Wookie" {
		t.Errorf("Name = %q, want Wookie", s.Name)
	}
	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := mock.GetPathCount("/api/species/3/"); got != 1 {
		t.Errorf("requests for species/3 = %d, want 1", got)
	}
}

func TestEntityFetcher_TimedOutFetchNotMemoized(t *testing.T) {
	mock := testutil.NewMockSWAPI()
	defer mock.Close()
	url := mock.SpeciesURL(8)
	slow := testutil.NewHealthyResponse(`{"name": "Mon Calamari"}`)
	slow.Delay = 50 * time.Millisecond
	mock.SetResponse("/api/species/8/", slow)

	c := newTestClient(t, testConfig())
	f := NewEntityFetcher(c, "species", swapi.DecodeSpecies)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, err := f.Fetch(ctx, url); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch() error = %v, want context.DeadlineExceeded", err)
	}

	s, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("Fetch() with live context error = %v", err)
	}
	if s.Name != "Mon Calamari" {
		t.Errorf("Name = %q, want Mon Calamari", s.Name)
	}
	if got := mock.GetPathCount("/api/species/8/"); got != 2 {
		t.Errorf("requests for species/8 = %d, want 2", got)
	}
}
