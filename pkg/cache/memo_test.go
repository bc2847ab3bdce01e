package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func mustKey(t *testing.T, raw string) CacheKey {
	t.Helper()
	key, err := NewKey("test", raw)
	if err != nil {
		t.Fatalf("NewKey(%q) error = %v", raw, err)
	}
	return key
}

func TestMemo_Sequential(t *testing.T) {
	memo := NewMemo[string]("test")
	key := mustKey(t, "https://swapi.dev/api/species/1/")
	ctx := context.Background()

	calls := 0
	fn := func() (string, error) {
		calls++
		return "Human", nil
	}

	for i := 0; i < 3; i++ {
		got, err := memo.Do(ctx, key, fn)
		if err != nil {
			t.Fatalf("Do() error = %v", err)
		}
		if got != "Human" {
			t.Errorf("Do() = %q, want %q", got, "Human")
		}
	}

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
	if memo.Len() != 1 {
		t.Errorf("Len() = %d, want 1", memo.Len())
	}
}

func TestMemo_ConcurrentCoalescing(t *testing.T) {
	memo := NewMemo[int]("test")
	key := mustKey(t, "https://swapi.dev/api/species/2/")
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func() (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 50
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := memo.Do(ctx, key, fn)
			if err != nil {
				t.Errorf("Do() error = %v", err)
			}
			results[i] = v
		}(i)
	}

	// Give every goroutine a chance to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("fn called %d times, want 1", got)
	}
	for i, v := range results {
		if v != 42 {
			t.Errorf("results[%d] = %d, want 42", i, v)
		}
	}
}

func TestMemo_ErrorIsMemoized(t *testing.T) {
	memo := NewMemo[string]("test")
	key := mustKey(t, "https://swapi.dev/api/species/3/")
	ctx := context.Background()

	wantErr := errors.New("boom")
	calls := 0
	fn := func() (string, error) {
		calls++
		return "", wantErr
	}

	for i := 0; i < 2; i++ {
		if _, err := memo.Do(ctx, key, fn); !errors.Is(err, wantErr) {
			t.Errorf("Do() error = %v, want %v", err, wantErr)
		}
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestMemo_EquivalentURLsShareEntry(t *testing.T) {
	memo := NewMemo[string]("test")
	ctx := context.Background()

	calls := 0
	fn := func() (string, error) {
		calls++
		return "page", nil
	}

	memo.Do(ctx, mustKey(t, "https://swapi.dev/api/people/?page=2&x=1"), fn)
	memo.Do(ctx, mustKey(t, "https://SWAPI.dev/api/people/?x=1&page=2"), fn)

	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestMemo_WaiterContextCancelled(t *testing.T) {
	memo := NewMemo[string]("test")
	key := mustKey(t, "https://swapi.dev/api/species/4/")

	release := make(chan struct{})
	started := make(chan struct{})
	go memo.Do(context.Background(), key, func() (string, error) {
		close(started)
		<-release
		return "Wookie", nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := memo.Do(ctx, key, func() (string, error) {
		t.Error("fn must not run for a coalesced caller")
		return "", nil
	}); !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}

	close(release)
	got, err := memo.Do(context.Background(), key, func() (string, error) { return "", nil })
	if err != nil || got != "Wookie" {
		t.Errorf("Do() = %q, %v, want %q, nil", got, err, "Wookie")
	}
}

func TestMemo_CancelledFetchNotMemoized(t *testing.T) {
	memo := NewMemo[string]("test")
	key := mustKey(t, "https://swapi.dev/api/species/5/")

	ctx, cancel := context.WithCancel(context.Background())
	_, err := memo.Do(ctx, key, func() (string, error) {
		cancel()
		return "", ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do() error = %v, want context.Canceled", err)
	}
	if memo.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after a cancelled fetch", memo.Len())
	}

	got, err := memo.Do(context.Background(), key, func() (string, error) {
		return "Rodian", nil
	})
	if err != nil || got != "Rodian" {
		t.Errorf("Do() = %q, %v, want %q, nil", got, err, "Rodian")
	}
}

func TestMemo_WaiterRefetchesAfterOwnerCancelled(t *testing.T) {
	memo := NewMemo[string]("test")
	key := mustKey(t, "https://swapi.dev/api/species/6/")

	ownerCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	ownerDone := make(chan error, 1)
	go func() {
		_, err := memo.Do(ownerCtx, key, func() (string, error) {
			close(started)
			<-ownerCtx.Done()
			return "", ownerCtx.Err()
		})
		ownerDone <- err
	}()
	<-started

	var calls atomic.Int32
	waiterDone := make(chan struct{})
	var got string
	var err error
	go func() {
		defer close(waiterDone)
		got, err = memo.Do(context.Background(), key, func() (string, error) {
			calls.Add(1)
			return "Twi'lek", nil
		})
	}()

	// let the waiter join the in-flight call
	time.Sleep(10 * time.Millisecond)
	cancel()

	if ownerErr := <-ownerDone; !errors.Is(ownerErr, context.Canceled) {
		t.Errorf("owner error = %v, want context.Canceled", ownerErr)
	}
	<-waiterDone

	if err != nil || got != "Twi'lek" {
		t.Errorf("waiter Do() = %q, %v, want %q, nil", got, err, "Twi'lek")
	}
	if calls.Load() != 1 {
		t.Errorf("waiter fn called %d times, want 1", calls.Load())
	}
}

func TestMemo_FailureWithLiveContextMemoized(t *testing.T) {
	memo := NewMemo[string]("test")
	key := mustKey(t, "https://swapi.dev/api/species/7/")

	// a deadline error reported by fn while the caller's ctx is live is an
	// upstream timeout, not a cancellation
	calls := 0
	fn := func() (string, error) {
		calls++
		return "", context.DeadlineExceeded
	}
	for i := 0; i < 2; i++ {
		memo.Do(context.Background(), key, fn)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
