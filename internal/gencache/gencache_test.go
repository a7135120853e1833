package gencache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock is a mutable time source for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// memStore is an in-memory SharedStore with injectable failures.
type memStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]Entry)}
}

func (m *memStore) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memStore) Put(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func TestKeyStability(t *testing.T) {
	a := Key("input", "openapi_spec", "csharp")
	b := Key("input", "openapi_spec", "csharp")
	if a != b {
		t.Error("identical triples produced different keys")
	}
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(a))
	}

	// Field boundaries must matter.
	if Key("ab", "c", "") == Key("a", "bc", "") {
		t.Error("field concatenation is ambiguous")
	}
	if Key("input", "openapi_spec", "csharp") == Key("input", "openapi_spec", "typescript") {
		t.Error("language does not affect key")
	}
}

func TestGetOrCreateHitAndMiss(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, WithClock(clock.Now))

	calls := 0
	factory := func(ctx context.Context) (string, error) {
		calls++
		return "generated", nil
	}

	key := Key("src", "usage_guide", "csharp")

	content, hit, err := c.GetOrCreate(context.Background(), key, Meta{}, factory)
	if err != nil || hit || content != "generated" {
		t.Fatalf("first call: content=%q hit=%t err=%v", content, hit, err)
	}

	content, hit, err = c.GetOrCreate(context.Background(), key, Meta{}, factory)
	if err != nil || !hit || content != "generated" {
		t.Fatalf("second call: content=%q hit=%t err=%v", content, hit, err)
	}
	if calls != 1 {
		t.Errorf("factory ran %d times, want 1", calls)
	}
}

func TestExpiryIsAMiss(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Hour, WithClock(clock.Now))

	calls := 0
	factory := func(ctx context.Context) (string, error) {
		calls++
		return "v", nil
	}
	key := Key("src", "er_diagram", "sql")

	if _, _, err := c.GetOrCreate(context.Background(), key, Meta{}, factory); err != nil {
		t.Fatal(err)
	}

	clock.Advance(59 * time.Minute)
	if _, hit, _ := c.GetOrCreate(context.Background(), key, Meta{}, factory); !hit {
		t.Error("unexpired entry not served")
	}

	clock.Advance(2 * time.Minute)
	if _, hit, _ := c.GetOrCreate(context.Background(), key, Meta{}, factory); hit {
		t.Error("expired entry served as hit")
	}
	if calls != 2 {
		t.Errorf("factory ran %d times, want 2", calls)
	}
}

func TestSingleFlight(t *testing.T) {
	c := New(time.Hour)

	var calls atomic.Int32
	release := make(chan struct{})
	factory := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "once", nil
	}

	key := Key("same input", "typescript_sdk", "csharp")
	const workers = 16

	var wg sync.WaitGroup
	results := make([]string, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCreate(context.Background(), key, Meta{}, factory)
		}()
	}

	// Let the goroutines pile onto the flight, then release it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("factory ran %d times under concurrency, want 1", got)
	}
	for i := range workers {
		if errs[i] != nil {
			t.Errorf("worker %d: %v", i, errs[i])
		}
		if results[i] != "once" {
			t.Errorf("worker %d got %q, want identical output", i, results[i])
		}
	}
}

func TestCancellationReleasesFlight(t *testing.T) {
	c := New(time.Hour)

	started := make(chan struct{})
	factory := func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}

	key := Key("doomed", "usage_guide", "sql")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCreate(ctx, key, Meta{}, factory)
		done <- err
	}()

	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v, want context.Canceled", err)
	}

	// The slot must be free: a fresh caller retries and succeeds.
	content, _, err := c.GetOrCreate(context.Background(), key, Meta{}, func(ctx context.Context) (string, error) {
		return "retried", nil
	})
	if err != nil || content != "retried" {
		t.Errorf("retry after cancellation: content=%q err=%v", content, err)
	}
}

func TestFactoryErrorNotCached(t *testing.T) {
	c := New(time.Hour)
	key := Key("flaky", "data_dictionary", "sql")

	boom := errors.New("model down")
	if _, _, err := c.GetOrCreate(context.Background(), key, Meta{}, func(ctx context.Context) (string, error) {
		return "", boom
	}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want factory error", err)
	}

	content, hit, err := c.GetOrCreate(context.Background(), key, Meta{}, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	if err != nil || hit || content != "recovered" {
		t.Errorf("after factory error: content=%q hit=%t err=%v", content, hit, err)
	}
}

func TestSharedTier(t *testing.T) {
	clock := newFakeClock()
	shared := newMemStore()

	// First process populates both tiers.
	c1 := New(time.Hour, WithClock(clock.Now), WithSharedStore(shared))
	key := Key("src", "openapi_spec", "csharp")
	if _, _, err := c1.GetOrCreate(context.Background(), key, Meta{ArtifactType: "openapi_spec"}, func(ctx context.Context) (string, error) {
		return "spec", nil
	}); err != nil {
		t.Fatal(err)
	}

	// Second process has a cold local tier but hits the shared one.
	c2 := New(time.Hour, WithClock(clock.Now), WithSharedStore(shared))
	content, hit, err := c2.GetOrCreate(context.Background(), key, Meta{}, func(ctx context.Context) (string, error) {
		t.Error("factory ran despite shared hit")
		return "", nil
	})
	if err != nil || !hit || content != "spec" {
		t.Fatalf("shared hit: content=%q hit=%t err=%v", content, hit, err)
	}
}

func TestCorruptionIsAMiss(t *testing.T) {
	shared := newMemStore()
	shared.getErr = ErrCorrupted

	c := New(time.Hour, WithSharedStore(shared))
	content, hit, err := c.GetOrCreate(context.Background(), Key("x", "usage_guide", ""), Meta{}, func(ctx context.Context) (string, error) {
		return "regenerated", nil
	})
	if err != nil || hit || content != "regenerated" {
		t.Errorf("corruption must degrade to a miss: content=%q hit=%t err=%v", content, hit, err)
	}
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	c := New(time.Minute, WithClock(clock.Now))

	for _, k := range []string{"a", "b", "c"} {
		if _, _, err := c.GetOrCreate(context.Background(), k, Meta{}, func(ctx context.Context) (string, error) {
			return "v", nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	clock.Advance(2 * time.Minute)
	if removed := c.Sweep(); removed != 3 {
		t.Errorf("Sweep removed %d entries, want 3", removed)
	}
	if removed := c.Sweep(); removed != 0 {
		t.Errorf("second Sweep removed %d entries, want 0", removed)
	}
}
