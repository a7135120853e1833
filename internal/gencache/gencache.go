// Package gencache is the content-addressed generation cache.
//
// Keys are SHA-256 digests over (normalized input, artifact type, language),
// so equal logical requests map to the same entry regardless of call site.
// Concurrent misses for one key collapse into a single factory invocation;
// duplicate external model calls for the same key are a correctness bug here,
// not a performance concern.
//
// Storage is two-tier: a process-local map in front of an optional shared
// store (PostgreSQL, see postgres.go). The single-flight guarantee only holds
// per process; scaling to multiple instances needs a shared lease keyed by
// the cache key before duplicate model calls become impossible.
package gencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrNotFound indicates the shared store has no entry for the key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrCorrupted indicates a stored value could not be decoded. Callers
	// treat it as a miss, never as a fatal error.
	ErrCorrupted = errors.New("cache entry corrupted")
)

// Key derives the content address for one generation request. The zero-byte
// separator keeps ("ab","c") and ("a","bc") from colliding.
func Key(normalizedInput, artifactType, language string) string {
	h := sha256.New()
	h.Write([]byte(normalizedInput))
	h.Write([]byte{0})
	h.Write([]byte(artifactType))
	h.Write([]byte{0})
	h.Write([]byte(language))
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is one cached generation result.
type Entry struct {
	Content   string
	Meta      Meta
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Meta carries the request attributes stored alongside the content.
type Meta struct {
	ArtifactType string
	Language     string
	ModelName    string
}

// Factory produces the content for a key on a miss. It runs at most once per
// key at a time; the context belongs to the caller that initiated the flight.
type Factory func(ctx context.Context) (string, error)

// SharedStore is the optional backing tier shared between processes.
type SharedStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry Entry) error
}

// Cache is an injected, process-scoped cache service. The zero value is not
// usable; construct with New.
//
// Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	shared SharedStore
	logger *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	local map[string]Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock injects a time source. Tests use this for TTL control.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithSharedStore attaches a shared backing tier.
func WithSharedStore(s SharedStore) Option {
	return func(c *Cache) { c.shared = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a Cache with the given entry TTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
		local:  make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCreate returns the cached content for key, invoking factory on a miss.
// hit reports whether the content came from the cache without a factory call
// by this caller.
//
// Expired entries are misses. Corrupted shared entries are misses. When the
// caller's context is cancelled while waiting on another caller's flight, the
// flight is forgotten so remaining waiters are not starved by a doomed call.
func (c *Cache) GetOrCreate(ctx context.Context, key string, meta Meta, factory Factory) (content string, hit bool, err error) {
	if entry, ok := c.lookupLocal(key); ok {
		return entry.Content, true, nil
	}

	type result struct {
		content string
		hit     bool
	}

	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have populated the local tier between the
		// miss above and this function running.
		if entry, ok := c.lookupLocal(key); ok {
			return result{entry.Content, true}, nil
		}

		if entry, ok := c.lookupShared(ctx, key); ok {
			c.storeLocal(key, entry)
			return result{entry.Content, true}, nil
		}

		generated, ferr := factory(ctx)
		if ferr != nil {
			return nil, ferr
		}

		entry := c.makeEntry(generated, meta)
		c.storeLocal(key, entry)
		c.storeShared(ctx, key, entry)
		return result{generated, false}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		// hit is false for every caller of a flight that ran the factory,
		// including waiters that merely shared it.
		r := res.Val.(result)
		return r.content, r.hit, nil
	case <-ctx.Done():
		// Release the slot: if the flight's initiator was cancelled the
		// call is doomed, and new callers must be able to retry.
		c.group.Forget(key)
		return "", false, ctx.Err()
	}
}

// Peek returns the cached entry without triggering generation.
func (c *Cache) Peek(ctx context.Context, key string) (*Entry, bool) {
	if entry, ok := c.lookupLocal(key); ok {
		return &entry, true
	}
	if entry, ok := c.lookupShared(ctx, key); ok {
		c.storeLocal(key, entry)
		return &entry, true
	}
	return nil, false
}

// Sweep drops expired local entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.local {
		if !now.Before(e.ExpiresAt) {
			delete(c.local, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) makeEntry(content string, meta Meta) Entry {
	now := c.now()
	return Entry{
		Content:   content,
		Meta:      meta,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
}

func (c *Cache) lookupLocal(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.local[key]
	if !ok {
		return Entry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.local, key)
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) storeLocal(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[key] = entry
}

// lookupShared consults the backing tier. Every failure mode degrades to a
// miss: not-found, corruption, and transport errors all mean "regenerate".
func (c *Cache) lookupShared(ctx context.Context, key string) (Entry, bool) {
	if c.shared == nil {
		return Entry{}, false
	}
	entry, err := c.shared.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCorrupted) {
			c.logger.Warn("corrupted cache entry, treating as miss", "key", key, "error", err)
		} else if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("shared cache read failed", "key", key, "error", err)
		}
		return Entry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		return Entry{}, false
	}
	return *entry, true
}

// storeShared writes through to the backing tier, best-effort. A failed write
// costs a future regeneration, never correctness.
func (c *Cache) storeShared(ctx context.Context, key string, entry Entry) {
	if c.shared == nil {
		return
	}
	if err := c.shared.Put(ctx, key, entry); err != nil {
		c.logger.Warn("shared cache write failed", "key", key, "error", err)
	}
}

// String describes the cache for debug logging.
func (c *Cache) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("gencache.Cache{entries: %d, ttl: %s, shared: %t}", len(c.local), c.ttl, c.shared != nil)
}
