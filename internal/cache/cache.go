// Package cache memoizes expensive enrichment results by content hash. The
// first tier is the hash slot stored on the listing's own analysis record;
// the second is a shared backend keyed by the same hash.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

type Result string

const (
	RecordHit Result = "record_hit"
	SharedHit Result = "shared_hit"
	Miss      Result = "miss"
	// Uncached is a computed result that Keep rejected. It was returned
	// but not stored, so callers must not record its hash either.
	Uncached Result = "uncached"
)

// Backend is a shared byte store with expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Observer is told the outcome of every lookup.
type Observer interface {
	CacheLookup(cache string, result string)
}

// Cache is a get-or-compute cache for one kind of result.
type Cache[T any] struct {
	name     string
	shared   Backend
	ttl      time.Duration
	observer Observer
	keep     func(*T) bool
}

// New returns a cache named name. shared and observer may be nil.
func New[T any](name string, shared Backend, ttl time.Duration, observer Observer) *Cache[T] {
	return &Cache[T]{name: name, shared: shared, ttl: ttl, observer: observer}
}

// Keep limits which computed results are stored. Results for which fn
// returns false are handed back as Uncached and never written to the shared
// backend.
func (c *Cache[T]) Keep(fn func(*T) bool) *Cache[T] {
	c.keep = fn
	return c
}

// Slot is the previous result stored on the record and the hash it was
// computed from.
type Slot[T any] struct {
	Value *T
	Hash  string
}

// GetOrCompute returns the stored value when its hash matches, then tries the
// shared backend, and only then calls compute. Shared backend failures are
// logged and treated as misses.
func (c *Cache[T]) GetOrCompute(ctx context.Context, hash string, slot Slot[T], compute func(ctx context.Context) (*T, error)) (*T, Result, error) {
	if slot.Value != nil && slot.Hash == hash {
		c.observe(RecordHit)
		return slot.Value, RecordHit, nil
	}

	key := c.name + ":" + hash
	if c.shared != nil {
		raw, ok, err := c.shared.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("cache: shared lookup failed", "cache", c.name, "error", err)
		case ok:
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				c.observe(SharedHit)
				return &v, SharedHit, nil
			}
			slog.Warn("cache: discarding undecodable shared entry", "cache", c.name, "key", key)
		}
	}

	v, err := compute(ctx)
	if err != nil {
		return nil, Miss, err
	}
	c.observe(Miss)
	if v == nil || (c.keep != nil && !c.keep(v)) {
		return v, Uncached, nil
	}
	if c.shared != nil {
		raw, err := json.Marshal(v)
		if err == nil {
			err = c.shared.Set(ctx, key, raw, c.ttl)
		}
		if err != nil {
			slog.Warn("cache: shared store failed", "cache", c.name, "error", err)
		}
	}
	return v, Miss, nil
}

func (c *Cache[T]) observe(r Result) {
	if c.observer != nil {
		c.observer.CacheLookup(c.name, string(r))
	}
}
