// Package cache implements the fast tier: named pools of TTL-bound entries
// with independent sizing per data category. A hit bypasses every lower
// resolution tier; entries are never invalidated by durable-store writes,
// staleness up to the TTL is accepted.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   any
	addedAt time.Time
	expires time.Time
}

// Stats is a point-in-time snapshot of a pool's counters.
type Stats struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// Pool is one named cache with its own TTL and capacity.
type Pool struct {
	name       string
	ttl        time.Duration
	maxEntries int

	mu      sync.RWMutex
	entries map[string]entry
	hits    int64
	misses  int64

	nowFunc func() time.Time
}

// NewPool creates a pool. maxEntries <= 0 means unbounded.
func NewPool(name string, ttl time.Duration, maxEntries int) *Pool {
	return &Pool{
		name:       name,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]entry),
		nowFunc:    time.Now,
	}
}

// TTL returns the pool's time-to-live.
func (p *Pool) TTL() time.Duration { return p.ttl }

func (p *Pool) get(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if ok && p.nowFunc().Before(e.expires) {
		p.hits++
		return e.value, true
	}
	p.misses++
	if ok {
		delete(p.entries, key)
	}
	return nil, false
}

func (p *Pool) put(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFunc()
	if p.maxEntries > 0 && len(p.entries) >= p.maxEntries {
		if _, exists := p.entries[key]; !exists {
			p.evictOldestLocked()
		}
	}
	p.entries[key] = entry{value: value, addedAt: now, expires: now.Add(p.ttl)}
}

// evictOldestLocked removes the entry with the earliest insertion time.
// Expired entries are preferred victims.
func (p *Pool) evictOldestLocked() {
	now := p.nowFunc()
	var victim string
	var oldest time.Time
	first := true
	for k, e := range p.entries {
		if now.After(e.expires) {
			victim = k
			break
		}
		if first || e.addedAt.Before(oldest) {
			victim = k
			oldest = e.addedAt
			first = false
		}
	}
	if victim != "" {
		delete(p.entries, victim)
	}
}

// Clear drops every entry in the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]entry)
}

// Stats returns the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{Name: p.name, Entries: len(p.entries), Hits: p.hits, Misses: p.misses}
}

// GetOrCompute returns the cached value for key, or runs fn and stores the
// result. Errors from fn are never cached.
func GetOrCompute[T any](ctx context.Context, p *Pool, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := p.get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	val, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	p.put(key, val)
	return val, nil
}

// Pools is the registry of category-assigned cache pools.
type Pools struct {
	Curves     *Pool // daily-refresh term structures, long TTL
	TimeSeries *Pool // history does not change, longest TTL
	Reference  *Pool // everything else, short default TTL
}

// Config sizes the pools. Zero values fall back to the defaults used by
// NewPools.
type Config struct {
	CurveTTL          time.Duration
	CurveMaxEntries   int
	TimeSeriesTTL     time.Duration
	TimeSeriesMax     int
	DefaultTTL        time.Duration
	DefaultMaxEntries int
}

// NewPools builds the three pools with category-specific TTLs.
func NewPools(cfg Config) *Pools {
	if cfg.CurveTTL <= 0 {
		cfg.CurveTTL = 24 * time.Hour
	}
	if cfg.CurveMaxEntries <= 0 {
		cfg.CurveMaxEntries = 500
	}
	if cfg.TimeSeriesTTL <= 0 {
		cfg.TimeSeriesTTL = 72 * time.Hour
	}
	if cfg.TimeSeriesMax <= 0 {
		cfg.TimeSeriesMax = 1000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 4 * time.Hour
	}
	if cfg.DefaultMaxEntries <= 0 {
		cfg.DefaultMaxEntries = 1000
	}
	return &Pools{
		Curves:     NewPool("yield_curves", cfg.CurveTTL, cfg.CurveMaxEntries),
		TimeSeries: NewPool("yield_timeseries", cfg.TimeSeriesTTL, cfg.TimeSeriesMax),
		Reference:  NewPool("reference", cfg.DefaultTTL, cfg.DefaultMaxEntries),
	}
}

// ClearAll empties every pool.
func (p *Pools) ClearAll() {
	p.Curves.Clear()
	p.TimeSeries.Clear()
	p.Reference.Clear()
}

// Stats returns counters for every pool.
func (p *Pools) Stats() []Stats {
	return []Stats{p.Curves.Stats(), p.TimeSeries.Stats(), p.Reference.Stats()}
}
