// Package cache holds query results per resource kind with a TTL, serves stale entries
// while revalidating them, and collapses concurrent identical fetches into one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/sourcehub/internal/domain"
	"github.com/MrSnakeDoc/sourcehub/internal/logger"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 50

	// StaleFraction of an entry's TTL after which a hit triggers a background refresh.
	StaleFraction = 0.8
)

var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_cache_hits_total",
		Help: "Cache lookups answered from a live entry.",
	}, []string{"kind"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_cache_misses_total",
		Help: "Cache lookups that found no live entry.",
	}, []string{"kind"})
	cacheStaleRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_cache_stale_refreshes_total",
		Help: "Background refreshes started for stale entries.",
	}, []string{"kind"})
	cacheFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_cache_fetch_errors_total",
		Help: "Fetches that failed and left the cache untouched.",
	}, []string{"kind"})
	cacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sourcehub_cache_evictions_total",
		Help: "Entries dropped because the per-kind bound was reached.",
	}, []string{"kind"})
	cacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sourcehub_cache_entries",
		Help: "Entries currently held per kind.",
	}, []string{"kind"})
)

type entry struct {
	value     any
	storedAt  time.Time
	expiresAt time.Time
	teamID    string
}

func (e *entry) stale(now time.Time) bool {
	ttl := e.expiresAt.Sub(e.storedAt)
	return now.Sub(e.storedAt) > time.Duration(float64(ttl)*StaleFraction)
}

type counters struct {
	hits, misses, refreshes, fetchErrors atomic.Int64
}

// Options configure a Cache. Zero values take the defaults.
type Options struct {
	TTL        time.Duration
	MaxEntries int
	Clock      func() time.Time
	Logger     logger.Logger
}

// Cache is safe for concurrent use.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     logger.Logger

	mu     sync.Mutex
	stores map[domain.ResourceKind]*lru.Cache[string, *entry]

	// genMu orders invalidations against fetch results landing in the store. A fetch
	// only stores its result if the generation of its kind is unchanged since it began.
	genMu sync.Mutex
	gens  map[domain.ResourceKind]uint64

	group    singleflight.Group
	counters counters
}

// New creates an empty cache.
func New(opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Cache{
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Clock,
		logger:     opts.Logger.With(logger.Component("cache")),
		stores:     make(map[domain.ResourceKind]*lru.Cache[string, *entry]),
		gens:       make(map[domain.ResourceKind]uint64),
	}
}

// The store is only ever read with Peek, so recency is never refreshed and the bound
// evicts in insertion order.
func (c *Cache) store(kind domain.ResourceKind) *lru.Cache[string, *entry] {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stores[kind]
	if !ok {
		// only fails for a non-positive size, which New rules out
		s, _ = lru.New[string, *entry](c.maxEntries)
		c.stores[kind] = s
	}
	return s
}

type keyShape struct {
	Kind    domain.ResourceKind    `json:"kind"`
	Sources domain.SourceSelection `json:"sources"`
	Search  string                 `json:"search"`
	Tags    []string               `json:"tags"`
	TeamID  string                 `json:"teamId"`
	Page    int                    `json:"page"`
	Limit   int                    `json:"limit"`
}

// Key is the deterministic cache key of a query.
func Key(kind domain.ResourceKind, filters domain.Filters, params domain.ListParams) string {
	f := filters.Canonical()
	p := params.Normalize()
	b, err := json.Marshal(keyShape{
		Kind:    kind,
		Sources: f.Sources,
		Search:  f.Search,
		Tags:    f.Tags,
		TeamID:  f.TeamID,
		Page:    p.Page,
		Limit:   p.Limit,
	})
	if err != nil {
		// every field is a plain value; marshalling cannot fail
		panic(fmt.Sprintf("cache key: %v", err))
	}
	return string(b)
}

// lookup returns the live entry for key, dropping it when expired.
func (c *Cache) lookup(kind domain.ResourceKind, key string) (*entry, bool) {
	s := c.store(kind)
	e, ok := s.Peek(key)
	if ok && !c.now().Before(e.expiresAt) {
		s.Remove(key)
		cacheEntries.WithLabelValues(string(kind)).Set(float64(s.Len()))
		ok = false
	}
	if !ok {
		c.counters.misses.Add(1)
		cacheMissesTotal.WithLabelValues(string(kind)).Inc()
		return nil, false
	}
	c.counters.hits.Add(1)
	cacheHitsTotal.WithLabelValues(string(kind)).Inc()
	return e, true
}

// Get returns the cached value when an unexpired entry exists.
func (c *Cache) Get(kind domain.ResourceKind, filters domain.Filters, params domain.ListParams) (any, bool) {
	e, ok := c.lookup(kind, Key(kind, filters, params))
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Set inserts or replaces an entry. ttl <= 0 uses the default.
func (c *Cache) Set(kind domain.ResourceKind, filters domain.Filters, params domain.ListParams, value any, ttl time.Duration) {
	c.set(kind, Key(kind, filters, params), filters.TeamID, value, ttl)
}

func (c *Cache) set(kind domain.ResourceKind, key, teamID string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	s := c.store(kind)
	// Remove first so a replaced entry counts as newly inserted.
	s.Remove(key)
	if evicted := s.Add(key, &entry{value: value, storedAt: now, expiresAt: now.Add(ttl), teamID: teamID}); evicted {
		cacheEvictionsTotal.WithLabelValues(string(kind)).Inc()
	}
	cacheEntries.WithLabelValues(string(kind)).Set(float64(s.Len()))
}

func (c *Cache) generation(kind domain.ResourceKind) uint64 {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gens[kind]
}

// setIfCurrent stores value unless kind was invalidated after gen was read.
func (c *Cache) setIfCurrent(kind domain.ResourceKind, gen uint64, key, teamID string, value any, ttl time.Duration) bool {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	if c.gens[kind] != gen {
		return false
	}
	c.set(kind, key, teamID, value, ttl)
	return true
}

// FetchOptions tune one GetOrFetch call.
type FetchOptions struct {
	ForceRefresh bool
	TTL          time.Duration
}

// GetOrFetch returns the cached value for the query or runs fetch to produce it.
//
// A hit older than StaleFraction of its TTL is returned as is while one background
// refresh replaces it. On a miss, concurrent callers with the same key share a single
// fetch. fetch runs detached from ctx so an abandoned caller still fills the cache; ctx
// only bounds how long this caller waits. A failed fetch leaves any existing entry alone,
// and a fetch overtaken by an invalidation of its kind answers its waiters but is not stored.
func GetOrFetch[T any](
	ctx context.Context,
	c *Cache,
	kind domain.ResourceKind,
	filters domain.Filters,
	params domain.ListParams,
	fetch func(ctx context.Context) (T, error),
	opts FetchOptions,
) (T, error) {
	var zero T
	key := Key(kind, filters, params)
	detached := context.WithoutCancel(ctx)
	gen := c.generation(kind)
	// callers arriving after an invalidation never join a fetch that began before it
	flight := strconv.FormatUint(gen, 10) + "|" + key

	run := func() (any, error) {
		v, err := fetch(detached)
		if err != nil {
			c.counters.fetchErrors.Add(1)
			cacheFetchErrorsTotal.WithLabelValues(string(kind)).Inc()
			return nil, err
		}
		if !c.setIfCurrent(kind, gen, key, filters.TeamID, v, opts.TTL) {
			c.logger.Debug("dropping result invalidated while fetching", logger.String("kind", string(kind)))
		}
		return v, nil
	}

	if !opts.ForceRefresh {
		if e, ok := c.lookup(kind, key); ok {
			if v, ok := e.value.(T); ok {
				if e.stale(c.now()) {
					c.counters.refreshes.Add(1)
					cacheStaleRefreshesTotal.WithLabelValues(string(kind)).Inc()
					// joins any fetch already running for key
					_ = c.group.DoChan(flight, run)
				}
				return v, nil
			}
			c.logger.Warn("cached value has unexpected type, refetching",
				logger.String("kind", string(kind)),
				logger.String("type", fmt.Sprintf("%T", e.value)))
		}
	}

	ch := c.group.DoChan(flight, run)
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: fetch for %s shared with a different result type %T", kind, res.Val)
		}
		return v, nil
	}
}

// Invalidate drops every entry of kind, including results of fetches still running.
func (c *Cache) Invalidate(kind domain.ResourceKind) {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.gens[kind]++
	s := c.store(kind)
	s.Purge()
	cacheEntries.WithLabelValues(string(kind)).Set(0)
}

// InvalidateAll drops every entry.
func (c *Cache) InvalidateAll() {
	for _, k := range domain.ResourceKinds {
		c.Invalidate(k)
	}
}

// InvalidateTeam drops every entry stored for a query scoped to teamID and returns how
// many were dropped. Fetches in flight for any kind are not stored, since their team
// scope is only known once they land.
func (c *Cache) InvalidateTeam(teamID string) int {
	if teamID == "" {
		return 0
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	for _, k := range domain.ResourceKinds {
		c.gens[k]++
	}

	c.mu.Lock()
	stores := make(map[domain.ResourceKind]*lru.Cache[string, *entry], len(c.stores))
	for k, s := range c.stores {
		stores[k] = s
	}
	c.mu.Unlock()

	removed := 0
	for kind, s := range stores {
		for _, key := range s.Keys() {
			if e, ok := s.Peek(key); ok && e.teamID == teamID {
				if s.Remove(key) {
					removed++
				}
			}
		}
		cacheEntries.WithLabelValues(string(kind)).Set(float64(s.Len()))
	}
	return removed
}

// Stats is a point-in-time view of the cache.
type Stats struct {
	Entries          map[domain.ResourceKind]int `json:"entries"`
	Hits             int64                       `json:"hits"`
	Misses           int64                       `json:"misses"`
	StaleRefreshes   int64                       `json:"staleRefreshes"`
	FetchErrors      int64                       `json:"fetchErrors"`
	TTLSeconds       float64                     `json:"ttlSeconds"`
	MaxEntriesByKind int                         `json:"maxEntriesPerKind"`
}

// Stats returns current counters and entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := make(map[domain.ResourceKind]int, len(c.stores))
	for k, s := range c.stores {
		entries[k] = s.Len()
	}
	c.mu.Unlock()

	return Stats{
		Entries:          entries,
		Hits:             c.counters.hits.Load(),
		Misses:           c.counters.misses.Load(),
		StaleRefreshes:   c.counters.refreshes.Load(),
		FetchErrors:      c.counters.fetchErrors.Load(),
		TTLSeconds:       c.ttl.Seconds(),
		MaxEntriesByKind: c.maxEntries,
	}
}
