package price

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/metrics"
)

// DefaultCurrentTTL is how long a current price stays fresh
const DefaultCurrentTTL = 10 * time.Minute

// Lookup kinds, used as metric labels and key prefixes
const (
	KindDaily   = "daily"
	KindAt      = "at"
	KindCurrent = "current"
)

// Store is an optional second-level cache shared across processes.
// A ttl of zero means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, price decimal.Decimal, ttl time.Duration) error
}

// Stats counts cache outcomes. Misses equals the number of upstream calls.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Shared int64 `json:"shared"`
}

type currentEntry struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// Cache memoises oracle answers. Historical entries are immutable once set;
// current prices expire after the TTL. Concurrent lookups of one key share
// a single upstream call.
type Cache struct {
	oracle Oracle
	store  Store
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	fixed   map[string]decimal.Decimal
	current map[string]currentEntry

	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	shared atomic.Int64
}

// CacheOption configures a Cache
type CacheOption func(*Cache)

// WithStore adds a second-level store
func WithStore(s Store) CacheOption {
	return func(c *Cache) { c.store = s }
}

// WithCurrentTTL overrides DefaultCurrentTTL
func WithCurrentTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache in front of oracle
func NewCache(oracle Oracle, opts ...CacheOption) *Cache {
	c := &Cache{
		oracle:  oracle,
		ttl:     DefaultCurrentTTL,
		now:     time.Now,
		fixed:   make(map[string]decimal.Decimal),
		current: make(map[string]currentEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the cache key of a lookup
func Key(kind, asset string, t time.Time) string {
	switch kind {
	case KindDaily:
		return kind + ":" + asset + ":" + DayStart(t).Format("2006-01-02")
	case KindAt:
		return kind + ":" + asset + ":" + strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return kind + ":" + asset
	}
}

// Daily returns the price of asset for the UTC day containing t.
// The oracle is asked for midnight of that day.
func (c *Cache) Daily(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	day := DayStart(t)
	return c.fixedLookup(ctx, KindDaily, Key(KindDaily, asset, day), func(ctx context.Context) (decimal.Decimal, error) {
		return c.oracle.PriceAt(ctx, asset, day)
	})
}

// At returns the price of asset at the exact millisecond of t
func (c *Cache) At(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	return c.fixedLookup(ctx, KindAt, Key(KindAt, asset, t), func(ctx context.Context) (decimal.Decimal, error) {
		return c.oracle.PriceAt(ctx, asset, t)
	})
}

// Current returns the spot price of asset, refetching once the TTL elapsed
func (c *Cache) Current(ctx context.Context, asset string) (decimal.Decimal, error) {
	key := Key(KindCurrent, asset, time.Time{})

	if p, ok := c.freshCurrent(key); ok {
		c.hit(KindCurrent)
		return p, nil
	}

	return c.coalesce(ctx, KindCurrent, key, func(ctx context.Context) (decimal.Decimal, error) {
		if p, ok := c.freshCurrent(key); ok {
			c.hit(KindCurrent)
			return p, nil
		}
		if p, ok := c.storeGet(ctx, key); ok {
			c.setCurrent(key, p)
			c.hit(KindCurrent)
			return p, nil
		}

		c.miss(KindCurrent)
		p, err := c.oracle.CurrentPrice(ctx, asset)
		if err != nil {
			return decimal.Zero, err
		}
		c.setCurrent(key, p)
		c.storeSet(ctx, key, p, c.ttl)
		return p, nil
	})
}

func (c *Cache) fixedLookup(ctx context.Context, kind, key string, fetch func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	if p, ok := c.getFixed(key); ok {
		c.hit(kind)
		return p, nil
	}

	return c.coalesce(ctx, kind, key, func(ctx context.Context) (decimal.Decimal, error) {
		if p, ok := c.getFixed(key); ok {
			c.hit(kind)
			return p, nil
		}
		if p, ok := c.storeGet(ctx, key); ok {
			c.setFixed(key, p)
			c.hit(kind)
			return p, nil
		}

		c.miss(kind)
		p, err := fetch(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		c.setFixed(key, p)
		c.storeSet(ctx, key, p, 0)
		return p, nil
	})
}

// coalesce runs fn once per key across concurrent callers. fn gets a context
// detached from the caller's cancellation and is bounded by the upstream HTTP
// timeout. Each caller stops waiting when its own ctx is done.
func (c *Cache) coalesce(ctx context.Context, kind, key string, fn func(context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	var executed atomic.Bool
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		executed.Store(true)
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	case res := <-ch:
		if !executed.Load() {
			c.share(kind)
		}
		if res.Err != nil {
			return decimal.Zero, res.Err
		}
		return res.Val.(decimal.Decimal), nil
	}
}

func (c *Cache) getFixed(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.fixed[key]
	return p, ok
}

// setFixed keeps the first value written; historical prices never change
func (c *Cache) setFixed(key string, p decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.fixed[key]; !exists {
		c.fixed[key] = p
	}
}

func (c *Cache) freshCurrent(key string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.current[key]
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return decimal.Zero, false
	}
	return e.price, true
}

func (c *Cache) setCurrent(key string, p decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current[key] = currentEntry{price: p, fetchedAt: c.now()}
}

func (c *Cache) storeGet(ctx context.Context, key string) (decimal.Decimal, bool) {
	if c.store == nil {
		return decimal.Zero, false
	}
	p, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("price store read failed")
		return decimal.Zero, false
	}
	return p, ok
}

func (c *Cache) storeSet(ctx context.Context, key string, p decimal.Decimal, ttl time.Duration) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, p, ttl); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("key", key).Warn("price store write failed")
	}
}

func (c *Cache) hit(kind string) {
	c.hits.Add(1)
	metrics.PriceCacheLookups.WithLabelValues(kind, "hit").Inc()
}

func (c *Cache) miss(kind string) {
	c.misses.Add(1)
	metrics.PriceCacheLookups.WithLabelValues(kind, "miss").Inc()
}

func (c *Cache) share(kind string) {
	c.shared.Add(1)
	metrics.PriceCacheLookups.WithLabelValues(kind, "shared").Inc()
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Shared: c.shared.Load(),
	}
}
