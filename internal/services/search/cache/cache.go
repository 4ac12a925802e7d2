package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"bazaar/internal/platform/logger"
	"bazaar/internal/platform/store"
)

// Config tunes per class TTLs and the background sweep
type Config struct {
	SearchTTL time.Duration
	OffersTTL time.Duration
	GeoTTL    time.Duration

	// WarmTTL is the short placeholder lifetime written by Warm; a real
	// search must overwrite the placeholder before it lapses
	WarmTTL time.Duration

	// SweepEvery is the interval of the background maintenance pass;
	// SweepEvictBelow evicts keys whose remaining TTL dropped under it
	SweepEvery      time.Duration
	SweepEvictBelow time.Duration
}

func (c Config) withDefaults() Config {
	if c.SearchTTL <= 0 {
		c.SearchTTL = 90 * time.Second
	}
	if c.OffersTTL <= 0 {
		c.OffersTTL = 90 * time.Second
	}
	if c.GeoTTL <= 0 {
		c.GeoTTL = 300 * time.Second
	}
	if c.WarmTTL <= 0 {
		c.WarmTTL = 15 * time.Second
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.SweepEvictBelow <= 0 {
		c.SweepEvictBelow = 2 * time.Second
	}
	return c
}

// Entry is the stored unit. Value stays raw JSON so cache contents remain
// inspectable; CachedAt rides inside the payload so staleness can be reasoned
// about even when store TTL introspection is unavailable
type Entry struct {
	Value      json.RawMessage `json:"value"`
	CachedAt   time.Time       `json:"cached_at"`
	TTLSeconds int             `json:"ttl_seconds"`
}

// Decode unmarshals the entry value into out
func (e Entry) Decode(out any) error { return json.Unmarshal(e.Value, out) }

// Stats is the counter snapshot served at /search/cache-stats
type Stats struct {
	Hits                  int64   `json:"hits"`
	Misses                int64   `json:"misses"`
	Errors                int64   `json:"errors"`
	HitRatePercent        float64 `json:"hit_rate_percent"`
	BackingStoreConnected bool    `json:"backing_store_connected"`
}

// Cache fronts a shared key value store with per class TTL policy and
// hit/miss instrumentation. Counters are atomics; the backing store is
// externally synchronized so no further locking happens here
type Cache struct {
	kv   store.KV
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
	hits atomic.Int64
	miss atomic.Int64
	errs atomic.Int64
}

// New constructs a cache over kv
func New(kv store.KV, cfg Config, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.Named("cache")
	}
	return &Cache{kv: kv, cfg: cfg.withDefaults(), log: log, now: time.Now}
}

// TTLFor returns the default TTL of a class
func (c *Cache) TTLFor(class Class) time.Duration {
	switch class {
	case ClassOffers:
		return c.cfg.OffersTTL
	case ClassGeo:
		return c.cfg.GeoTTL
	default:
		return c.cfg.SearchTTL
	}
}

// Get fetches one entry. Missing keys count as misses; any backing store
// error counts as an error and degrades to a miss so a broken cache only
// removes the speed up, never the request
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool) {
	raw, err := c.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNoKey) {
		c.miss.Add(1)
		return Entry{}, false
	}
	if err != nil {
		c.errs.Add(1)
		c.log.Warn().Str("key", key).Err(err).Msg("cache get degraded to miss")
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.errs.Add(1)
		c.log.Warn().Str("key", key).Err(err).Msg("cache entry undecodable, treating as miss")
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

// Set writes value under the class TTL, or ttl when > 0. The entry always
// carries a fresh CachedAt stamp; refreshing an entry is a full overwrite,
// never an in place TTL mutation
func (c *Cache) Set(ctx context.Context, class Class, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.TTLFor(class)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(Entry{
		Value:      raw,
		CachedAt:   c.now().UTC(),
		TTLSeconds: int(ttl / time.Second),
	})
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, key, entry, ttl); err != nil {
		c.errs.Add(1)
		c.log.Warn().Str("key", key).Err(err).Msg("cache set failed")
		return err
	}
	return nil
}

// Invalidate removes every key matching pattern (see Pattern) and returns
// how many were deleted
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int64, error) {
	var keys []string
	err := c.kv.ScanMatch(ctx, pattern, func(key string) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		c.errs.Add(1)
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.kv.Del(ctx, keys...)
	if err != nil {
		c.errs.Add(1)
		return n, err
	}
	c.log.Info().Str("pattern", pattern).Int64("deleted", n).Msg("cache invalidated")
	return n, nil
}

// Warm writes a short lived placeholder so cold start traffic finds
// something; the warming pass must overwrite it with a real result before
// WarmTTL lapses or the next request simply falls through to a normal miss
func (c *Cache) Warm(ctx context.Context, class Class, key string, value any) error {
	return c.Set(ctx, class, key, value, c.cfg.WarmTTL)
}

// Stats snapshots the counters. Hit rate is 0 before any traffic
func (c *Cache) Stats(ctx context.Context) Stats {
	h, m := c.hits.Load(), c.miss.Load()
	s := Stats{
		Hits:                  h,
		Misses:                m,
		Errors:                c.errs.Load(),
		BackingStoreConnected: c.kv.Ping(ctx) == nil,
	}
	if total := h + m; total > 0 {
		s.HitRatePercent = float64(h) / float64(total) * 100
	}
	return s
}

// Sweep runs one maintenance pass: keys with no expiry get their class TTL
// reapplied (defensive against misconfigured writes), keys about to lapse are
// evicted early so expiry stampedes do not pile onto the store's own sweep
func (c *Cache) Sweep(ctx context.Context) (extended, evicted int, err error) {
	err = c.kv.ScanMatch(ctx, keyNamespace+":*", func(key string) error {
		class, ok := classOf(key)
		if !ok {
			return nil
		}
		ttl, terr := c.kv.TTL(ctx, key)
		if terr != nil {
			return terr
		}
		switch {
		case ttl == store.TTLNone:
			if eerr := c.kv.Expire(ctx, key, c.TTLFor(class)); eerr != nil {
				return eerr
			}
			extended++
		case ttl == store.TTLMissing:
			// raced its own expiry, nothing to do
		case ttl < c.cfg.SweepEvictBelow:
			if _, derr := c.kv.Del(ctx, key); derr != nil {
				return derr
			}
			evicted++
		}
		return nil
	})
	if err != nil {
		c.errs.Add(1)
	}
	return extended, evicted, err
}

// RunSweeper loops Sweep on the configured interval until ctx is done
func (c *Cache) RunSweeper(ctx context.Context) {
	t := time.NewTicker(c.cfg.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ext, ev, err := c.Sweep(ctx)
			if err != nil {
				c.log.Warn().Err(err).Msg("cache sweep failed")
				continue
			}
			if ext > 0 || ev > 0 {
				c.log.Debug().Int("extended", ext).Int("evicted", ev).Msg("cache sweep")
			}
		}
	}
}
