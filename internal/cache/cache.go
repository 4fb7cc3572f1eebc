package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"seoforge/internal/logging"
)

// Record is the stored form of a cache entry.
type Record struct {
	Key        string
	Value      []byte
	InsertedAt time.Time
}

// Backend persists cache records. Implementations must be safe for concurrent use.
type Backend interface {
	Load(ctx context.Context, key string) (Record, bool, error)
	LoadMany(ctx context.Context, keys []string) (map[string]Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, key string) error
	// Clear removes every record whose key starts with prefix.
	Clear(ctx context.Context, prefix string) (int, error)
	// Prune removes records with prefix inserted before cutoff.
	Prune(ctx context.Context, prefix string, cutoff time.Time) (int, error)
	Count(ctx context.Context, prefix string) (int, error)
}

// Stats reports cache effectiveness since construction.
type Stats struct {
	Name    string        `json:"name"`
	Entries int           `json:"entries"`
	Hits    int64         `json:"hits"`
	Misses  int64         `json:"misses"`
	Writes  int64         `json:"writes"`
	TTL     time.Duration `json:"ttl"`
}

// Cache is a TTL key/value cache over a Backend. Expired entries are treated as
// misses on read and removed lazily by Prune. A nil backend disables the cache:
// reads always miss and writes are dropped.
type Cache[V any] struct {
	name    string
	prefix  string
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// Option customizes a Cache.
type Option func(*options)

type options struct {
	now    func() time.Time
	logger *slog.Logger
	prefix string
}

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger used for backend failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithPrefix scopes Clear, Prune, and Stats to keys starting with prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// New constructs a cache named name over backend.
func New[V any](name string, backend Backend, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		name:    name,
		prefix:  o.prefix,
		backend: backend,
		ttl:     ttl,
		now:     o.now,
		logger:  logging.NewComponentLogger(o.logger, "cache"),
	}
}

// Disabled returns a cache that never stores anything.
func Disabled[V any](name string) *Cache[V] {
	return New[V](name, nil, 0)
}

// Enabled reports whether the cache has a backend.
func (c *Cache[V]) Enabled() bool {
	return c != nil && c.backend != nil
}

// Get returns the live value for key. Backend and decode failures are logged
// and reported as a miss.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	if !c.Enabled() {
		return zero, false
	}
	rec, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		c.warn(ctx, "cache read failed", "cache_read_failed", key, err)
		c.misses.Add(1)
		return zero, false
	}
	if !ok || c.expired(rec) {
		c.misses.Add(1)
		return zero, false
	}
	value, err := decode[V](rec.Value)
	if err != nil {
		c.warn(ctx, "cache entry undecodable", "cache_decode_failed", key, err)
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return value, true
}

// GetMany returns the live values for keys. Missing and expired keys are absent
// from the result.
func (c *Cache[V]) GetMany(ctx context.Context, keys []string) map[string]V {
	out := make(map[string]V, len(keys))
	if !c.Enabled() || len(keys) == 0 {
		c.misses.Add(int64(len(keys)))
		return out
	}
	records, err := c.backend.LoadMany(ctx, keys)
	if err != nil {
		c.warn(ctx, "cache batch read failed", "cache_read_failed", "", err)
		c.misses.Add(int64(len(keys)))
		return out
	}
	for _, key := range keys {
		rec, ok := records[key]
		if !ok || c.expired(rec) {
			continue
		}
		value, err := decode[V](rec.Value)
		if err != nil {
			continue
		}
		out[key] = value
	}
	c.hits.Add(int64(len(out)))
	c.misses.Add(int64(len(keys) - len(out)))
	return out
}

// Set stores value under key, replacing any previous entry.
func (c *Cache[V]) Set(ctx context.Context, key string, value V) error {
	if !c.Enabled() {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.backend.Save(ctx, Record{Key: key, Value: payload, InsertedAt: c.now()}); err != nil {
		return err
	}
	c.writes.Add(1)
	return nil
}

// Delete removes key.
func (c *Cache[V]) Delete(ctx context.Context, key string) error {
	if !c.Enabled() {
		return nil
	}
	return c.backend.Delete(ctx, key)
}

// Clear removes every entry in this cache's key space.
func (c *Cache[V]) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}
	return c.backend.Clear(ctx, c.prefix)
}

// Prune removes expired entries.
func (c *Cache[V]) Prune(ctx context.Context) (int, error) {
	if !c.Enabled() || c.ttl <= 0 {
		return 0, nil
	}
	return c.backend.Prune(ctx, c.prefix, c.now().Add(-c.ttl))
}

// Stats reports counters and the stored entry count.
func (c *Cache[V]) Stats(ctx context.Context) Stats {
	stats := Stats{Name: c.name, TTL: c.ttl, Hits: c.hits.Load(), Misses: c.misses.Load(), Writes: c.writes.Load()}
	if c.Enabled() {
		if n, err := c.backend.Count(ctx, c.prefix); err == nil {
			stats.Entries = n
		}
	}
	return stats
}

// An entry read at or after InsertedAt+TTL is expired. A non-positive TTL
// never expires.
func (c *Cache[V]) expired(rec Record) bool {
	if c.ttl <= 0 {
		return false
	}
	return !c.now().Before(rec.InsertedAt.Add(c.ttl))
}

func (c *Cache[V]) warn(ctx context.Context, msg, event, key string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), msg, event,
		logging.String("cache", c.name),
		logging.String("key", key),
		logging.Error(err),
		logging.String(logging.FieldImpact, "entry treated as a miss"),
	)
}

func decode[V any](payload []byte) (V, error) {
	var value V
	err := json.Unmarshal(payload, &value)
	return value, err
}
