package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seoforge/internal/cache"
)

// CacheBackend implements cache.Backend on the cache_entries table.
type CacheBackend struct{ s *Store }

// Cache returns the cache backend.
func (s *Store) Cache() *CacheBackend { return &CacheBackend{s: s} }

func (c *CacheBackend) Load(ctx context.Context, key string) (cache.Record, bool, error) {
	var (
		value    []byte
		inserted sql.NullString
	)
	err := c.s.db.QueryRowContext(ctx, `SELECT value, inserted_at FROM cache_entries WHERE key = ?`, key).Scan(&value, &inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Record{}, false, nil
	}
	if err != nil {
		return cache.Record{}, false, fmt.Errorf("load cache entry: %w", err)
	}
	return cache.Record{Key: key, Value: value, InsertedAt: parseTime(inserted)}, true, nil
}

func (c *CacheBackend) LoadMany(ctx context.Context, keys []string) (map[string]cache.Record, error) {
	out := make(map[string]cache.Record, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := c.s.db.QueryContext(ctx,
		`SELECT key, value, inserted_at FROM cache_entries WHERE key IN (`+makePlaceholders(len(keys))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			rec      cache.Record
			inserted sql.NullString
		)
		if err := rows.Scan(&rec.Key, &rec.Value, &inserted); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		rec.InsertedAt = parseTime(inserted)
		out[rec.Key] = rec
	}
	return out, rows.Err()
}

func (c *CacheBackend) Save(ctx context.Context, rec cache.Record) error {
	_, err := c.s.exec(ctx,
		`INSERT INTO cache_entries (key, value, inserted_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value, inserted_at = excluded.inserted_at`,
		rec.Key, rec.Value, formatTime(rec.InsertedAt),
	)
	if err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

func (c *CacheBackend) Delete(ctx context.Context, key string) error {
	if _, err := c.s.exec(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (c *CacheBackend) Clear(ctx context.Context, prefix string) (int, error) {
	n, err := c.s.affected(ctx, `DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, likePrefix(prefix))
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return n, nil
}

func (c *CacheBackend) Prune(ctx context.Context, prefix string, cutoff time.Time) (int, error) {
	n, err := c.s.affected(ctx, `DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\' AND inserted_at < ?`,
		likePrefix(prefix), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return n, nil
}

func (c *CacheBackend) Count(ctx context.Context, prefix string) (int, error) {
	var n int
	if err := c.s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, likePrefix(prefix)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}
