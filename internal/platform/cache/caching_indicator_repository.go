// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"indicator_backend/internal/feature/indicator/domain/entity"
	"indicator_backend/internal/feature/indicator/usecase"
)

var log = logrus.WithField("component", "cache")

// CachingIndicatorRepository decorates an IndicatorRepository with Redis caching
// of QueryLatest results. Writes go to the inner repository first and then drop
// every cached entry of the touched series.
type CachingIndicatorRepository struct {
	inner     usecase.IndicatorRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.IndicatorRepository = (*CachingIndicatorRepository)(nil)

// NewCachingIndicatorRepository decorates an IndicatorRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "indicators".
func NewCachingIndicatorRepository(rdb *redis.Client, ttl time.Duration, inner usecase.IndicatorRepository, namespace string) *CachingIndicatorRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "indicators"
	}
	return &CachingIndicatorRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Upsert writes through to the inner repository and invalidates affected series.
func (c *CachingIndicatorRepository) Upsert(ctx context.Context, records []entity.IndicatorRecord) error {
	if err := c.inner.Upsert(ctx, records); err != nil {
		return err
	}
	if c.rdb == nil || len(records) == 0 {
		return nil
	}

	seen := map[entity.SeriesKey]struct{}{}
	for _, r := range records {
		key := r.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		c.invalidate(ctx, key)
	}
	return nil
}

// QueryLatest checks the cache first and falls back to the inner repository.
func (c *CachingIndicatorRepository) QueryLatest(ctx context.Context, key entity.SeriesKey, count int) ([]entity.IndicatorRecord, error) {
	if c.rdb == nil {
		return c.inner.QueryLatest(ctx, key, count)
	}

	ck := c.cacheKey(key, count)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, ck).Bytes(); err == nil && len(b) > 0 {
		var out []entity.IndicatorRecord
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// 壊れたキャッシュは削除する
		_ = c.rdb.Del(ctx, ck).Err()
	}

	// 2) Fallback to database
	out, err := c.inner.QueryLatest(ctx, key, count)
	if err != nil {
		return nil, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, ck, b, c.ttl).Err()
	}
	return out, nil
}

// QueryRange is not cached; ranges are rarely repeated.
func (c *CachingIndicatorRepository) QueryRange(ctx context.Context, key entity.SeriesKey, start, end time.Time, limit int) ([]entity.IndicatorRecord, error) {
	return c.inner.QueryRange(ctx, key, start, end, limit)
}

func (c *CachingIndicatorRepository) Find(ctx context.Context, key entity.SeriesKey, ts time.Time) (*entity.IndicatorRecord, error) {
	return c.inner.Find(ctx, key, ts)
}

// PurgeSeries deletes the series and its cached entries.
func (c *CachingIndicatorRepository) PurgeSeries(ctx context.Context, key entity.SeriesKey) (int64, error) {
	n, err := c.inner.PurgeSeries(ctx, key)
	if err != nil {
		return 0, err
	}
	if c.rdb != nil {
		c.invalidate(ctx, key)
	}
	return n, nil
}

func (c *CachingIndicatorRepository) invalidate(ctx context.Context, key entity.SeriesKey) {
	if err := c.deleteByPattern(ctx, c.cacheKeyPrefix(key)+"*"); err != nil {
		// Best effort: entries expire with the ttl anyway
		log.WithError(err).WithField("series", c.cacheKeyPrefix(key)).Warn("cache invalidation failed")
	}
}

// cacheKey generates a cache key for a specific query.
func (c *CachingIndicatorRepository) cacheKey(key entity.SeriesKey, count int) string {
	return fmt.Sprintf("%s%d", c.cacheKeyPrefix(key), count)
}

// cacheKeyPrefix generates a prefix for invalidating every cached query of a series.
func (c *CachingIndicatorRepository) cacheKeyPrefix(key entity.SeriesKey) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s:",
		c.namespace,
		safe(key.Symbol),
		safe(key.Timeframe),
		safe(key.Kind),
		safe(key.ParamsID),
	)
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingIndicatorRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

var safeReplacer = strings.NewReplacer(
	" ", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"[", "_",
	"]", "_",
)

// safe escapes characters that are problematic for Redis keys and SCAN patterns.
func safe(s string) string {
	return safeReplacer.Replace(s)
}
