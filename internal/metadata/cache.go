package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ifmain/pinny/internal/logger"
)

// KeyPrefix namespaces cached metadata in Redis.
const KeyPrefix = "pinny:meta:"

// CacheKey returns the Redis key for a page URL.
func CacheKey(pageURL string) string {
	return KeyPrefix + pageURL
}

// Cache stores fetched metadata. Get reports ok=false on a miss.
type Cache interface {
	Get(ctx context.Context, pageURL string) (meta Meta, ok bool, err error)
	Set(ctx context.Context, pageURL string, meta Meta) error
}

// RedisCache stores Meta as JSON with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, pageURL string) (Meta, bool, error) {
	raw, err := c.client.Get(ctx, CacheKey(pageURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Meta{}, false, nil
		}
		return Meta{}, false, fmt.Errorf("failed to get cached metadata: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return Meta{}, false, fmt.Errorf("failed to decode cached metadata: %w", err)
	}
	return meta, true, nil
}

func (c *RedisCache) Set(ctx context.Context, pageURL string, meta Meta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := c.client.Set(ctx, CacheKey(pageURL), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache metadata: %w", err)
	}
	return nil
}

// CachedFetcher serves metadata from a Cache and falls back to another Fetcher.
// Cache errors are logged and otherwise ignored.
type CachedFetcher struct {
	next  Fetcher
	cache Cache
	log   logger.Logger
}

func NewCachedFetcher(next Fetcher, cache Cache, log logger.Logger) *CachedFetcher {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedFetcher{next: next, cache: cache, log: log}
}

func (f *CachedFetcher) Fetch(ctx context.Context, pageURL string) (Meta, error) {
	meta, ok, err := f.cache.Get(ctx, pageURL)
	switch {
	case err != nil:
		f.log.Warn("metadata cache read failed", logger.String("url", pageURL), logger.Error(err))
	case ok:
		f.log.Debug("metadata cache hit", logger.String("url", pageURL))
		return meta, nil
	}

	meta, err = f.next.Fetch(ctx, pageURL)
	if err != nil {
		return Meta{}, err
	}

	if err := f.cache.Set(ctx, pageURL, meta); err != nil {
		f.log.Warn("metadata cache write failed", logger.String("url", pageURL), logger.Error(err))
	}
	return meta, nil
}
