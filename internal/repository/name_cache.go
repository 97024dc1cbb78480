package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/portfolio-lease/internal/config"
)

// NameSource resolves portfolio display names.
type NameSource interface {
	Name(ctx context.Context, tenantID, portfolioID uint64) (string, error)
}

// CachedPortfolioNames is a Redis read-through cache in front of a
// NameSource.  Only names are cached: existence checks always hit MySQL
// so that stale-lease detection never trusts a cached answer.  Redis
// failures fall through to the source.
type CachedPortfolioNames struct {
	src    NameSource    // authoritative lookup (MySQL)
	rdb    *redis.Client // cache backend
	ttl    time.Duration // expiry of cached names
	prefix string        // key prefix
}

// NewCachedPortfolioNames wraps src.  When caching is disabled or rdb is
// nil, src is returned unchanged.
func NewCachedPortfolioNames(src NameSource, rdb *redis.Client, cfg config.NameCacheConfig) NameSource {
	if !cfg.Enabled || rdb == nil {
		return src
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedPortfolioNames{src: src, rdb: rdb, ttl: ttl, prefix: cfg.Prefix}
}

func (c *CachedPortfolioNames) key(tenantID, portfolioID uint64) string {
	return fmt.Sprintf("%s:%d:%d", c.prefix, tenantID, portfolioID)
}

// Name returns the cached name or loads and caches it.  Misses from the
// source (ErrPortfolioNotFound) are not cached.
func (c *CachedPortfolioNames) Name(ctx context.Context, tenantID, portfolioID uint64) (string, error) {
	key := c.key(tenantID, portfolioID)
	if name, err := c.rdb.Get(ctx, key).Result(); err == nil {
		return name, nil
	} else if !errors.Is(err, redis.Nil) {
		// Redis trouble; serve from the source.
		return c.src.Name(ctx, tenantID, portfolioID)
	}
	name, err := c.src.Name(ctx, tenantID, portfolioID)
	if err != nil {
		return "", err
	}
	// Best-effort write; a failed SETEX only costs a future miss
	_ = c.rdb.SetEx(context.Background(), key, name, c.ttl).Err()
	return name, nil
}
