package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
)

var ErrCacheDisabled = errors.New("page cache disabled: set REDIS_HOST")

const keyPrefix = "feedminer:page:"

// PageCache stores fetched page bodies keyed by URL. A nil client or a zero
// TTL disables it; Get then always misses and Set is a no-op.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

type NewPageCacheParams struct {
	fx.In

	Client *redis.Client `optional:"true"`
	Cfg    *config.Config
	Logger *zap.SugaredLogger
}

func NewPageCache(p NewPageCacheParams) *PageCache {
	return New(p.Client, p.Cfg.PageCacheTTL, p.Logger)
}

func New(client *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *PageCache {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PageCache{client: client, ttl: ttl, logger: logger}
}

func (c *PageCache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *PageCache) Get(ctx context.Context, url string) ([]byte, bool, error) {
	if !c.Enabled() {
		return nil, false, nil
	}
	body, err := c.client.Get(ctx, Key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("page cache get: %w", err)
	}
	return body, true, nil
}

func (c *PageCache) Set(ctx context.Context, url string, body []byte) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Set(ctx, Key(url), body, c.ttl).Err(); err != nil {
		return fmt.Errorf("page cache set: %w", err)
	}
	return nil
}

// Purge drops the cached body of url.
func (c *PageCache) Purge(ctx context.Context, url string) error {
	if !c.Enabled() {
		return ErrCacheDisabled
	}
	return c.client.Del(ctx, Key(url)).Err()
}

func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}
