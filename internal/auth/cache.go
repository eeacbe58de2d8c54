package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snorlak1/mem0-server-mcp/internal/config"
	"github.com/snorlak1/mem0-server-mcp/internal/types"
)

// cache is the Redis-backed validation cache the spec allows for up to
// 60 seconds, grounded on the teacher's internal/ratelimit/redis_limiter.go
// connection-setup idiom. A revoke/enable/delete actively invalidates the
// entry so the change is visible inside the 60s ceiling instead of merely
// expiring it passively.
type cache struct {
	client *redis.Client
	ttl    time.Duration
}

func newCache(cfg config.RedisConfig) *cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &cache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl: ttl,
	}
}

// cacheKey is always built from a token hash, never the plaintext
// credential — callers in store.go hash before touching the cache.
func cacheKey(hash string) string { return "mcp:auth:token:" + hash }

func (c *cache) get(ctx context.Context, hash string) (*types.AuthToken, bool) {
	raw, err := c.client.Get(ctx, cacheKey(hash)).Bytes()
	if err != nil {
		return nil, false
	}
	var rec types.AuthToken
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

func (c *cache) set(ctx context.Context, rec types.AuthToken) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.client.Set(ctx, cacheKey(rec.Token), raw, c.ttl)
}

func (c *cache) invalidate(ctx context.Context, hash string) {
	c.client.Del(ctx, cacheKey(hash))
}

func (c *cache) close() error { return c.client.Close() }
