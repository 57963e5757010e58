// Package cache is the Redis read-through layer in front of the
// derived break/activity views, with the explicit eviction contract
// the mutating operations must honor.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache wraps an optional Redis client. A nil client disables caching
// entirely: reads miss, writes and evictions are no-ops.
type Cache struct {
	rdb    *redis.Client
	logger *zerolog.Logger
}

func New(rdb *redis.Client, logger *zerolog.Logger) *Cache {
	return &Cache{rdb: rdb, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Get reads a cached value into out. Any failure (miss, connection,
// decode) falls through to the store: the return is a hit flag, never
// an error.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if !c.Enabled() {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

// Set stores a value with the given TTL. Failures are logged and
// swallowed; staleness is bounded by TTL.
func (c *Cache) Set(ctx context.Context, key string, val any, ttl time.Duration) {
	if !c.Enabled() || ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Evict removes exact keys. A failed eviction is logged but never
// fails the surrounding mutation.
func (c *Cache) Evict(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("cache evict failed")
	}
}

// EvictPattern removes every key matching a glob pattern. Used for
// parameterized views (history, leaderboard) where the exact key set
// is not known at mutation time.
func (c *Cache) EvictPattern(ctx context.Context, pattern string) {
	if !c.Enabled() {
		return
	}
	keys, err := c.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		if c.logger != nil {
			c.logger.Warn().Err(err).Str("pattern", pattern).Msg("cache pattern scan failed")
		}
		return
	}
	if len(keys) > 0 {
		c.Evict(ctx, keys...)
	}
}

// Key builders. Every read view is scoped by (agent, parameters); the
// eviction side uses the same builders so the contract cannot drift.

func StatusKey(agentID int64) string {
	return fmt.Sprintf("break:status:%d", agentID)
}

func HistoryKey(agentID int64, days int, includeActive bool) string {
	return fmt.Sprintf("break:history:%d:%d:%v", agentID, days, includeActive)
}

func HistoryPattern(agentID int64) string {
	return fmt.Sprintf("break:history:%d:*", agentID)
}

func LeaderboardKey(period string, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", period, limit)
}

const LeaderboardPattern = "leaderboard:*"

// EvictAgent applies the mutation-side contract for one agent: status
// and history views for that agent plus every leaderboard projection,
// gone before the mutation returns success.
func (c *Cache) EvictAgent(ctx context.Context, agentID int64) {
	c.Evict(ctx, StatusKey(agentID))
	c.EvictPattern(ctx, HistoryPattern(agentID))
	c.EvictPattern(ctx, LeaderboardPattern)
}
