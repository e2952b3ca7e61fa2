// Package rediscache shares precipitation reports between API instances
// through Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/augurworld/augur/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "augur:report:"

// Open creates a Redis client. It does not dial; use Ping to check the connection.
func Open(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// Reports caches reports in Redis as JSON. Redis failures are logged and
// treated as misses so lookups keep working from the database.
type Reports struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewReports wraps a Redis client. A zero ttl stores entries without expiry.
func NewReports(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Reports {
	return &Reports{client: client, ttl: ttl, logger: logger}
}

func key(p domain.GridPoint) string {
	return keyPrefix + p.Key()
}

func (c *Reports) Get(ctx context.Context, p domain.GridPoint) (*domain.PrecipitationReport, bool) {
	data, err := c.client.Get(ctx, key(p)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis report get failed", "key", key(p), "error", err)
		}
		return nil, false
	}

	var r domain.PrecipitationReport
	if err := json.Unmarshal(data, &r); err != nil {
		c.logger.Warn("redis report decode failed", "key", key(p), "error", err)
		return nil, false
	}
	return &r, true
}

func (c *Reports) Put(ctx context.Context, p domain.GridPoint, r *domain.PrecipitationReport) {
	data, err := json.Marshal(r)
	if err != nil {
		c.logger.Warn("redis report encode failed", "key", key(p), "error", err)
		return
	}
	if err := c.client.Set(ctx, key(p), data, c.ttl).Err(); err != nil {
		c.logger.Warn("redis report set failed", "key", key(p), "error", err)
	}
}

// Ping checks the Redis connection.
func (c *Reports) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (c *Reports) Close() error {
	return c.client.Close()
}
