package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	apperrors "github.com/WASandaruwan/onlinesales-backend/pkg/errors"
)

const (
	keyPrefix    = "order:"
	fieldVersion = "version"
	fieldData    = "data"
)

// setScript stores an order unless the entry already holds a newer version.
var setScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// invalidateScript drops the cached order and keeps its version, so that a
// Set with an older version is still refused until the entry expires.
var invalidateScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1])
redis.call('HDEL', KEYS[1], 'data')
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// OrderCache is a read-through copy of orders in Redis. Postgres stays the
// source of truth.
//
// Each order is a hash holding the JSON order and its version, the order's
// UpdatedAt in microseconds. A committed change replaces the entry with a
// version-only marker, which reads as a miss.
type OrderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOrderCache creates a new Redis-backed order cache.
func NewOrderCache(client *redis.Client, ttl time.Duration) *OrderCache {
	return &OrderCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached order or an ErrNotFound error on a miss.
func (c *OrderCache) Get(ctx context.Context, id string) (*domain.Order, error) {
	data, err := c.client.HGet(ctx, keyPrefix+id, fieldData).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cached order", id)
		}
		return nil, fmt.Errorf("redis get order: %w", err)
	}

	var o domain.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Set stores o with the configured TTL. It is a no-op when the cache already
// holds a newer version of the order.
func (c *OrderCache) Set(ctx context.Context, o *domain.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	err = setScript.Run(ctx, c.client, []string{keyPrefix + o.ID},
		version(o.UpdatedAt), data, c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set order: %w", err)
	}
	return nil
}

// Invalidate drops the cached copy of an order changed at version.
func (c *OrderCache) Invalidate(ctx context.Context, id string, v time.Time) error {
	err := invalidateScript.Run(ctx, c.client, []string{keyPrefix + id},
		version(v), c.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis invalidate order: %w", err)
	}
	return nil
}

// Ping checks the connection; used by the readiness check.
func (c *OrderCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func version(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}
