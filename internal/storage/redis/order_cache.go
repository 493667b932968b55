// Package redis caches tracked orders in Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/plantshop/internal/domain/order"
)

const (
	// keyOrderByTracking maps a tracking number to the JSON order snapshot.
	keyOrderByTracking = "order:tracking:%s"

	// DefaultTTL bounds how long a tracked order is served from cache.
	DefaultTTL = 5 * time.Minute
)

var _ order.Cache = (*OrderCache)(nil)

// OrderCache implements order.Cache on a Redis client.
type OrderCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

// NewClient returns a Redis client for addr.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// NewOrderCache returns an OrderCache storing entries for ttl. A zero ttl
// uses DefaultTTL.
func NewOrderCache(rdb goredis.Cmdable, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &OrderCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached order, or nil on a miss.
func (c *OrderCache) Get(ctx context.Context, trackingNumber string) (*order.Order, error) {
	raw, err := c.rdb.Get(ctx, key(trackingNumber)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cached order %q: %w", trackingNumber, err)
	}
	var o order.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decoding cached order %q: %w", trackingNumber, err)
	}
	return &o, nil
}

// Set stores o under its tracking number, replacing any cached copy.
func (c *OrderCache) Set(ctx context.Context, o *order.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding order %q: %w", o.ID, err)
	}
	if err := c.rdb.Set(ctx, key(o.TrackingNumber), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching order %q: %w", o.ID, err)
	}
	return nil
}

// Add stores o unless its tracking number is already cached.
func (c *OrderCache) Add(ctx context.Context, o *order.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding order %q: %w", o.ID, err)
	}
	if err := c.rdb.SetNX(ctx, key(o.TrackingNumber), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching order %q: %w", o.ID, err)
	}
	return nil
}

// Delete evicts the entry for trackingNumber.
func (c *OrderCache) Delete(ctx context.Context, trackingNumber string) error {
	if err := c.rdb.Del(ctx, key(trackingNumber)).Err(); err != nil {
		return fmt.Errorf("evicting order %q: %w", trackingNumber, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *OrderCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func key(trackingNumber string) string {
	return fmt.Sprintf(keyOrderByTracking, trackingNumber)
}
