package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures [NewRedisCache].
type RedisConfig struct {
	// Addr is host:port, or a redis:// URL when URL is set.
	Addr     string
	URL      string
	Password string
	DB       int

	// Prefix namespaces all keys.
	Prefix string
}

// Validate checks that an address was given.
func (c RedisConfig) Validate() error {
	if c.Addr == "" && c.URL == "" {
		return fmt.Errorf("redis: addr or url is required")
	}
	return nil
}

// RedisCache is a [Cache] backed by Redis. Network failures are retried
// with backoff.
type RedisCache struct {
	client  *redis.Client
	prefix  string
	backoff Backoff
}

// NewRedisCache connects to Redis and pings it.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		opts = parsed
	}
	c := &RedisCache{client: redis.NewClient(opts), prefix: cfg.Prefix, backoff: DefaultBackoff}
	if err := c.do(ctx, func() error { return c.client.Ping(ctx).Err() }); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

// Get retrieves a value.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := c.do(ctx, func() error {
		var err error
		data, err = c.client.Get(ctx, c.prefix+key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.do(ctx, func() error {
		return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
	})
}

// Delete removes a value.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.do(ctx, func() error {
		return c.client.Del(ctx, c.prefix+key).Err()
	})
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// do runs fn, retrying network errors.
func (c *RedisCache) do(ctx context.Context, fn func() error) error {
	return c.backoff.Do(ctx, func() error {
		err := fn()
		var netErr net.Error
		if errors.As(err, &netErr) {
			return Transient(fmt.Errorf("%w: %v", ErrNetwork, err))
		}
		return err
	})
}

var _ Cache = (*RedisCache)(nil)
