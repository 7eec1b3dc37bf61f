package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/webitel/cloudevents-bin/config"
)

// NewPool builds the process-wide connection pool shared by the event log
// and the redis bus driver.
func NewPool(cfg config.RedisConfig) *redis.Pool {
	opts := []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}

	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: cfg.IdleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return Dial(ctx, cfg.URL, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Dial opens a single connection; the redis bus subscriber uses dedicated
// connections outside the pool.
func Dial(ctx context.Context, url string, opts ...redis.DialOption) (redis.Conn, error) {
	conn, err := redis.DialURLContext(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("redis: dial %s: %w", url, err)
	}
	return conn, nil
}

// Ping verifies that the pool can reach the server.
func Ping(ctx context.Context, pool *redis.Pool) error {
	conn, err := pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis: get connection: %w", err)
	}
	defer conn.Close()

	res, err := redis.String(conn.Do("PING"))
	if err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	if res != "PONG" {
		return fmt.Errorf("redis: ping: 'PONG', got '%s'", res)
	}
	return nil
}
