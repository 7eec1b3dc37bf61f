package redis

import (
	"context"
	"log/slog"

	"github.com/gomodule/redigo/redis"
	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

var Module = fx.Module("redis",
	fx.Provide(func(cfg *config.Config) *redis.Pool {
		return NewPool(cfg.Redis)
	}),

	// [LIFECYCLE] Fail fast on an unreachable store and release every pooled connection on stop.
	fx.Invoke(func(lc fx.Lifecycle, pool *redis.Pool, cfg *config.Config, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := Ping(ctx, pool); err != nil {
					return err
				}
				logger.Info("REDIS_CONNECTED", "prefix", cfg.Redis.KeyPrefix())
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return pool.Close()
			},
		})
	}),
)
