package eventlog

import (
	"log/slog"

	"github.com/gomodule/redigo/redis"
	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

var Module = fx.Module("eventlog",
	fx.Provide(
		func(pool *redis.Pool, cfg *config.Config, logger *slog.Logger) Log {
			return NewRedisLog(pool, cfg.Redis.KeyPrefix(), logger)
		},
	),
)
