package worker

import (
	"context"
	"log/slog"

	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

var Module = fx.Module("worker",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *Pool {
			return NewPool(logger, cfg.Worker.Concurrency)
		},
		func(p *Pool) Spawner { return p },
	),
	fx.Invoke(func(lc fx.Lifecycle, p *Pool, logger *slog.Logger) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				err := p.Stop(ctx)
				logger.Info("WORKER_POOL_STOPPED", "dropped", p.Dropped(), "failed", p.Failed())
				return err
			},
		})
	}),
)
