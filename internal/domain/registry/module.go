package registry

import (
	"context"
	"log/slog"

	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

var Module = fx.Module("registry",
	fx.Provide(
		// [CLEAN_INJECTION] Configure Hub using Functional Options
		func(cfg *config.Config, logger *slog.Logger) *Hub {
			return NewHub(logger,
				WithMailboxSize(cfg.Feed.MailboxSize),
				WithSinkBuffer(cfg.Feed.SinkBuffer),
				WithSendTimeout(cfg.Feed.SendTimeout),
			)
		},
		func(h *Hub) Hubber { return h },
	),
	fx.Invoke(func(lc fx.Lifecycle, h Hubber) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				h.Shutdown() // [GRACEFUL_SHUTDOWN] Stop all cell goroutines
				return nil
			},
		})
	}),
)
