package ws

import (
	"log/slog"
	"net/http"

	"github.com/webitel/cloudevents-bin/config"
	"github.com/webitel/cloudevents-bin/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ws",
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, logger *slog.Logger, deliverer service.Deliverer) *FeedHandler {
				return NewFeedHandler(logger, deliverer, cfg.Feed.PingInterval)
			},
			fx.As(new(http.Handler)),
			fx.ResultTags(`name:"feed"`),
		),
	),
)
