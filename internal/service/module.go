package service

import (
	"log/slog"

	"github.com/webitel/cloudevents-bin/config"
	"github.com/webitel/cloudevents-bin/internal/worker"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		// Domain services
		fx.Annotate(
			NewDeliveryService,
			fx.As(new(Deliverer)),
		),
		fx.Annotate(
			NewIngestService,
			fx.As(new(Ingester)),
		),
		fx.Annotate(
			NewEventService,
			fx.As(new(EventReader)),
		),
		func(cfg *config.Config, spawner worker.Spawner, logger *slog.Logger) Prober {
			return NewHandshakeProber(spawner, cfg.Probe.Timeout, cfg.Probe.DedupeTTL, logger)
		},
	),

	// [DECORATION_LAYER] Intercept Ingester to add cross-cutting concerns
	fx.Decorate(func(orig Ingester, logger *slog.Logger) Ingester {
		return NewIngestMiddleware(orig, logger)
	}),
)
