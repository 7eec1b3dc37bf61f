package httpsrv

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

var Module = fx.Module("http-server",
	fx.Provide(
		func(cfg *config.Config, router chi.Router, logger *slog.Logger) *Server {
			return NewServer(cfg.HTTP.Addr, cfg.HTTP.ShutdownGrace, router, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)
