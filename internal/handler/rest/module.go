package rest

import (
	"github.com/webitel/cloudevents-bin/config"
	"github.com/webitel/cloudevents-bin/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rest",
	fx.Provide(
		NewInfoHandler,
		NewWebhookHandler,
		func(cfg *config.Config, events service.EventReader) *APIHandler {
			return NewAPIHandler(events, cfg.HTTP.PublicURL)
		},
		NewRouter,
	),
)
