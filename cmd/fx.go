package cmd

import (
	"github.com/webitel/cloudevents-bin/config"
	"github.com/webitel/cloudevents-bin/infra/pubsub"
	"github.com/webitel/cloudevents-bin/infra/redis"
	"github.com/webitel/cloudevents-bin/infra/server/httpsrv"
	"github.com/webitel/cloudevents-bin/infra/tracing"
	"github.com/webitel/cloudevents-bin/internal/adapter/eventlog"
	feeddispatcher "github.com/webitel/cloudevents-bin/internal/adapter/pubsub"
	"github.com/webitel/cloudevents-bin/internal/domain/registry"
	"github.com/webitel/cloudevents-bin/internal/handler/feed"
	"github.com/webitel/cloudevents-bin/internal/handler/rest"
	"github.com/webitel/cloudevents-bin/internal/handler/ws"
	"github.com/webitel/cloudevents-bin/internal/service"
	"github.com/webitel/cloudevents-bin/internal/worker"
	"go.uber.org/fx"
)

// NewApp wires the process. Lifecycle hooks run in module order on start
// and in reverse on stop: the HTTP server stops first, then the delivery
// worker, the registry, the background pool, the bus, Redis and tracing.
func NewApp(cfg *config.Config, opts ...fx.Option) *fx.App {
	return fx.New(append(appOptions(cfg), opts...)...)
}

func appOptions(cfg *config.Config) []fx.Option {
	return []fx.Option{
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,
			func() tracing.Service {
				return tracing.Service{Name: ServiceName, Namespace: ServiceNamespace, Version: version}
			},
			func(bus *pubsub.Provider) rest.BuildInfo {
				return rest.BuildInfo{Version: version, BusDriver: bus.Driver(), InstanceID: bus.InstanceID()}
			},
		),

		tracing.Module,
		redis.Module,
		eventlog.Module,
		pubsub.Module,
		feeddispatcher.Module,
		worker.Module,
		registry.Module,
		service.Module,
		feed.Module,
		ws.Module,
		rest.Module,
		httpsrv.Module,
	}
}
