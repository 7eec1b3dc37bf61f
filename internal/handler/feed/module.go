package feed

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/cloudevents-bin/internal/adapter/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("feed-worker",
	fx.Provide(
		NewFeedHandler,
		NewWatermillRouter,
		NewWorker,
	),

	fx.Invoke(func(h *FeedHandler, w *Worker, deps registerDeps) {
		h.RegisterHandlers(w.router, deps.Subscriber, deps.Dispatcher)
	}),

	fx.Invoke(func(lc fx.Lifecycle, w *Worker) {
		lc.Append(fx.Hook{
			OnStart: w.Start,
			OnStop:  w.Stop,
		})
	}),
)

type registerDeps struct {
	fx.In

	Subscriber message.Subscriber
	Dispatcher pubsub.FeedDispatcher
}
