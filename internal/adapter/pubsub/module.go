package pubsub

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/cloudevents-bin/config"
	"go.uber.org/fx"
)

var Module = fx.Module("feed-dispatcher",
	fx.Provide(
		func(pub message.Publisher, cfg *config.Config) FeedDispatcher {
			return NewFeedDispatcher(pub, FeedTopic(cfg.Redis.KeyPrefix()))
		},
	),
)
