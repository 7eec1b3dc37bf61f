package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// NewMemoryPubSub is the in-process backbone for single-process deployments
// and tests. Messages published before the worker subscribes are lost, the
// same as on the networked drivers. Publish waits for the subscriber's ack,
// which keeps per-process receipt order equal to publish order.
func NewMemoryPubSub(wlog watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 1024,
		Persistent:          false,

		BlockPublishUntilSubscriberAck: true,
	}, wlog)
}
