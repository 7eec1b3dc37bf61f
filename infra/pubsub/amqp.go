package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NewAMQPPubSub publishes to a fanout exchange named after the topic. Each
// process consumes through its own non-durable queue, so every process sees
// every message. The watermill connection wrapper reconnects on its own.
func NewAMQPPubSub(url, instanceID string, wlog watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	// Format: <topic>_node.b23a8f12
	cfg := amqp.NewNonDurablePubSubConfig(url, amqp.GenerateQueueNameTopicNameWithSuffix("node."+instanceID))

	pub, err := amqp.NewPublisher(cfg, wlog)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: amqp publisher: %w", err)
	}

	sub, err := amqp.NewSubscriber(cfg, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("pubsub: amqp subscriber: %w", err)
	}

	return pub, sub, nil
}
