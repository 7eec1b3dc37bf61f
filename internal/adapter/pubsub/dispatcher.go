// internal/adapter/pubsub/dispatcher.go

package pubsub

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/cloudevents-bin/internal/domain/event"
)

// FeedTopic returns the broadcast topic shared by every process.
func FeedTopic(prefix string) string { return prefix + "feed" }

// FeedDispatcher defines the publish half of the fan-out bus.
// This allows the ingestion service to stay agnostic of the backbone.
type FeedDispatcher interface {
	Publish(ctx context.Context, msg event.FeedMessage) error
	Topic() string
}

// feedDispatcher is the concrete implementation (private).
type feedDispatcher struct {
	publisher message.Publisher
	topic     string
}

// NewFeedDispatcher returns the interface instead of the pointer to the struct.
func NewFeedDispatcher(pub message.Publisher, topic string) FeedDispatcher {
	return &feedDispatcher{
		publisher: pub,
		topic:     topic,
	}
}

// Publish returns once the backbone accepted the message, not once it was delivered.
func (d *feedDispatcher) Publish(ctx context.Context, fm event.FeedMessage) error {
	payload, err := fm.Encode()
	if err != nil {
		return fmt.Errorf("feed dispatcher: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("namespace", string(fm.Namespace))
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		msg.Metadata.Set("trace_id", traceID)
	}
	msg.SetContext(ctx)

	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("feed dispatcher: failed to publish to topic %s: %w", d.topic, err)
	}

	return nil
}

func (d *feedDispatcher) Topic() string { return d.topic }

type ctxKey string

// TraceIDKey carries the request trace id from ingestion onto the bus.
const TraceIDKey ctxKey = "trace_id"
