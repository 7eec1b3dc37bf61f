// Package pubsub builds the fan-out bus backbone as a watermill
// Publisher/Subscriber pair. Every driver keeps its subscription channel
// open across backbone disconnects, so the single delivery worker of the
// process never has to re-subscribe itself.
package pubsub

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/webitel/cloudevents-bin/config"
)

// Provider owns the publisher and subscriber of the configured driver.
type Provider struct {
	driver     string
	instanceID string
	publisher  message.Publisher
	subscriber message.Subscriber
}

func NewProvider(cfg *config.Config, pool *redis.Pool, logger *slog.Logger, wlog watermill.LoggerAdapter) (*Provider, error) {
	p := &Provider{
		driver: cfg.Bus.Driver,
		// [INSTANCE_IDENTITY] Distinguishes this process on backbones that need per-consumer queues.
		instanceID: uuid.NewString()[:8],
	}

	var err error
	switch cfg.Bus.Driver {
	case config.BusMemory:
		ch := NewMemoryPubSub(wlog)
		p.publisher, p.subscriber = ch, nopCloseSubscriber{ch}

	case config.BusRedis:
		p.publisher = NewRedisPublisher(pool)
		p.subscriber = NewRedisSubscriber(RedisSubscriberConfig{
			URL:            cfg.Redis.URL,
			Password:       cfg.Redis.Password,
			HealthInterval: 15 * time.Second,
		}, logger)

	case config.BusNATS:
		if p.publisher, err = NewNATSPublisher(cfg.NATS.URL, logger); err != nil {
			return nil, err
		}
		if p.subscriber, err = NewNATSSubscriber(cfg.NATS.URL, logger); err != nil {
			_ = p.publisher.Close()
			return nil, err
		}

	case config.BusAMQP:
		if p.publisher, p.subscriber, err = NewAMQPPubSub(cfg.AMQP.URL, p.instanceID, wlog); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("pubsub: unknown driver %q", cfg.Bus.Driver)
	}

	logger.Info("FEED_BUS_READY", "driver", p.driver, "instance_id", p.instanceID)
	return p, nil
}

func (p *Provider) Driver() string                 { return p.driver }
func (p *Provider) InstanceID() string             { return p.instanceID }
func (p *Provider) Publisher() message.Publisher   { return p.publisher }
func (p *Provider) Subscriber() message.Subscriber { return p.subscriber }

// Close flushes what the publisher still buffers, then releases the
// subscriber first so no new deliveries start while the publisher is going away.
func (p *Provider) Close() error {
	var flushErr error
	if f, ok := p.publisher.(flusher); ok {
		flushErr = f.Flush()
	}
	return errors.Join(flushErr, p.subscriber.Close(), p.publisher.Close())
}

// flusher is implemented by publishers that buffer on the client side.
type flusher interface {
	Flush() error
}

// nopCloseSubscriber lets one GoChannel serve as both halves while only the
// publisher side closes it.
type nopCloseSubscriber struct {
	message.Subscriber
}

func (nopCloseSubscriber) Close() error { return nil }
