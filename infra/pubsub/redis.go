package pubsub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gomodule/redigo/redis"
	infraredis "github.com/webitel/cloudevents-bin/infra/redis"
)

var (
	_ message.Publisher  = (*RedisPublisher)(nil)
	_ message.Subscriber = (*RedisSubscriber)(nil)
)

// RedisPublisher issues PUBLISH on pooled connections. Redis pub/sub is
// fire-and-forget: a message published while no process is subscribed is gone.
type RedisPublisher struct {
	pool *redis.Pool
}

func NewRedisPublisher(pool *redis.Pool) *RedisPublisher {
	return &RedisPublisher{pool: pool}
}

func (p *RedisPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if err := p.publish(msg.Context(), topic, msg.Payload); err != nil {
			return fmt.Errorf("redis publish to %s: %w", topic, err)
		}
	}
	return nil
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, payload []byte) error {
	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("PUBLISH", channel, payload)
	return err
}

// Close is a no-op: the pool belongs to the redis infra module.
func (p *RedisPublisher) Close() error { return nil }

type RedisSubscriberConfig struct {
	URL      string
	Password string
	// HealthInterval is how often an idle subscription is pinged.
	HealthInterval time.Duration
	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration
	// Dial overrides how subscription connections are opened.
	Dial func(ctx context.Context) (redis.Conn, error)
}

// RedisSubscriber holds one dedicated connection per subscription. When the
// connection drops it re-dials with exponential backoff and re-subscribes;
// the output channel stays open until Close or context cancellation.
type RedisSubscriber struct {
	cfg    RedisSubscriberConfig
	logger *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewRedisSubscriber(cfg RedisSubscriberConfig, logger *slog.Logger) *RedisSubscriber {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 15 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 100 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Dial == nil {
		opts := []redis.DialOption{
			// A healthy subscription answers PING well within two intervals.
			redis.DialReadTimeout(2 * cfg.HealthInterval),
			redis.DialConnectTimeout(5 * time.Second),
		}
		if cfg.Password != "" {
			opts = append(opts, redis.DialPassword(cfg.Password))
		}
		url := cfg.URL
		cfg.Dial = func(ctx context.Context) (redis.Conn, error) {
			return infraredis.Dial(ctx, url, opts...)
		}
	}

	return &RedisSubscriber{
		cfg:     cfg,
		logger:  logger,
		closing: make(chan struct{}),
	}
}

func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	select {
	case <-s.closing:
		return nil, errors.New("redis subscriber: closed")
	default:
	}

	out := make(chan *message.Message)
	ready := make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		s.run(ctx, topic, out, ready)
	}()

	// Wait for the first subscription so publishes right after Subscribe are seen.
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		s.logger.Warn("FEED_SUBSCRIPTION_PENDING", "topic", topic)
	case <-ctx.Done():
	}

	return out, nil
}

func (s *RedisSubscriber) stopped(ctx context.Context) bool {
	select {
	case <-s.closing:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *RedisSubscriber) run(ctx context.Context, topic string, out chan<- *message.Message, ready chan struct{}) {
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }
	defer markReady()

	backoff := s.cfg.MinBackoff
	resumed := false
	for {
		subscribed, err := s.consume(ctx, topic, out, markReady, resumed)
		resumed = resumed || subscribed
		if s.stopped(ctx) {
			return
		}

		// [AT_MOST_ONCE] Anything published until the next SUBSCRIBE lands is lost.
		s.logger.Warn("FEED_SUBSCRIPTION_LOST",
			"topic", topic,
			"err", err,
			"retry_in", backoff.String(),
		)

		if subscribed {
			backoff = s.cfg.MinBackoff
		}

		select {
		case <-time.After(backoff):
		case <-s.closing:
			return
		case <-ctx.Done():
			return
		}

		backoff *= 2
		if backoff > s.cfg.MaxBackoff {
			backoff = s.cfg.MaxBackoff
		}
	}
}

// consume runs one connection until it fails. subscribed reports whether the
// SUBSCRIBE was confirmed before the failure.
func (s *RedisSubscriber) consume(ctx context.Context, topic string, out chan<- *message.Message, markReady func(), resumed bool) (subscribed bool, err error) {
	conn, err := s.cfg.Dial(ctx)
	if err != nil {
		return false, err
	}
	psc := redis.PubSubConn{Conn: conn}
	defer psc.Close()

	if err := psc.Subscribe(topic); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	done := make(chan struct{})
	defer close(done)

	// [HEALTH_WATCHER] Pings keep the read deadline fed and expose dead peers;
	// closing the connection unblocks Receive on shutdown.
	go func() {
		ticker := time.NewTicker(s.cfg.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-s.closing:
				_ = psc.Close()
				return
			case <-ctx.Done():
				_ = psc.Close()
				return
			case <-ticker.C:
				if err := psc.Ping(""); err != nil {
					_ = psc.Close()
					return
				}
			}
		}
	}()

	for {
		switch v := psc.Receive().(type) {
		case redis.Message:
			s.forward(ctx, v.Channel, v.Data, out)
		case redis.Subscription:
			if v.Kind == "subscribe" && v.Channel == topic {
				subscribed = true
				markReady()
				if resumed {
					s.logger.Info("FEED_SUBSCRIPTION_RESTORED", "topic", topic)
				} else {
					s.logger.Info("FEED_SUBSCRIBED", "topic", topic)
				}
			}
		case redis.Pong:
		case error:
			return subscribed, v
		}
	}
}

// forward hands one message to the router and waits for it to be handled.
// A nack is logged and not redelivered.
func (s *RedisSubscriber) forward(ctx context.Context, channel string, payload []byte, out chan<- *message.Message) {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("channel", channel)

	select {
	case out <- msg:
	case <-s.closing:
		return
	case <-ctx.Done():
		return
	}

	select {
	case <-msg.Acked():
	case <-msg.Nacked():
		s.logger.Warn("FEED_MESSAGE_NACKED", "msg_id", msg.UUID, "channel", channel)
	case <-s.closing:
	case <-ctx.Done():
	}
}

func (s *RedisSubscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
	return nil
}
