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
	"github.com/nats-io/nats.go"
)

var (
	_ message.Publisher  = (*NATSPublisher)(nil)
	_ message.Subscriber = (*NATSSubscriber)(nil)
)

// connectNATS dials with unlimited reconnects. The client re-establishes
// subscriptions after a reconnect; the window in between is logged.
func connectNATS(url, name string, logger *slog.Logger, opts ...nats.Option) (*nats.Conn, error) {
	defaults := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("FEED_SUBSCRIPTION_LOST", "driver", "nats", "conn", name, "err", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("FEED_SUBSCRIPTION_RESTORED", "driver", "nats", "conn", name, "url", c.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			// Slow consumer drops end up here.
			logger.Warn("FEED_ASYNC_ERROR", "driver", "nats", "subject", subject, "err", err)
		}),
	}

	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes raw payloads to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, logger *slog.Logger, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connectNATS(url, "cloudevents-bin-publisher", logger, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		if err := p.conn.Publish(topic, msg.Payload); err != nil {
			return fmt.Errorf("nats publish to %s: %w", topic, err)
		}
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error { return p.conn.Flush() }

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber turns a core NATS subscription into a watermill stream.
type NATSSubscriber struct {
	conn   *nats.Conn
	logger *slog.Logger

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewNATSSubscriber(url string, logger *slog.Logger, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connectNATS(url, "cloudevents-bin-subscriber", logger, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{
		conn:    nc,
		logger:  logger,
		closing: make(chan struct{}),
	}, nil
}

func (s *NATSSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	select {
	case <-s.closing:
		return nil, errors.New("nats subscriber: closed")
	default:
	}

	out := make(chan *message.Message)

	var (
		mu     sync.Mutex
		closed bool
	)

	sub, err := s.conn.Subscribe(topic, func(m *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		s.forward(ctx, m, out)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so that messages published on other connections are routed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
		case <-s.closing:
		}
		_ = sub.Unsubscribe()

		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()

	return out, nil
}

func (s *NATSSubscriber) forward(ctx context.Context, m *nats.Msg, out chan<- *message.Message) {
	msg := message.NewMessage(watermill.NewUUID(), m.Data)
	msg.Metadata.Set("channel", m.Subject)

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
		s.logger.Warn("FEED_MESSAGE_NACKED", "msg_id", msg.UUID, "channel", m.Subject)
	case <-s.closing:
	case <-ctx.Done():
	}
}

func (s *NATSSubscriber) Close() error {
	s.closeOnce.Do(func() { close(s.closing) })
	s.wg.Wait()
	s.conn.Close()
	return nil
}
