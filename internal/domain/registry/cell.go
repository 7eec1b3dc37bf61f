package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// cell is the [ISOLATED_DELIVERY] unit of one namespace: every sink attached
// to the namespace on this process plus a mailbox drained by its own goroutine.
type cell struct {
	namespace model.Namespace

	// [MAILBOX]
	// Decouples the delivery worker from slow connections: Push never blocks.
	mailbox chan model.EventRecord

	// [SESSIONS]
	// Mutated only under mu; the lock is never held while sending.
	sinks map[uuid.UUID]Sink
	mu    sync.RWMutex

	sendTimeout time.Duration
	onFailed    func(Sink)
	logger      *slog.Logger

	doneCh   chan struct{}
	stopOnce sync.Once
}

func newCell(ns model.Namespace, cfg hubConfig, onFailed func(Sink), logger *slog.Logger) *cell {
	c := &cell{
		namespace:   ns,
		mailbox:     make(chan model.EventRecord, cfg.mailboxSize),
		sinks:       make(map[uuid.UUID]Sink),
		sendTimeout: cfg.sendTimeout,
		onFailed:    onFailed,
		logger:      logger,
		doneCh:      make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *cell) push(rec model.EventRecord) bool {
	select {
	case <-c.doneCh:
		return false
	default:
	}

	select {
	case c.mailbox <- rec:
		return true
	default:
		c.logger.Warn("CELL_MAILBOX_FULL", "namespace", c.namespace, "event_id", rec.ID)
		return false
	}
}

func (c *cell) attach(s Sink) {
	c.mu.Lock()
	c.sinks[s.ID()] = s
	c.mu.Unlock()
}

// detach removes the sink and reports whether it was present and whether the cell is now empty.
func (c *cell) detach(id uuid.UUID) (removed, empty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, removed = c.sinks[id]
	delete(c.sinks, id)
	return removed, len(c.sinks) == 0
}

func (c *cell) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sinks)
}

func (c *cell) snapshot() []Sink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Sink, 0, len(c.sinks))
	for _, s := range c.sinks {
		out = append(out, s)
	}
	return out
}

func (c *cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case rec := <-c.mailbox:
			c.deliver(rec)
		}
	}
}

func (c *cell) deliver(rec model.EventRecord) {
	for _, s := range c.snapshot() {
		if s.Send(rec, c.sendTimeout) {
			continue
		}
		// [ISOLATION] One failed sink is dropped; the rest still receive the record.
		c.logger.Debug("SINK_DELIVERY_FAILED",
			"namespace", c.namespace,
			"sink_id", s.ID(),
			"event_id", rec.ID,
		)
		c.onFailed(s)
	}
}

func (c *cell) stop() {
	c.stopOnce.Do(func() { close(c.doneCh) })
}

func (c *cell) closeAll() {
	for _, s := range c.snapshot() {
		s.Close()
	}
}
