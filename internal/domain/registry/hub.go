/*
Package registry is the per-process live subscriber registry.

Key Architectural Concepts:
  - Namespace Cells: every namespace with at least one live connection on this
    process is represented by a cell that owns that namespace's sinks and a
    mailbox drained by a dedicated goroutine.
  - Decoupling & Backpressure: Deliver only enqueues into the cell mailbox, so
    the delivery worker is never held up by a slow connection.
  - Isolation: a sink that cannot accept a record is detached on its own;
    other sinks of the namespace, and other namespaces, are unaffected.
  - Concurrency Management: the namespace map is guarded by one RWMutex with
    short non-suspending critical sections; each cell guards its own sink set.
*/
package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// Hubber defines the gateway for live sink management and record routing.
type Hubber interface {
	Attach(ctx context.Context, ns model.Namespace) Sink
	Detach(s Sink)
	Deliver(ns model.Namespace, rec model.EventRecord) bool
	IsConnected(ns model.Namespace) bool
	Stats() model.HubStats
	Shutdown()
}

var _ Hubber = (*Hub)(nil)

// Hub implements a [NAMESPACE_REGISTRY] using the cell pattern.
type Hub struct {
	mu     sync.RWMutex
	cells  map[model.Namespace]*cell
	closed bool

	config hubConfig
	logger *slog.Logger
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		cells:  make(map[model.Namespace]*cell),
		config: defaultConfig(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach registers a new sink for ns. The sink is bound to ctx: cancelling it
// closes the sink, but the owner must still call Detach.
func (h *Hub) Attach(ctx context.Context, ns model.Namespace) Sink {
	s := newSink(ctx, ns, h.config.sinkBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		// [SHUTDOWN_GATE] Hand back an already closed sink so the caller exits at once.
		s.Close()
		return s
	}

	// [LAZY_INIT] Create the cell only when the first connection arrives.
	c, ok := h.cells[ns]
	if !ok {
		c = newCell(ns, h.config, h.Detach, h.logger)
		h.cells[ns] = c
	}
	c.attach(s)

	return s
}

// Detach performs [GRACEFUL_RECLAMATION]: it closes the sink and drops the
// namespace cell once it is empty. Calling it again is a no-op.
func (h *Hub) Detach(s Sink) {
	if s == nil {
		return
	}
	s.Close()

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.cells[s.Namespace()]
	if !ok {
		return
	}
	if _, empty := c.detach(s.ID()); empty {
		c.stop()
		delete(h.cells, s.Namespace())
	}
}

// Deliver routes rec to the namespace cell. It returns false when no sink
// of ns is attached here or the cell mailbox overflowed.
func (h *Hub) Deliver(ns model.Namespace, rec model.EventRecord) bool {
	h.mu.RLock()
	c, ok := h.cells[ns]
	h.mu.RUnlock()

	if !ok {
		return false
	}
	return c.push(rec)
}

func (h *Hub) IsConnected(ns model.Namespace) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.cells[ns]
	return ok
}

func (h *Hub) Stats() model.HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := model.HubStats{Namespaces: len(h.cells)}
	for _, c := range h.cells {
		st.Sinks += c.size()
	}
	return st
}

// Shutdown stops every cell and closes every sink. Connections observe
// their sink's Done channel and detach themselves.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	cells := h.cells
	h.cells = make(map[model.Namespace]*cell)
	h.closed = true
	h.mu.Unlock()

	for _, c := range cells {
		c.stop()
		c.closeAll()
	}

	h.logger.Info("HUB_SHUTDOWN", "namespaces", len(cells))
}
