package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/cloudevents-bin/internal/adapter/pubsub"
	"github.com/webitel/cloudevents-bin/internal/domain/registry"
)

const (
	// ------------------- HANDLERS ------------------------------
	DeliverFeedHandler = "DELIVER_FEED"

	handlerTimeout = 10 * time.Second
)

// FeedHandler is the delivery worker: it drains the process-wide feed
// subscription into the local subscriber registry.
type FeedHandler struct {
	hub    registry.Hubber
	logger *slog.Logger
}

func NewFeedHandler(hub registry.Hubber, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{hub: hub, logger: logger}
}

func NewWatermillRouter(wlog watermill.LoggerAdapter) (*message.Router, error) {
	return message.NewRouter(message.RouterConfig{
		CloseTimeout: 5 * time.Second,
	}, wlog)
}

// [REGISTRATION_PIPELINE]
// Exactly one subscription per process feeds the worker.
func (h *FeedHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, dispatcher pubsub.FeedDispatcher) {
	router.AddConsumerHandler(DeliverFeedHandler, dispatcher.Topic(), sub, h.Handle).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
		middleware.Timeout(handlerTimeout),
	)

	h.logger.Info("FEED_PIPELINE_READY", "topic", dispatcher.Topic())
}

// Worker owns the router lifecycle and makes its termination visible.
type Worker struct {
	router   *message.Router
	logger   *slog.Logger
	stopping atomic.Bool
	done     chan struct{}
}

func NewWorker(router *message.Router, logger *slog.Logger) *Worker {
	return &Worker{router: router, logger: logger, done: make(chan struct{})}
}

// Start runs the router in the background and waits until it is consuming.
func (w *Worker) Start(ctx context.Context) error {
	go func() {
		defer close(w.done)
		err := w.router.Run(context.Background())
		if w.stopping.Load() {
			return
		}
		// [LIVENESS] The worker must never die silently.
		w.logger.Error("DELIVERY_WORKER_STOPPED", "err", err)
	}()

	select {
	case <-w.router.Running():
		w.logger.Info("DELIVERY_WORKER_RUNNING")
		return nil
	case <-w.done:
		return errors.New("delivery worker: router exited during startup")
	case <-ctx.Done():
		return fmt.Errorf("delivery worker: start: %w", ctx.Err())
	}
}

// Done is closed when the router has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) Stop(ctx context.Context) error {
	w.stopping.Store(true)
	if err := w.router.Close(); err != nil {
		return fmt.Errorf("delivery worker: close: %w", err)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
