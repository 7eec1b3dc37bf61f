package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webitel/cloudevents-bin/internal/adapter/eventlog"
	"github.com/webitel/cloudevents-bin/internal/adapter/pubsub"
	"github.com/webitel/cloudevents-bin/internal/domain/event"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
	"github.com/webitel/cloudevents-bin/internal/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/webitel/cloudevents-bin/internal/service"

// [INGEST_SERVICE] ENTRY POINT FOR EVERY ACCEPTED WEBHOOK
type Ingester interface {
	// Ingest makes rec durable for ns and broadcasts it. Only a storage
	// failure is returned; a failed broadcast is logged.
	Ingest(ctx context.Context, ns model.Namespace, rec model.EventRecord) error
}

// trimTimeout bounds a trim that had to run outside the worker pool.
const trimTimeout = 10 * time.Second

type IngestService struct {
	log        eventlog.Log
	spawner    worker.Spawner
	dispatcher pubsub.FeedDispatcher
	tracer     trace.Tracer
	logger     *slog.Logger

	// [TRIM_LANE] At most one trim is queued per namespace; appends that land
	// while it is queued are covered by it.
	trimMu      sync.Mutex
	trimPending map[model.Namespace]struct{}
}

func NewIngestService(log eventlog.Log, spawner worker.Spawner, dispatcher pubsub.FeedDispatcher, logger *slog.Logger) *IngestService {
	return &IngestService{
		log:        log,
		spawner:    spawner,
		dispatcher: dispatcher,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,

		trimPending: make(map[model.Namespace]struct{}),
	}
}

func (s *IngestService) Ingest(ctx context.Context, ns model.Namespace, rec model.EventRecord) error {
	ctx, span := s.tracer.Start(ctx, "IngestService.Ingest", trace.WithAttributes(
		attribute.String("cloudevents.namespace", string(ns)),
		attribute.String("cloudevents.event_id", rec.ID),
		attribute.String("cloudevents.event_type", rec.Type),
	))
	defer span.End()

	// [TRACE_ID] An exported trace supersedes the request id set at the edge.
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = context.WithValue(ctx, pubsub.TraceIDKey, sc.TraceID().String())
	}

	if err := ns.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	// 1. [DURABILITY] Nothing is broadcast that was not retained first.
	if err := s.log.Append(ctx, ns, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return fmt.Errorf("ingest: %w", err)
	}

	// 2. [RETENTION] Deferred; the request never waits for the trim.
	s.scheduleTrim(ns)

	// 3. [DISTRIBUTION] A lost broadcast is visible only in the logs.
	if err := s.dispatcher.Publish(ctx, event.FeedMessage{Namespace: ns, Record: rec}); err != nil {
		span.RecordError(err)
		s.logger.Error("PARTIAL_INGEST: retained but not broadcast",
			"namespace", ns,
			"event_id", rec.ID,
			"err", err,
		)
	}

	return nil
}

// scheduleTrim never drops a trim: when the pool refuses the task it runs on
// its own goroutine instead.
func (s *IngestService) scheduleTrim(ns model.Namespace) {
	s.trimMu.Lock()
	if _, ok := s.trimPending[ns]; ok {
		s.trimMu.Unlock()
		return
	}
	s.trimPending[ns] = struct{}{}
	s.trimMu.Unlock()

	task := func(ctx context.Context) error { return s.trim(ctx, ns) }
	if s.spawner.Go("trim:"+string(ns), task) {
		return
	}

	s.logger.Debug("TRIM_OUTSIDE_POOL", "namespace", ns)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), trimTimeout)
		defer cancel()
		_ = task(ctx)
	}()
}

func (s *IngestService) trim(ctx context.Context, ns model.Namespace) error {
	// Cleared before trimming so that a later append queues its own trim.
	s.trimMu.Lock()
	delete(s.trimPending, ns)
	s.trimMu.Unlock()

	if err := s.log.Trim(ctx, ns, model.MaxRetained); err != nil {
		s.logger.Warn("TRIM_FAILED", "namespace", ns, "err", err)
		return err
	}
	return nil
}
