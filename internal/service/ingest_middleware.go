package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// IngestMiddleware implements [DECORATOR_PATTERN] to add observability
// to ingestion without touching business logic.
type IngestMiddleware struct {
	Next   Ingester
	Logger *slog.Logger
}

func NewIngestMiddleware(next Ingester, logger *slog.Logger) Ingester {
	return &IngestMiddleware{
		Next:   next,
		Logger: logger,
	}
}

func (m *IngestMiddleware) Ingest(ctx context.Context, ns model.Namespace, rec model.EventRecord) error {
	start := time.Now()

	err := m.Next.Ingest(ctx, ns, rec)

	duration := time.Since(start)
	switch {
	case err == nil:
		m.Logger.Debug("EVENT_INGESTED",
			"namespace", ns,
			"event_id", rec.ID,
			"event_type", rec.Type,
			"duration_ms", duration.Milliseconds(),
		)
	case model.IsClientInput(err):
		m.Logger.Debug("EVENT_REJECTED", "namespace", ns, "err", err)
	default:
		m.Logger.Error("EVENT_INGEST_FAILED",
			"namespace", ns,
			"event_id", rec.ID,
			"err", err,
			"duration_ms", duration.Milliseconds(),
		)
	}

	return err
}
