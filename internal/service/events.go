package service

import (
	"context"
	"fmt"

	"github.com/webitel/cloudevents-bin/internal/adapter/eventlog"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// ListQuery narrows a history read.
type ListQuery struct {
	// Limit is clamped to [1, model.MaxListed]; zero means MaxListed.
	Limit int
	// Type keeps only records whose CloudEvents type matches exactly.
	Type string
}

// EventReader serves the read path of the HTTP surface.
type EventReader interface {
	List(ctx context.Context, ns model.Namespace, q ListQuery) ([]model.EventRecord, error)
}

type EventService struct {
	log eventlog.Log
}

func NewEventService(log eventlog.Log) *EventService {
	return &EventService{log: log}
}

// List returns the retained records of ns, most recent first.
func (s *EventService) List(ctx context.Context, ns model.Namespace, q ListQuery) ([]model.EventRecord, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 || limit > model.MaxListed {
		limit = model.MaxListed
	}

	// [TYPE_FILTER] Filtering runs over the whole retained window, then caps.
	readLimit := limit
	if q.Type != "" {
		readLimit = model.MaxRetained
	}

	recs, err := s.log.Read(ctx, ns, readLimit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	if q.Type != "" {
		filtered := recs[:0]
		for _, rec := range recs {
			if rec.Type == q.Type {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		recs = []model.EventRecord{}
	}
	return recs, nil
}
