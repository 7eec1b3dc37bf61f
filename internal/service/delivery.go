package service

import (
	"context"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
	"github.com/webitel/cloudevents-bin/internal/domain/registry"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR LIVE FEED TRANSPORTS
type Deliverer interface {
	Subscribe(ctx context.Context, ns model.Namespace) (registry.Sink, error)
	Unsubscribe(s registry.Sink)
}

type DeliveryService struct {
	hub registry.Hubber
}

func NewDeliveryService(hub registry.Hubber) *DeliveryService {
	return &DeliveryService{
		hub: hub,
	}
}

// [SUBSCRIBE] The sink only sees records delivered after this call returns.
func (s *DeliveryService) Subscribe(ctx context.Context, ns model.Namespace) (registry.Sink, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	return s.hub.Attach(ctx, ns), nil
}

// [UNSUBSCRIBE] Safe to call more than once.
func (s *DeliveryService) Unsubscribe(sink registry.Sink) {
	s.hub.Detach(sink)
}
