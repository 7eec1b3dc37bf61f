package feed

import (
	"errors"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/cloudevents-bin/internal/domain/event"
)

// [INFRASTRUCTURE_BRIDGE]
// Handle connects the bus to the local registry. It never returns an error:
// the bus is at-most-once and a message is never redelivered.
func (h *FeedHandler) Handle(msg *message.Message) error {
	// [PANIC_RECOVERY]
	// Safely handle runtime panics to keep the worker alive.
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("PANIC_RECOVERED",
				"err", r,
				"stack", string(debug.Stack()),
				"msg_id", msg.UUID)
		}
	}()

	// [DECODING]
	fm, err := event.DecodeFeedMessage(msg.Payload)
	switch {
	case errors.Is(err, event.ErrMissingNamespace), errors.Is(err, event.ErrMissingEvent):
		h.logger.Error("BUG: malformed feed message", "err", err, "msg_id", msg.UUID)
		return nil // ACK: Poison Pill protection.
	case err != nil:
		h.logger.Error("DECODE_FAILED", "err", err, "msg_id", msg.UUID)
		return nil
	}

	// [LOCALITY_FILTER]
	// Most processes have no subscriber for most namespaces.
	if !h.hub.IsConnected(fm.Namespace) {
		return nil
	}

	// [LOCAL_FAN_OUT]
	if !h.hub.Deliver(fm.Namespace, fm.Record) {
		h.logger.Debug("DELIVERY_SKIPPED", "namespace", fm.Namespace, "event_id", fm.Record.ID)
	}
	return nil
}
