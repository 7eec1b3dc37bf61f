package event

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

var (
	ErrMissingNamespace = errors.New("feed message: missing namespace")
	ErrMissingEvent     = errors.New("feed message: missing event")
)

// FeedMessage is the unit carried on the fan-out bus. It has no sequence
// number: ordering is whatever the backbone delivers.
type FeedMessage struct {
	Namespace model.Namespace
	Record    model.EventRecord
}

// Encode renders the wire form {"namespace": ..., "event": ...}.
// The event document is embedded verbatim.
func (m FeedMessage) Encode() ([]byte, error) {
	if m.Namespace == "" {
		return nil, ErrMissingNamespace
	}
	if m.Record.IsZero() {
		return nil, ErrMissingEvent
	}

	out, err := sjson.SetBytes(nil, "namespace", string(m.Namespace))
	if err != nil {
		return nil, fmt.Errorf("feed message: encode namespace: %w", err)
	}
	out, err = sjson.SetRawBytes(out, "event", m.Record.Raw())
	if err != nil {
		return nil, fmt.Errorf("feed message: encode event: %w", err)
	}
	return out, nil
}

// DecodeFeedMessage parses the wire form. Messages missing either part are
// reported with ErrMissingNamespace or ErrMissingEvent.
func DecodeFeedMessage(payload []byte) (FeedMessage, error) {
	if !gjson.ValidBytes(payload) {
		return FeedMessage{}, fmt.Errorf("feed message: invalid json")
	}

	doc := gjson.ParseBytes(payload)
	ns := doc.Get("namespace")
	if !ns.Exists() || ns.String() == "" {
		return FeedMessage{}, ErrMissingNamespace
	}
	ev := doc.Get("event")
	if !ev.Exists() || ev.Type == gjson.Null {
		return FeedMessage{}, ErrMissingEvent
	}

	rec, err := model.ParseEventRecord([]byte(ev.Raw))
	if err != nil {
		return FeedMessage{}, fmt.Errorf("feed message: event: %w", err)
	}

	return FeedMessage{Namespace: model.Namespace(ns.String()), Record: rec}, nil
}
