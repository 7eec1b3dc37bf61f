package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

const (
	// MaxRetained is the number of most recent events kept per namespace.
	MaxRetained = 200

	// MaxListed caps the events-listing endpoint.
	MaxListed = MaxRetained
)

// EventRecord is one received CloudEvents event in structured JSON form.
// The raw document is kept verbatim; the core attributes are extracted once
// for logging and filtering and never written back.
type EventRecord struct {
	ID          string
	Type        string
	Source      string
	SpecVersion string
	Time        time.Time

	raw json.RawMessage
}

// ParseEventRecord validates that body is a JSON object and extracts the
// CloudEvents context attributes it carries.
func ParseEventRecord(body []byte) (EventRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return EventRecord{}, ErrNonJSONBody
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return EventRecord{}, ErrNotAnObject
	}

	rec := EventRecord{
		ID:          doc.Get("id").String(),
		Type:        doc.Get("type").String(),
		Source:      doc.Get("source").String(),
		SpecVersion: doc.Get("specversion").String(),
		raw:         append(json.RawMessage(nil), body...),
	}

	// [OPTIONAL_ATTRIBUTE] An unparseable time is passed through untouched.
	if ts := doc.Get("time"); ts.Exists() {
		if t, err := time.Parse(time.RFC3339Nano, ts.String()); err == nil {
			rec.Time = t
		}
	}

	return rec, nil
}

// Raw returns the verbatim JSON document.
func (r EventRecord) Raw() json.RawMessage { return r.raw }

// IsZero reports whether the record holds no document.
func (r EventRecord) IsZero() bool { return len(r.raw) == 0 }

func (r EventRecord) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return r.raw, nil
}

func (r *EventRecord) UnmarshalJSON(data []byte) error {
	rec, err := ParseEventRecord(data)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}
