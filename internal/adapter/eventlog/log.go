// Package eventlog is the bounded, namespace-partitioned event history.
//
// Entries are kept most-recent-first. Append and Trim are separate so that
// ingestion never waits on retention bookkeeping; Trim may run late and may
// race with appends, but it always cuts relative to the stored length at the
// moment it runs.
package eventlog

import (
	"context"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// Log is the contract shared by the Redis store and the in-memory test store.
type Log interface {
	// Append writes rec to the front of the namespace sequence.
	Append(ctx context.Context, ns model.Namespace, rec model.EventRecord) error
	// Read returns up to limit records, most recent first. An unknown
	// namespace yields an empty slice and no error.
	Read(ctx context.Context, ns model.Namespace, limit int) ([]model.EventRecord, error)
	// Trim keeps at most bound records, discarding the oldest. Idempotent.
	Trim(ctx context.Context, ns model.Namespace, bound int) error
	// Len reports the stored length.
	Len(ctx context.Context, ns model.Namespace) (int, error)
	Close() error
}

func storageErr(op string, ns model.Namespace, err error) error {
	return &model.StorageError{Op: op, Namespace: ns, Err: err}
}
