package eventlog

import (
	"context"
	"sync"

	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

var _ Log = (*MemoryLog)(nil)

// MemoryLog is the in-process implementation of Log used by tests.
type MemoryLog struct {
	mu    sync.Mutex
	lists map[model.Namespace][]model.EventRecord

	failAppend error
	failTrim   error
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{lists: make(map[model.Namespace][]model.EventRecord)}
}

// FailAppends makes every following Append return err; nil restores normal operation.
func (l *MemoryLog) FailAppends(err error) {
	l.mu.Lock()
	l.failAppend = err
	l.mu.Unlock()
}

// FailTrims makes every following Trim return err; nil restores normal operation.
func (l *MemoryLog) FailTrims(err error) {
	l.mu.Lock()
	l.failTrim = err
	l.mu.Unlock()
}

func (l *MemoryLog) Append(_ context.Context, ns model.Namespace, rec model.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failAppend != nil {
		return storageErr("append", ns, l.failAppend)
	}

	list := l.lists[ns]
	list = append(list, model.EventRecord{})
	copy(list[1:], list)
	list[0] = rec
	l.lists[ns] = list
	return nil
}

func (l *MemoryLog) Read(_ context.Context, ns model.Namespace, limit int) ([]model.EventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list := l.lists[ns]
	if limit < 0 {
		limit = 0
	}
	if limit > len(list) {
		limit = len(list)
	}
	return append([]model.EventRecord{}, list[:limit]...), nil
}

func (l *MemoryLog) Trim(_ context.Context, ns model.Namespace, bound int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failTrim != nil {
		return storageErr("trim", ns, l.failTrim)
	}

	list, ok := l.lists[ns]
	if !ok || len(list) <= bound {
		return nil
	}
	if bound <= 0 {
		delete(l.lists, ns)
		return nil
	}
	l.lists[ns] = append([]model.EventRecord(nil), list[:bound]...)
	return nil
}

func (l *MemoryLog) Len(_ context.Context, ns model.Namespace) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lists[ns]), nil
}

func (l *MemoryLog) Close() error { return nil }
