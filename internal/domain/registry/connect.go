package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
)

// Interface guard
var _ Sink = (*sink)(nil)

// [SINK] THE DELIVERY CAPABILITY OWNED BY ONE LIVE CONNECTION
// Only the cell writes into it and only the owning connection reads from it.
type Sink interface {
	ID() uuid.UUID
	Namespace() model.Namespace
	// Send enqueues a record, waiting up to timeout for buffer space.
	// It returns false if the sink is closed or stayed saturated.
	Send(rec model.EventRecord, timeout time.Duration) bool
	Recv() <-chan model.EventRecord
	// Done is closed once the sink is closed, by either side.
	Done() <-chan struct{}
	Close()
}

// [SINK] CONCRETE IMPLEMENTATION (UNEXPORTED TO FORCE INTERFACE USAGE)
type sink struct {
	id        uuid.UUID
	namespace model.Namespace
	createdAt time.Time
	ctx       context.Context
	cancelFn  context.CancelFunc

	// sendCh is never closed: receivers watch Done instead, so a concurrent
	// Send can never hit a closed channel.
	sendCh    chan model.EventRecord
	closeOnce sync.Once
}

func newSink(ctx context.Context, ns model.Namespace, bufferSize int) *sink {
	childCtx, cancel := context.WithCancel(ctx)
	return &sink{
		id:        uuid.New(),
		namespace: ns,
		createdAt: time.Now(),
		ctx:       childCtx,
		cancelFn:  cancel,
		sendCh:    make(chan model.EventRecord, bufferSize),
	}
}

func (s *sink) ID() uuid.UUID                  { return s.id }
func (s *sink) Namespace() model.Namespace     { return s.namespace }
func (s *sink) Recv() <-chan model.EventRecord { return s.sendCh }
func (s *sink) Done() <-chan struct{}          { return s.ctx.Done() }

func (s *sink) Send(rec model.EventRecord, timeout time.Duration) bool {
	// [LIFECYCLE_GATE] Never enqueue into a dead connection.
	if s.ctx.Err() != nil {
		return false
	}

	select {
	case s.sendCh <- rec:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		return false
	case s.sendCh <- rec:
		return true
	case <-timer.C:
		// [SLOW_CONSUMER] The connection is not draining; the caller detaches it.
		return false
	}
}

// Close is idempotent and safe to call from the hub and the connection concurrently.
func (s *sink) Close() {
	s.closeOnce.Do(s.cancelFn)
}
