// Package worker runs fire-and-forget background tasks (deferred trims,
// handshake probes) on a bounded pool. A failing or panicking task is logged
// and never reaches the code that scheduled it.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of background work. ctx is cancelled when the pool stops.
type Task func(ctx context.Context) error

// Spawner is what services depend on.
type Spawner interface {
	// Go schedules task without waiting for it. It returns false when the
	// pool is saturated or stopped and the task was dropped.
	Go(name string, task Task) bool
}

var _ Spawner = (*Pool)(nil)

type Pool struct {
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu      sync.RWMutex
	stopped bool

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewPool caps concurrently running tasks at limit.
func NewPool(logger *slog.Logger, limit int) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	g := new(errgroup.Group)
	g.SetLimit(limit)

	return &Pool{
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		group:  g,
	}
}

func (p *Pool) Go(name string, task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.dropped.Add(1)
		return false
	}

	ok := p.group.TryGo(func() error {
		p.run(name, task)
		// Errors are contained in run; the group only tracks completion.
		return nil
	})
	if !ok {
		p.dropped.Add(1)
		p.logger.Warn("TASK_DROPPED_POOL_SATURATED", "task", name)
	}
	return ok
}

func (p *Pool) run(name string, task Task) {
	start := time.Now()

	// [PANIC_RECOVERY]
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			p.logger.Error("TASK_PANIC_RECOVERED",
				"task", name,
				"err", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := task(p.ctx); err != nil {
		p.failed.Add(1)
		p.logger.Warn("TASK_FAILED",
			"task", name,
			"err", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	p.logger.Debug("TASK_DONE", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

// Stop refuses new tasks and waits for running ones until ctx expires, at
// which point the remaining tasks are cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool: stop: %w", ctx.Err())
	}
}

// Dropped reports how many tasks were refused.
func (p *Pool) Dropped() uint64 { return p.dropped.Load() }

// Failed reports how many tasks returned an error or panicked.
func (p *Pool) Failed() uint64 { return p.failed.Load() }
