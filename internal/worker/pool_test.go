package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool(testLogger(), 4)

	var n atomic.Int32
	for range 10 {
		for !p.Go("count", func(context.Context) error { n.Add(1); return nil }) {
			time.Sleep(time.Millisecond)
		}
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n.Load() != 10 {
		t.Errorf("ran %d tasks, want 10", n.Load())
	}
}

func TestPool_ContainsErrorsAndPanics(t *testing.T) {
	p := NewPool(testLogger(), 2)

	p.Go("fails", func(context.Context) error { return errors.New("nope") })
	for !p.Go("panics", func(context.Context) error { panic("boom") }) {
		time.Sleep(time.Millisecond)
	}

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.Failed() != 2 {
		t.Errorf("failed = %d, want 2", p.Failed())
	}
}

func TestPool_DropsWhenSaturated(t *testing.T) {
	p := NewPool(testLogger(), 1)

	release := make(chan struct{})
	if !p.Go("blocker", func(context.Context) error { <-release; return nil }) {
		t.Fatal("first task must be accepted")
	}
	if p.Go("overflow", func(context.Context) error { return nil }) {
		t.Error("task beyond the limit must be dropped")
	}
	if p.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", p.Dropped())
	}

	close(release)
	_ = p.Stop(context.Background())

	if p.Go("late", func(context.Context) error { return nil }) {
		t.Error("stopped pool must refuse tasks")
	}
}

func TestPool_StopCancelsAfterGrace(t *testing.T) {
	p := NewPool(testLogger(), 1)

	p.Go("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop err = %v, want deadline exceeded", err)
	}
}
