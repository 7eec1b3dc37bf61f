package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/webitel/cloudevents-bin/internal/adapter/eventlog"
	"github.com/webitel/cloudevents-bin/internal/adapter/pubsub"
	"github.com/webitel/cloudevents-bin/internal/domain/event"
	"github.com/webitel/cloudevents-bin/internal/domain/model"
	"github.com/webitel/cloudevents-bin/internal/domain/registry"
	"github.com/webitel/cloudevents-bin/internal/worker"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// inlineSpawner runs tasks synchronously so tests observe their effects.
type inlineSpawner struct {
	mu    sync.Mutex
	names []string
}

func (s *inlineSpawner) Go(name string, task worker.Task) bool {
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	_ = task(context.Background())
	return true
}

// recordingDispatcher remembers published messages and the log length
// observed at publish time.
type recordingDispatcher struct {
	log eventlog.Log
	err error

	mu       sync.Mutex
	sent     []event.FeedMessage
	lenAtPub []int
	traceIDs []string
}

func (d *recordingDispatcher) Publish(ctx context.Context, fm event.FeedMessage) error {
	n, _ := d.log.Len(ctx, fm.Namespace)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lenAtPub = append(d.lenAtPub, n)
	traceID, _ := ctx.Value(pubsub.TraceIDKey).(string)
	d.traceIDs = append(d.traceIDs, traceID)
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, fm)
	return nil
}

func (d *recordingDispatcher) Topic() string { return "test-feed" }

func record(t *testing.T, id, typ string) model.EventRecord {
	t.Helper()
	rec, err := model.ParseEventRecord([]byte(fmt.Sprintf(`{"id":%q,"type":%q,"specversion":"1.0"}`, id, typ)))
	if err != nil {
		t.Fatalf("ParseEventRecord: %v", err)
	}
	return rec
}

func TestIngestAppendsBeforePublishing(t *testing.T) {
	log := eventlog.NewMemoryLog()
	disp := &recordingDispatcher{log: log}
	svc := NewIngestService(log, &inlineSpawner{}, disp, discardLogger())

	if err := svc.Ingest(context.Background(), "ns1", record(t, "a", "t")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if len(disp.sent) != 1 || disp.sent[0].Record.ID != "a" || disp.sent[0].Namespace != "ns1" {
		t.Fatalf("unexpected published messages: %+v", disp.sent)
	}
	if disp.lenAtPub[0] != 1 {
		t.Fatalf("record not retained before publish: len=%d", disp.lenAtPub[0])
	}
}

func TestIngestStorageFailureSkipsPublish(t *testing.T) {
	log := eventlog.NewMemoryLog()
	log.FailAppends(errors.New("store down"))
	disp := &recordingDispatcher{log: log}
	spawner := &inlineSpawner{}
	svc := NewIngestService(log, spawner, disp, discardLogger())

	err := svc.Ingest(context.Background(), "ns1", record(t, "a", "t"))
	if !model.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if len(disp.lenAtPub) != 0 {
		t.Fatalf("published despite storage failure")
	}
	if len(spawner.names) != 0 {
		t.Fatalf("trim scheduled despite storage failure: %v", spawner.names)
	}
}

func TestIngestPublishFailureIsPartialSuccess(t *testing.T) {
	log := eventlog.NewMemoryLog()
	disp := &recordingDispatcher{log: log, err: errors.New("bus down")}
	svc := NewIngestService(log, &inlineSpawner{}, disp, discardLogger())

	if err := svc.Ingest(context.Background(), "ns1", record(t, "a", "t")); err != nil {
		t.Fatalf("Ingest should succeed when only publish fails: %v", err)
	}

	recs, err := log.Read(context.Background(), "ns1", 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("record not retained: %v %v", recs, err)
	}
}

func TestIngestKeepsLogBounded(t *testing.T) {
	log := eventlog.NewMemoryLog()
	svc := NewIngestService(log, &inlineSpawner{}, &recordingDispatcher{log: log}, discardLogger())

	ctx := context.Background()
	for i := 0; i < model.MaxRetained+5; i++ {
		if err := svc.Ingest(ctx, "ns1", record(t, fmt.Sprint(i), "t")); err != nil {
			t.Fatalf("Ingest %d: %v", i, err)
		}
	}

	n, err := log.Len(ctx, "ns1")
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != model.MaxRetained {
		t.Fatalf("len = %d, want %d", n, model.MaxRetained)
	}

	recs, _ := log.Read(ctx, "ns1", 1)
	if recs[0].ID != fmt.Sprint(model.MaxRetained+4) {
		t.Fatalf("newest record = %q", recs[0].ID)
	}
}

func TestIngestConvergesWhenPoolIsSaturated(t *testing.T) {
	pool := worker.NewPool(discardLogger(), 2)
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	for i := 0; i < 2; i++ {
		started := make(chan struct{})
		ok := pool.Go(fmt.Sprintf("handshake:slow-%d", i), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
		if !ok {
			t.Fatalf("could not occupy pool slot %d", i)
		}
		<-started
	}
	defer func() {
		unblock()
		_ = pool.Stop(context.Background())
	}()

	log := eventlog.NewMemoryLog()
	svc := NewIngestService(log, pool, &recordingDispatcher{log: log}, discardLogger())

	ctx := context.Background()
	for i := 0; i < model.MaxRetained+50; i++ {
		if err := svc.Ingest(ctx, "ns1", record(t, fmt.Sprint(i), "t")); err != nil {
			t.Fatalf("Ingest %d: %v", i, err)
		}
	}

	// The pool is still full: trims must have run without it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := log.Len(ctx, "ns1")
		if err != nil {
			t.Fatalf("Len: %v", err)
		}
		if n == model.MaxRetained {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("log never converged: len=%d, want %d (pool dropped %d)", n, model.MaxRetained, pool.Dropped())
		}
		time.Sleep(10 * time.Millisecond)
	}
	unblock()

	recs, _ := log.Read(ctx, "ns1", 1)
	if recs[0].ID != fmt.Sprint(model.MaxRetained+49) {
		t.Fatalf("newest record = %q", recs[0].ID)
	}
}

func TestIngestCarriesTraceIDOntoBus(t *testing.T) {
	log := eventlog.NewMemoryLog()
	disp := &recordingDispatcher{log: log}
	svc := NewIngestService(log, &inlineSpawner{}, disp, discardLogger())

	ctx := context.WithValue(context.Background(), pubsub.TraceIDKey, "req-1")
	if err := svc.Ingest(ctx, "ns1", record(t, "a", "t")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if disp.traceIDs[0] != "req-1" {
		t.Fatalf("trace id = %q, want req-1", disp.traceIDs[0])
	}
}

func TestIngestPrefersRecordedTrace(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	log := eventlog.NewMemoryLog()
	disp := &recordingDispatcher{log: log}
	svc := NewIngestService(log, &inlineSpawner{}, disp, discardLogger())
	svc.tracer = tp.Tracer(tracerName)

	ctx := context.WithValue(context.Background(), pubsub.TraceIDKey, "req-1")
	if err := svc.Ingest(ctx, "ns1", record(t, "a", "t")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	got := disp.traceIDs[0]
	if got == "req-1" || len(got) != 32 {
		t.Fatalf("trace id = %q, want the span's 32 hex digit trace id", got)
	}
}

func TestIngestTrimFailureDoesNotFailRequest(t *testing.T) {
	log := eventlog.NewMemoryLog()
	log.FailTrims(errors.New("trim down"))
	svc := NewIngestService(log, &inlineSpawner{}, &recordingDispatcher{log: log}, discardLogger())

	if err := svc.Ingest(context.Background(), "ns1", record(t, "a", "t")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
}

func TestIngestRejectsEmptyNamespace(t *testing.T) {
	log := eventlog.NewMemoryLog()
	svc := NewIngestService(log, &inlineSpawner{}, &recordingDispatcher{log: log}, discardLogger())

	err := svc.Ingest(context.Background(), "", record(t, "a", "t"))
	if !model.IsClientInput(err) {
		t.Fatalf("expected client input error, got %v", err)
	}
}

func TestIngestMiddlewarePassesThrough(t *testing.T) {
	log := eventlog.NewMemoryLog()
	log.FailAppends(errors.New("store down"))
	inner := NewIngestService(log, &inlineSpawner{}, &recordingDispatcher{log: log}, discardLogger())
	svc := NewIngestMiddleware(inner, discardLogger())

	if err := svc.Ingest(context.Background(), "ns1", record(t, "a", "t")); !model.IsStorage(err) {
		t.Fatalf("decorator changed the error: %v", err)
	}
}

func TestEventServiceList(t *testing.T) {
	ctx := context.Background()
	log := eventlog.NewMemoryLog()
	for i := 0; i < 250; i++ {
		typ := "even"
		if i%2 == 1 {
			typ = "odd"
		}
		if err := log.Append(ctx, "ns1", record(t, fmt.Sprint(i), typ)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	svc := NewEventService(log)

	tests := []struct {
		name      string
		q         ListQuery
		wantLen   int
		wantFirst string
	}{
		{"default is capped", ListQuery{}, model.MaxListed, "249"},
		{"explicit limit", ListQuery{Limit: 3}, 3, "249"},
		{"limit above cap", ListQuery{Limit: 1000}, model.MaxListed, "249"},
		{"type filter over the retained window", ListQuery{Type: "even"}, 100, "248"},
		{"type filter with limit", ListQuery{Type: "odd", Limit: 2}, 2, "249"},
		{"unknown type", ListQuery{Type: "nope"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := svc.List(ctx, "ns1", tt.q)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(recs) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(recs), tt.wantLen)
			}
			if tt.wantLen > 0 && recs[0].ID != tt.wantFirst {
				t.Fatalf("first = %q, want %q", recs[0].ID, tt.wantFirst)
			}
		})
	}
}

func TestEventServiceUnknownNamespace(t *testing.T) {
	svc := NewEventService(eventlog.NewMemoryLog())

	recs, err := svc.List(context.Background(), "never-used", ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", recs)
	}
}

func TestDeliveryServiceSubscribe(t *testing.T) {
	hub := registry.NewHub(discardLogger())
	defer hub.Shutdown()
	svc := NewDeliveryService(hub)

	if _, err := svc.Subscribe(context.Background(), ""); !model.IsClientInput(err) {
		t.Fatalf("expected client input error, got %v", err)
	}

	sink, err := svc.Subscribe(context.Background(), "ns1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !hub.IsConnected("ns1") {
		t.Fatal("namespace not connected after Subscribe")
	}

	svc.Unsubscribe(sink)
	svc.Unsubscribe(sink)
	if hub.IsConnected("ns1") {
		t.Fatal("namespace still connected after Unsubscribe")
	}
	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("sink not closed after Unsubscribe")
	}
}

func TestProberCallsBackOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("probe method = %s", r.Method)
		}
		hits.Add(1)
	}))
	defer srv.Close()

	p := NewHandshakeProber(&inlineSpawner{}, time.Second, time.Minute, discardLogger())

	if !p.Probe(srv.URL + "/approve") {
		t.Fatal("first probe not scheduled")
	}
	if p.Probe(srv.URL + "/approve") {
		t.Fatal("duplicate probe scheduled")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("callback hits = %d, want 1", got)
	}
}

func TestProberRejectsInvalidCallbacks(t *testing.T) {
	spawner := &inlineSpawner{}
	p := NewHandshakeProber(spawner, time.Second, time.Minute, discardLogger())

	for _, cb := range []string{"", "not a url", "ftp://example.com/x", "http://", "/relative"} {
		if p.Probe(cb) {
			t.Errorf("Probe(%q) scheduled", cb)
		}
	}
	if len(spawner.names) != 0 {
		t.Fatalf("tasks spawned for invalid callbacks: %v", spawner.names)
	}
}

func TestProberBreakerOpensOnFailingHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHandshakeProber(&inlineSpawner{}, time.Second, time.Minute, discardLogger())

	for i := 0; i < probeTripFailures+3; i++ {
		p.Probe(fmt.Sprintf("%s/cb?n=%d", srv.URL, i))
	}

	if got := hits.Load(); got != probeTripFailures {
		t.Fatalf("callback hits = %d, want %d (breaker should be open)", got, probeTripFailures)
	}
}
