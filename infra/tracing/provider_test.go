package tracing

import (
	"context"
	"testing"

	"github.com/webitel/cloudevents-bin/config"
)

var testService = Service{Name: "test", Namespace: "webitel", Version: "0.0.0"}

func TestSetupDisabledIsNoop(t *testing.T) {
	for _, cfg := range []config.OTelConfig{
		{},
		{Enabled: true},
		{Enabled: false, Endpoint: "http://localhost:4318"},
	} {
		shutdown, err := Setup(context.Background(), cfg, testService)
		if err != nil {
			t.Fatalf("Setup(%+v): %v", cfg, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}
}

func TestSetupEnabled(t *testing.T) {
	cfg := config.OTelConfig{Enabled: true, Endpoint: "http://127.0.0.1:4318"}

	shutdown, err := Setup(context.Background(), cfg, testService)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	// Nothing was recorded, so flushing does not reach the collector.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
