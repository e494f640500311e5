package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mohammad-safakhou/prosearch/config"
)

func TestSetupTracingDisabledLeavesGlobalProvider(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := SetupTracing(context.Background(), config.TelemetryConfig{})
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatal("global tracer provider replaced while telemetry disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupTracingInstallsProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	cfg := config.TelemetryConfig{Enabled: true, OTLPEndpoint: "localhost:4317"}
	shutdown, err := SetupTracing(context.Background(), cfg)
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("exporting tracer provider not installed, got %T", otel.GetTracerProvider())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// No spans recorded and nothing listening on the endpoint; shutdown just
	// has to return, flush errors are acceptable here.
	_ = shutdown(ctx)
}
