package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "tx-ledger", "  ")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, ok := otel.GetTextMapPropagator().(propagation.TraceContext); !ok {
		t.Fatalf("expected W3C trace context propagator, got %T", otel.GetTextMapPropagator())
	}
}

func TestExporterOptions(t *testing.T) {
	tests := []struct {
		endpoint string
		want     int
	}{
		{"http://collector:4318", 2},
		{"https://collector:4318/v1/traces", 2},
		{"collector:4318", 3},
	}
	for _, tt := range tests {
		if got := len(exporterOptions(tt.endpoint)); got != tt.want {
			t.Errorf("exporterOptions(%q) = %d options, want %d", tt.endpoint, got, tt.want)
		}
	}
}
