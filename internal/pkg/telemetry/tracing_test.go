package telemetry

import (
	"context"
	"testing"
)

func TestInitTracer_Stdout(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "flightmap-test", "stdout", "")
	if err != nil {
		t.Fatalf("InitTracer: %v", err)
	}
	ShutdownWithTimeout(shutdown)
}

func TestInitTracer_UnknownExporter(t *testing.T) {
	if _, err := InitTracer(context.Background(), "flightmap-test", "zipkin", ""); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestShutdownWithTimeout_Nil(t *testing.T) {
	ShutdownWithTimeout(nil)
}
