package main

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/loopworklabs/loopwork/pkg/otelhelper"
)

// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func otelTracer(ctx context.Context, serviceName string) (trace.Tracer, error) {
	return otelhelper.NewTracer(ctx, serviceName)
}
