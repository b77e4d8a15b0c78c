// Package telemetry wires the pipeline's OpenTelemetry tracer, kept as
// a single named instance so every package that needs to open a span
// shares the same tracer name and resource attribution.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mickamy/xplain"

// Tracer returns the shared xplain tracer. Callers with no configured
// SDK get otel's no-op implementation, so instrumenting a hot path here
// never requires a nil check.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
