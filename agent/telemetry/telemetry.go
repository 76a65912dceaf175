// Package telemetry defines the logging, metrics, and tracing contracts used
// throughout the agent core. Implementations typically delegate to Clue and
// OpenTelemetry but the interfaces are intentionally small so tests can
// provide lightweight stubs.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the agent core. The
// surface is limited to the levels the orchestrator, router, planner, and
// registry actually emit (decision warnings, precondition debug traces,
// recovered-panic errors); add Info back here if a caller needs it.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes the counter helper the orchestrator and router use for
// run/hit counting.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
}

// Tracer abstracts span creation so core code remains agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
}

// Span represents an in-flight tracing span. Only End is called today (the
// orchestrator wraps a run in one span per Run call); event/status/error
// reporting is not yet wired to any caller.
type Span interface {
	End(opts ...trace.SpanEndOption)
}
