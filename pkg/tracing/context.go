package tracing

import (
	"context"
)

// contextKey keeps tracer context values private to this package
type contextKey string

const tracerKey = contextKey("tracer")

// WithTracer returns a context carrying the given tracer. Code below
// the run loop records events through the context instead of taking a
// tracer parameter.
func WithTracer(ctx context.Context, tracer Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, tracer)
}

// GetTracer returns the context's tracer, falling back to the global
// tracer when none was installed.
func GetTracer(ctx context.Context) Tracer {
	if tracer, ok := ctx.Value(tracerKey).(Tracer); ok {
		return tracer
	}
	return GetGlobalTracer()
}

// RecordEventContext records an event on whichever tracer the context
// resolves to.
func RecordEventContext(ctx context.Context, event Event) {
	GetTracer(ctx).RecordEvent(ctx, event)
}
