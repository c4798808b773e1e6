// Package observability wires the tracing and metrics spans named in
// spec §4.8: one span per pipeline node, nested tool-call spans per Act
// iteration, plus the counters a deployment uses to watch LLM and CRUD
// call volume.
//
// Grounded on hector's pkg/observability/tracer.go (the
// enabled/noop-provider split and the TracerConfig shape). Unlike
// hector, which ships its own OTLP exporter wiring, this package
// accepts a trace.TracerProvider the caller already configured —
// go.mod carries go.opentelemetry.io/otel's core and SDK packages but
// no OTLP exporter, since no pack example needs one wired further than
// the SDK's own stdout/noop exporters, and fabricating a dependency
// nothing in SPEC_FULL.md's deployment story requires would be
// inventing rather than grounding.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func attrInt(key string, v int) attribute.KeyValue    { return attribute.Int(key, v) }
func attrString(key, v string) attribute.KeyValue     { return attribute.String(key, v) }

// TracerConfig mirrors hector's TracerConfig shape, trimmed to the
// knobs this module actually exercises.
type TracerConfig struct {
	Enabled      bool
	ServiceName  string
	SamplingRate float64
}

// InitTracer installs a TracerProvider for ServiceName and returns it
// so the caller can defer its Shutdown. When cfg.Enabled is false it
// installs (and returns) the global no-op provider.
func InitTracer(cfg TracerConfig) trace.TracerProvider {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp
	}

	ratio := cfg.SamplingRate
	if ratio <= 0 {
		ratio = 1.0
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
	otel.SetTracerProvider(tp)
	return tp
}

// Tracer returns the named tracer off the globally installed provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartNodeSpan opens one span per pipeline node (spec §4.8).
func StartNodeSpan(ctx context.Context, node string) (context.Context, trace.Span) {
	return Tracer("alfred/pipeline").Start(ctx, "node."+node)
}

// StartActIterationSpan opens a nested span for one Act loop iteration
// (spec §4.8, "nested tool-call spans per Act iteration").
func StartActIterationSpan(ctx context.Context, stepIndex, iteration int) (context.Context, trace.Span) {
	return Tracer("alfred/pipeline").Start(ctx, "act.iteration",
		trace.WithAttributes(
			attrInt("step_index", stepIndex),
			attrInt("iteration", iteration),
		),
	)
}

// StartLLMCallSpan opens a span around one call_llm invocation (spec
// §4.8).
func StartLLMCallSpan(ctx context.Context, node, model string, complexity string) (context.Context, trace.Span) {
	return Tracer("alfred/llmboundary").Start(ctx, "llm.call",
		trace.WithAttributes(
			attrString("node", node),
			attrString("model", model),
			attrString("complexity", complexity),
		),
	)
}
