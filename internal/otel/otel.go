package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"

	"github.com/hanpama/grpc-interop/internal/eventbus"
	"github.com/hanpama/grpc-interop/internal/events"
	"github.com/hanpama/grpc-interop/internal/reqid"
)

// Setup configures OpenTelemetry and attaches eventbus subscribers.
// If endpoint is empty, no telemetry is configured.
func Setup(endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := newSubscriber(otel.Tracer("grpc-interop")).register()

	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// subscriber turns case and RPC events into spans. Case spans are keyed by
// the case id of the context, RPC spans by call id.
type subscriber struct {
	tracer    trace.Tracer
	caseSpans sync.Map // case id -> trace.Span
	rpcSpans  sync.Map // call id -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber {
	return &subscriber{tracer: tracer}
}

func (s *subscriber) register() (unsubscribe func()) {
	subs := []func(){
		eventbus.Subscribe(s.caseStart),
		eventbus.Subscribe(s.caseFinish),
		eventbus.Subscribe(s.rpcStart),
		eventbus.Subscribe(s.rpcFinish),
	}
	return func() {
		for _, u := range subs {
			u()
		}
	}
}

func (s *subscriber) caseStart(ctx context.Context, e events.CaseStart) {
	id, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "interop.testcase")
	span.SetAttributes(
		attribute.String("interop.test_case", e.TestCase),
		attribute.String("net.peer.name", e.Target),
	)
	s.caseSpans.Store(id, span)
}

func (s *subscriber) caseFinish(ctx context.Context, e events.CaseFinish) {
	id, _ := reqid.FromContext(ctx)
	v, ok := s.caseSpans.LoadAndDelete(id)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.Bool("interop.passed", e.Passed),
		attribute.Int("interop.assertion_count", e.Assertions),
	)
	if !e.Passed {
		span.SetStatus(otelcodes.Error, "test case failed")
	}
	span.End()
}

func (s *subscriber) rpcStart(ctx context.Context, e events.RPCStart) {
	parent := ctx
	if id, ok := reqid.FromContext(ctx); ok {
		if v, ok := s.caseSpans.Load(id); ok {
			parent = trace.ContextWithSpan(ctx, v.(trace.Span))
		}
	}
	_, span := s.tracer.Start(parent, "grpc.client", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.RPCSystemKey.String("grpc"),
		semconv.RPCServiceKey.String(e.Service),
		semconv.RPCMethodKey.String(e.Method),
		attribute.String("rpc.grpc.kind", string(e.Kind)),
		attribute.String("net.peer.name", e.Target),
	)
	s.rpcSpans.Store(e.CallID, span)
}

func (s *subscriber) rpcFinish(_ context.Context, e events.RPCFinish) {
	v, ok := s.rpcSpans.LoadAndDelete(e.CallID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.Int("rpc.grpc.status_code", int(e.Code)),
		attribute.String("grpc.code", e.Code.String()),
	)
	if e.Code != codes.OK {
		span.SetStatus(otelcodes.Error, e.Code.String())
	}
	if e.Err != nil {
		span.RecordError(e.Err)
	}
	span.End()
}
