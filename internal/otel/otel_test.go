package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc/codes"

	"github.com/hanpama/grpc-interop/internal/eventbus"
	"github.com/hanpama/grpc-interop/internal/events"
	"github.com/hanpama/grpc-interop/internal/reqid"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup("", "svc")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func attrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestSubscriber_CaseParentsCalls(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := newSubscriber(tp.Tracer("test")).register()
	t.Cleanup(unsubscribe)

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.CaseStart{TestCase: "status_code_and_message", Target: "127.0.0.1:10000"})
	eventbus.Publish(ctx, events.RPCStart{CallID: 7, Service: "grpc.testing.TestService", Method: "UnaryCall", Kind: events.Unary, Target: "127.0.0.1:10000"})
	eventbus.Publish(ctx, events.RPCFinish{CallID: 7, Service: "grpc.testing.TestService", Method: "UnaryCall", Code: codes.Unknown, Err: errors.New("test status message")})
	eventbus.Publish(ctx, events.CaseFinish{TestCase: "status_code_and_message", Passed: false, Assertions: 4})

	ended := rec.Ended()
	require.Len(t, ended, 2)
	call, tc := ended[0], ended[1]

	require.Equal(t, "grpc.client", call.Name())
	require.Equal(t, "interop.testcase", tc.Name())
	require.Equal(t, tc.SpanContext().SpanID(), call.Parent().SpanID())
	require.Equal(t, tc.SpanContext().TraceID(), call.SpanContext().TraceID())

	ca := attrs(call)
	require.Equal(t, "UnaryCall", ca["rpc.method"].AsString())
	require.Equal(t, int64(2), ca["rpc.grpc.status_code"].AsInt64())
	require.Equal(t, otelcodes.Error, call.Status().Code)
	require.Len(t, call.Events(), 1)

	ta := attrs(tc)
	require.Equal(t, "status_code_and_message", ta["interop.test_case"].AsString())
	require.False(t, ta["interop.passed"].AsBool())
	require.Equal(t, int64(4), ta["interop.assertion_count"].AsInt64())
}

func TestSubscriber_UnmatchedFinishIsIgnored(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	unsubscribe := newSubscriber(tp.Tracer("test")).register()
	t.Cleanup(unsubscribe)

	eventbus.Publish(context.Background(), events.RPCFinish{CallID: 1})
	eventbus.Publish(context.Background(), events.CaseFinish{TestCase: "empty_unary"})
	require.Empty(t, rec.Ended())
}
