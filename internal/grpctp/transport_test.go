package grpctp

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/eventbus"
	"github.com/hanpama/grpc-interop/internal/events"
	"github.com/hanpama/grpc-interop/internal/interoptest"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

func dial(t *testing.T, opts ...interoptest.Option) *Conn {
	t.Helper()
	srv := interoptest.Start(t, opts...)
	conn, err := Establish(context.Background(), srv.Endpoint(), WithDialOptions(srv.DialOptions()...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestUnary(t *testing.T) {
	conn := dial(t)
	reg := testproto.Default()

	resp, err := conn.Unary(context.Background(), reg.Method(testproto.TestServiceName, "UnaryCall"),
		reg.EncodeSimpleRequest(testproto.SimpleRequest{ResponseSize: 314159, Payload: payload.New(271828)}))
	require.NoError(t, err)
	require.Equal(t, 314159, testproto.DecodeSimpleResponse(resp).Payload.BodyLen())
}

func TestUnary_StatusError(t *testing.T) {
	conn := dial(t)
	reg := testproto.Default()

	_, err := conn.Unary(context.Background(), reg.Method(testproto.TestServiceName, "UnimplementedCall"), reg.NewEmpty())
	require.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestClientStream(t *testing.T) {
	conn := dial(t)
	reg := testproto.Default()

	var reqs []proto.Message
	for _, n := range []int{27182, 8, 1828, 45904} {
		reqs = append(reqs, reg.EncodeStreamingInputCallRequest(testproto.StreamingInputCallRequest{Payload: payload.New(n)}))
	}
	resp, err := conn.ClientStream(context.Background(), reg.Method(testproto.TestServiceName, "StreamingInputCall"), reqs)
	require.NoError(t, err)
	require.EqualValues(t, 74922, testproto.DecodeStreamingInputCallResponse(resp).AggregatedPayloadSize)
}

func TestServerStream(t *testing.T) {
	conn := dial(t)
	reg := testproto.Default()

	req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
		ResponseParameters: []testproto.ResponseParameters{{Size: 31415}, {Size: 9}},
	})
	st, err := conn.ServerStream(context.Background(), reg.Method(testproto.TestServiceName, "StreamingOutputCall"), req)
	require.NoError(t, err)

	var sizes []int
	for {
		m, err := st.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, testproto.DecodeStreamingOutputCallResponse(m).Payload.BodyLen())
	}
	require.Equal(t, []int{31415, 9}, sizes)
}

func TestBidiStream_Cancel(t *testing.T) {
	conn := dial(t)
	reg := testproto.Default()

	st, err := conn.BidiStream(context.Background(), reg.Method(testproto.TestServiceName, "FullDuplexCall"))
	require.NoError(t, err)
	require.NoError(t, st.Send(reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
		ResponseParameters: []testproto.ResponseParameters{{Size: 31415}},
	})))
	_, err = st.Recv()
	require.NoError(t, err)

	st.Cancel()
	_, err = st.Recv()
	require.Equal(t, codes.Canceled, status.Code(err))
}

func TestBidiStream_CancelFinishesAbandonedCall(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var mu sync.Mutex
	var finishes []events.RPCFinish
	eventbus.On(bus, func(_ context.Context, e events.RPCFinish) {
		mu.Lock()
		finishes = append(finishes, e)
		mu.Unlock()
	})

	conn := dial(t)
	reg := testproto.Default()
	method := reg.Method(testproto.TestServiceName, "FullDuplexCall")

	// abandoned right after opening, Recv never called
	abandoned, err := conn.BidiStream(context.Background(), method)
	require.NoError(t, err)
	abandoned.Cancel()
	abandoned.Cancel()

	// ended cleanly first; a later Cancel must not finish it again
	done, err := conn.BidiStream(context.Background(), method)
	require.NoError(t, err)
	require.NoError(t, done.CloseSend())
	_, err = done.Recv()
	require.ErrorIs(t, err, io.EOF)
	done.Cancel()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finishes, 2)
	require.Equal(t, codes.Canceled, finishes[0].Code)
	require.Equal(t, codes.OK, finishes[1].Code)
}

func TestNotStreaming(t *testing.T) {
	conn := dial(t)
	reg := testproto.Default()

	_, err := conn.BidiStream(context.Background(), reg.Method(testproto.TestServiceName, "UnaryCall"))
	require.ErrorIs(t, err, ErrNotStreaming)
	_, err = conn.ClientStream(context.Background(), reg.Method(testproto.TestServiceName, "StreamingOutputCall"), nil)
	require.ErrorIs(t, err, ErrNotStreaming)
}

func TestClosed(t *testing.T) {
	conn := dial(t)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	reg := testproto.Default()
	_, err := conn.Unary(context.Background(), reg.Method(testproto.TestServiceName, "EmptyCall"), reg.NewEmpty())
	require.ErrorIs(t, err, ErrClosed)
}

func TestEstablish_Unreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	ep, err := endpoint.New("127.0.0.1", port, "")
	require.NoError(t, err)
	_, err = Establish(context.Background(), ep, WithConnectTimeout(2*time.Second))
	require.Error(t, err)
	require.Contains(t, err.Error(), ep.URI())
}

func TestEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	var mu sync.Mutex
	var starts []events.RPCStart
	var finishes []events.RPCFinish
	eventbus.On(bus, func(_ context.Context, e events.RPCStart) {
		mu.Lock()
		starts = append(starts, e)
		mu.Unlock()
	})
	eventbus.On(bus, func(_ context.Context, e events.RPCFinish) {
		mu.Lock()
		finishes = append(finishes, e)
		mu.Unlock()
	})

	conn := dial(t)
	reg := testproto.Default()
	_, err := conn.Unary(context.Background(), reg.Method(testproto.TestServiceName, "EmptyCall"), reg.NewEmpty())
	require.NoError(t, err)
	_, err = conn.Unary(context.Background(), reg.Method(testproto.UnimplementedServiceName, "UnimplementedCall"), reg.NewEmpty())
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, starts, 2)
	require.Len(t, finishes, 2)
	require.Equal(t, "grpc.testing.TestService", starts[0].Service)
	require.Equal(t, "EmptyCall", starts[0].Method)
	require.Equal(t, events.Unary, starts[0].Kind)
	require.Equal(t, starts[0].CallID, finishes[0].CallID)
	require.Equal(t, codes.OK, finishes[0].Code)
	require.Equal(t, codes.Unimplemented, finishes[1].Code)
}
