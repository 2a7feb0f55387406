package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/proto"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

var (
	requestSizes  = []int{27182, 8, 1828, 45904}
	responseSizes = []int{31415, 9, 2653, 58979}
)

func clientStreaming(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	reqs := make([]proto.Message, len(requestSizes))
	for i, n := range requestSizes {
		reqs[i] = reg.EncodeStreamingInputCallRequest(testproto.StreamingInputCallRequest{Payload: payload.New(n)})
	}
	env.logf("sending %d requests", len(reqs))
	resp, err := env.Capability.ClientStream(ctx, env.method(testproto.TestServiceName, "StreamingInputCall"), reqs)
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	want := payload.Sum(requestSizes)
	got := testproto.DecodeStreamingInputCallResponse(resp)
	return []assertion.Assertion{
		callSucceeded(callOK, nil),
		assertion.Equal(fmt.Sprintf("aggregated payload size must be %d bytes", want),
			"response.aggregated_payload_size == sum(len(request.payload.body))",
			int(got.AggregatedPayloadSize), want),
	}
}

func serverStreaming(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
		ResponseType:       testproto.Compressable,
		ResponseParameters: responseParameters(responseSizes),
	})
	st, err := env.Capability.ServerStream(ctx, env.method(testproto.TestServiceName, "StreamingOutputCall"), req)
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	sizes, err := drain(st)
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	env.logf("received %d responses", len(sizes))
	return append([]assertion.Assertion{callSucceeded(callOK, nil)}, sizeChecks(sizes, responseSizes)...)
}

// pingPong exchanges one request and one response per round on a
// full-duplex call, then half-closes and expects a clean end.
func pingPong(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "FullDuplexCall"))
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	defer st.Cancel()

	var sizes []int
	ended := false
	for i := range requestSizes {
		req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
			ResponseType:       testproto.Compressable,
			ResponseParameters: responseParameters(responseSizes[i : i+1]),
			Payload:            payload.New(requestSizes[i]),
		})
		if serr := st.Send(req); serr != nil && !errors.Is(serr, io.EOF) {
			err = serr
			break
		}
		resp, rerr := st.Recv()
		if rerr != nil {
			// a clean end before every round is a short count, not a fault
			err = endOfStream(rerr)
			ended = err == nil
			break
		}
		sizes = append(sizes, testproto.DecodeStreamingOutputCallResponse(resp).Payload.BodyLen())
	}
	if err == nil && !ended {
		if err = st.CloseSend(); err == nil {
			if _, rerr := st.Recv(); rerr == nil {
				err = errors.New("unexpected response after half-close")
			} else {
				err = endOfStream(rerr)
			}
		}
	}
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	return append([]assertion.Assertion{callSucceeded(callOK, nil)}, sizeChecks(sizes, responseSizes)...)
}

func emptyStream(ctx context.Context, env Env) []assertion.Assertion {
	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "FullDuplexCall"))
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	defer st.Cancel()
	if err := st.CloseSend(); err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	sizes, err := drain(st)
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	return []assertion.Assertion{
		callSucceeded(callOK, nil),
		assertion.Equal("no response messages must be received", "len(responses) == 0", len(sizes), 0),
	}
}
