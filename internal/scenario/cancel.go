package scenario

import (
	"context"
	"time"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const (
	sleepingDeadline = time.Millisecond
	// asks the peer to hold its reply far past sleepingDeadline
	sleepHintUS = 1_000_000
)

func cancelAfterBegin(ctx context.Context, env Env) []assertion.Assertion {
	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "StreamingInputCall"))
	if err != nil {
		return []assertion.Assertion{callCancelled(err)}
	}
	st.Cancel()
	_, err = st.Recv()
	return []assertion.Assertion{callCancelled(err)}
}

func cancelAfterFirstResponse(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "FullDuplexCall"))
	if err != nil {
		return []assertion.Assertion{callCancelled(err)}
	}
	defer st.Cancel()
	want := responseSizes[0]
	req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
		ResponseType:       testproto.Compressable,
		ResponseParameters: responseParameters([]int{want}),
		Payload:            payload.New(requestSizes[0]),
	})
	if err = endOfStream(st.Send(req)); err != nil {
		return []assertion.Assertion{callCancelled(err)}
	}
	resp, err := st.Recv()
	if err != nil {
		return []assertion.Assertion{assertion.Check("call must be cancelled", "status.Code(err) == codes.Canceled", false,
			"first exchange did not complete: "+describe(endOfStream(err)))}
	}
	got := testproto.DecodeStreamingOutputCallResponse(resp).Payload.BodyLen()

	st.Cancel()
	_, err = st.Recv()
	return []assertion.Assertion{
		callCancelled(err),
		assertion.Equal("first response size must be 31415 bytes", "len(responses[0].payload.body) == 31415", got, want),
	}
}

func timeoutOnSleepingServer(ctx context.Context, env Env) []assertion.Assertion {
	ctx, cancel := context.WithTimeout(ctx, sleepingDeadline)
	defer cancel()

	reg := testproto.Default()
	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "FullDuplexCall"))
	if err == nil {
		defer st.Cancel()
		req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
			ResponseType:       testproto.Compressable,
			ResponseParameters: []testproto.ResponseParameters{{Size: int32(responseSizes[0]), IntervalUS: sleepHintUS}},
			Payload:            payload.New(requestSizes[0]),
		})
		// a Send failure only means the call already ended; Recv has the status
		_ = st.Send(req)
		_, err = st.Recv()
	}
	return []assertion.Assertion{
		assertion.Check("call must fail with DeadlineExceeded", "status.Code(err) == codes.DeadlineExceeded",
			classify(err) == deadlineExceeded, describe(endOfStream(err))),
	}
}
