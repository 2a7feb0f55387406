package scenario

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const (
	echoCode    = codes.Unknown // 2
	echoMessage = "test status message"
)

// statusChecks expects err to be exactly the echoed status. The leading
// check passes only for a status failure, never for a fault that carries no
// gRPC status.
func statusChecks(prefix string, err error) []assertion.Assertion {
	as := []assertion.Assertion{callFailsWith(prefix+"call must fail with the requested status code", err, echoCode)}
	if classify(err) == failedStatus {
		as = append(as, assertion.Equal(prefix+"status message must be echoed", "status.Convert(err).Message() == request.response_status.message",
			status.Convert(err).Message(), echoMessage))
	}
	return as
}

func statusCodeAndMessage(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	echo := &testproto.EchoStatus{Code: int32(echoCode), Message: echoMessage}

	_, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "UnaryCall"),
		reg.EncodeSimpleRequest(testproto.SimpleRequest{ResponseType: testproto.Compressable, ResponseSize: 1, ResponseStatus: echo}))
	as := statusChecks("unary ", err)

	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "FullDuplexCall"))
	if err == nil {
		defer st.Cancel()
		req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
			ResponseType:       testproto.Compressable,
			ResponseParameters: responseParameters([]int{1}),
			ResponseStatus:     echo,
		})
		if err = endOfStream(st.Send(req)); err == nil {
			err = st.CloseSend()
		}
		if err == nil {
			_, err = drain(st)
		}
	}
	return append(as, statusChecks("full duplex ", err)...)
}
