package scenario

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const (
	initialMetadataKey    = "x-grpc-test-echo-initial"
	initialMetadataValue  = "test_initial_metadata_value"
	trailingMetadataKey   = "x-grpc-test-echo-trailing-bin"
	trailingMetadataValue = "\x0a\x0b\x0a\x0b\x0a\x0b"
)

func firstValue(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func metadataChecks(prefix string, header, trailer metadata.MD) []assertion.Assertion {
	gotInitial := firstValue(header, initialMetadataKey)
	gotTrailing := firstValue(trailer, trailingMetadataKey)
	return []assertion.Assertion{
		assertion.Checkf(prefix+"initial metadata must be echoed",
			fmt.Sprintf("header[%q] == %q", initialMetadataKey, initialMetadataValue),
			gotInitial == initialMetadataValue, "actual=%q", gotInitial),
		assertion.Checkf(prefix+"trailing metadata must be echoed",
			fmt.Sprintf("trailer[%q] == %q", trailingMetadataKey, trailingMetadataValue),
			gotTrailing == trailingMetadataValue, "actual=%q", gotTrailing),
	}
}

// customMetadata sends the echo keys on a unary and on a full-duplex call
// and expects them back as initial and trailing metadata.
func customMetadata(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	ctx = metadata.AppendToOutgoingContext(ctx,
		initialMetadataKey, initialMetadataValue,
		trailingMetadataKey, trailingMetadataValue,
	)

	var header, trailer metadata.MD
	_, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "UnaryCall"),
		reg.EncodeSimpleRequest(largeRequest()), grpc.Header(&header), grpc.Trailer(&trailer))
	as := []assertion.Assertion{callSucceeded("unary "+callOK, err)}
	if err == nil {
		as = append(as, metadataChecks("unary ", header, trailer)...)
	}

	st, err := env.Capability.BidiStream(ctx, env.method(testproto.TestServiceName, "FullDuplexCall"))
	if err != nil {
		return append(as, callSucceeded("full duplex "+callOK, err))
	}
	defer st.Cancel()
	req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
		ResponseType:       testproto.Compressable,
		ResponseParameters: responseParameters([]int{largeResponseSize}),
		Payload:            payload.New(largeRequestSize),
	})
	if err = endOfStream(st.Send(req)); err == nil {
		err = st.CloseSend()
	}
	if err == nil {
		_, err = drain(st)
	}
	as = append(as, callSucceeded("full duplex "+callOK, err))
	if err != nil {
		return as
	}
	header, err = st.Header()
	if err != nil {
		return append(as, assertion.Error("full duplex initial metadata must be readable", err))
	}
	return append(as, metadataChecks("full duplex ", header, st.Trailer())...)
}
