package scenario

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/protobuf/proto"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const probeRejected = "uncompressed probe must be rejected with InvalidArgument"

// clientCompressedUnary first checks that the server notices an
// uncompressed request that claims to be compressed, then sends the real
// compressed and uncompressed calls.
func clientCompressedUnary(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()

	probe := largeRequest()
	probe.ExpectCompressed = testproto.Bool(true)
	_, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "UnaryCall"), reg.EncodeSimpleRequest(probe))
	as := []assertion.Assertion{callFailsWith(probeRejected, err, codes.InvalidArgument)}

	compressed := largeRequest()
	compressed.ExpectCompressed = testproto.Bool(true)
	as = append(as, unaryCall(ctx, env, "compressed ", compressed, grpc.UseCompressor(gzip.Name))...)

	plain := largeRequest()
	plain.ExpectCompressed = testproto.Bool(false)
	return append(as, unaryCall(ctx, env, "uncompressed ", plain)...)
}

func serverCompressedUnary(ctx context.Context, env Env) []assertion.Assertion {
	compressed := largeRequest()
	compressed.ResponseCompressed = testproto.Bool(true)
	as := unaryCall(ctx, env, "compressed ", compressed)

	plain := largeRequest()
	plain.ResponseCompressed = testproto.Bool(false)
	return append(as, unaryCall(ctx, env, "uncompressed ", plain)...)
}

var compressedRequestSizes = []int{27182, 45904}

func clientCompressedStreaming(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	md := env.method(testproto.TestServiceName, "StreamingInputCall")

	probe := reg.EncodeStreamingInputCallRequest(testproto.StreamingInputCallRequest{
		Payload:          payload.New(compressedRequestSizes[0]),
		ExpectCompressed: testproto.Bool(true),
	})
	_, err := env.Capability.ClientStream(ctx, md, []proto.Message{probe})
	as := []assertion.Assertion{callFailsWith(probeRejected, err, codes.InvalidArgument)}

	reqs := []proto.Message{
		reg.EncodeStreamingInputCallRequest(testproto.StreamingInputCallRequest{
			Payload:          payload.New(compressedRequestSizes[0]),
			ExpectCompressed: testproto.Bool(true),
		}),
		reg.EncodeStreamingInputCallRequest(testproto.StreamingInputCallRequest{
			Payload:          payload.New(compressedRequestSizes[1]),
			ExpectCompressed: testproto.Bool(false),
		}),
	}
	resp, err := env.Capability.ClientStream(ctx, md, reqs, grpc.UseCompressor(gzip.Name))
	as = append(as, callSucceeded("compressed "+callOK, err))
	if err != nil {
		return as
	}
	want := payload.Sum(compressedRequestSizes)
	got := testproto.DecodeStreamingInputCallResponse(resp)
	return append(as, assertion.Equal(fmt.Sprintf("aggregated payload size must be %d bytes", want),
		"response.aggregated_payload_size == sum(len(request.payload.body))",
		int(got.AggregatedPayloadSize), want))
}

var compressedResponseSizes = []int{31415, 92653}

func serverCompressedStreaming(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	params := responseParameters(compressedResponseSizes)
	params[0].Compressed = testproto.Bool(true)
	params[1].Compressed = testproto.Bool(false)

	req := reg.EncodeStreamingOutputCallRequest(testproto.StreamingOutputCallRequest{
		ResponseType:       testproto.Compressable,
		ResponseParameters: params,
	})
	st, err := env.Capability.ServerStream(ctx, env.method(testproto.TestServiceName, "StreamingOutputCall"), req)
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	sizes, err := drain(st)
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	return append([]assertion.Assertion{callSucceeded(callOK, nil)}, sizeChecks(sizes, compressedResponseSizes)...)
}
