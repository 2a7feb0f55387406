package scenario

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const (
	largeRequestSize  = 271828
	largeResponseSize = 314159

	concurrentCalls = 8
)

func largeRequest() testproto.SimpleRequest {
	return testproto.SimpleRequest{
		ResponseType: testproto.Compressable,
		ResponseSize: largeResponseSize,
		Payload:      payload.New(largeRequestSize),
	}
}

func emptyUnary(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	resp, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "EmptyCall"), reg.NewEmpty())
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	empty := resp != nil && proto.Equal(resp.Interface(), reg.NewEmpty())
	return []assertion.Assertion{
		callSucceeded(callOK, nil),
		assertion.Check("body must not be null", "response == Empty{}", empty, "response is missing or not an empty message"),
	}
}

// unaryCall makes one UnaryCall and checks the payload size. The size is
// measured on the payload body, not on the encoded message.
func unaryCall(ctx context.Context, env Env, prefix string, req testproto.SimpleRequest, opts ...grpc.CallOption) []assertion.Assertion {
	reg := testproto.Default()
	resp, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "UnaryCall"), reg.EncodeSimpleRequest(req), opts...)
	if err != nil {
		return []assertion.Assertion{callSucceeded(prefix+callOK, err)}
	}
	got := testproto.DecodeSimpleResponse(resp)
	return []assertion.Assertion{
		callSucceeded(prefix+callOK, nil),
		assertion.Equal(prefix+"body size matches requested size", "len(response.payload.body) == request.response_size",
			got.Payload.BodyLen(), int(req.ResponseSize)),
	}
}

func largeUnary(ctx context.Context, env Env) []assertion.Assertion {
	return unaryCall(ctx, env, "", largeRequest())
}

// concurrentLargeUnary runs the large unary call from several goroutines at
// once. A panic on one of them is recovered there and reported once after
// the group finishes; the other calls keep their assertions.
func concurrentLargeUnary(ctx context.Context, env Env) []assertion.Assertion {
	results := make([][]assertion.Assertion, concurrentCalls)
	var g errgroup.Group
	for i := range concurrentCalls {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("call %d: panic: %v", i, p)
				}
			}()
			results[i] = unaryCall(ctx, env, fmt.Sprintf("call %d: ", i), largeRequest())
			return nil
		})
	}
	err := g.Wait()

	var out []assertion.Assertion
	for _, r := range results {
		out = append(out, r...)
	}
	if err != nil {
		out = append(out, assertion.Error("concurrent calls must not panic", err))
	}
	return out
}

// cacheableUnary needs a caching proxy in front of the server: two equal
// requests must get the same timestamp back, a different one must not.
func cacheableUnary(ctx context.Context, env Env) []assertion.Assertion {
	reg := testproto.Default()
	// some proxies refuse to cache requests coming from localhost
	ctx = metadata.AppendToOutgoingContext(ctx, "x-user-ip", "1.2.3.4")

	call := func(body string) (string, error) {
		req := testproto.SimpleRequest{
			ResponseType: testproto.Compressable,
			Payload:      &testproto.Payload{Type: testproto.Compressable, Body: []byte(body)},
		}
		resp, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "CacheableUnaryCall"), reg.EncodeSimpleRequest(req))
		if err != nil {
			return "", err
		}
		got := testproto.DecodeSimpleResponse(resp)
		if got.Payload == nil {
			return "", nil
		}
		return string(got.Payload.Body), nil
	}

	stamp := time.Now().UnixNano()
	first, err := call(strconv.FormatInt(stamp, 10))
	if err != nil {
		return []assertion.Assertion{callSucceeded(callOK, err)}
	}
	env.logf("response 1 payload: %s", first)
	as := []assertion.Assertion{callSucceeded(callOK, nil)}

	second, err := call(strconv.FormatInt(stamp, 10))
	as = append(as, callSucceeded("second call must be successful", err))
	if err != nil {
		return as
	}
	env.logf("response 2 payload: %s", second)
	as = append(as, assertion.Equal("second response must be served from cache", "second.payload.body == first.payload.body", second, first))

	fresh := max(time.Now().UnixNano(), stamp+1)
	third, err := call(strconv.FormatInt(fresh, 10))
	as = append(as, callSucceeded("third call must be successful", err))
	if err != nil {
		return as
	}
	env.logf("response 3 payload: %s", third)
	return append(as, assertion.Checkf("fresh request must not be served from cache", "third.payload.body != first.payload.body",
		third != first, "both responses carry %q", third))
}

func unimplementedMethod(ctx context.Context, env Env) []assertion.Assertion {
	_, err := env.Capability.Unary(ctx, env.method(testproto.TestServiceName, "UnimplementedCall"), testproto.Default().NewEmpty())
	return []assertion.Assertion{callFailsWith("call must fail with Unimplemented", err, codes.Unimplemented)}
}

func unimplementedService(ctx context.Context, env Env) []assertion.Assertion {
	_, err := env.Capability.Unary(ctx, env.method(testproto.UnimplementedServiceName, "UnimplementedCall"), testproto.Default().NewEmpty())
	return []assertion.Assertion{callFailsWith("call must fail with Unimplemented", err, codes.Unimplemented)}
}
