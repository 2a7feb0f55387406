// Package scenario implements the client side of each interop test case.
//
// A scenario drives one or more RPCs through an rpc.Capability and turns
// what it observes into an ordered list of assertions. The first assertion
// is always about the outcome of the call itself; content checks follow only
// when that outcome allows them to be evaluated. Scenarios never return an
// error: call faults become Failed assertions and are kept in the result.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/grpc-interop/internal/assertion"
	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/rpc"
	"github.com/hanpama/grpc-interop/internal/testcase"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

// Logger receives debug output of a scenario.
type Logger interface {
	Printf(format string, args ...any)
}

// Env is what a scenario runs against.
type Env struct {
	Capability rpc.Capability
	Endpoint   endpoint.Endpoint
	// Logger is optional.
	Logger Logger
}

func (e Env) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// method resolves a TestService method and logs the call about to be made.
func (e Env) method(service, name protoreflect.Name) protoreflect.MethodDescriptor {
	md := testproto.Default().Method(service, name)
	e.logf("calling %s%s", e.Endpoint.URI(), testproto.FullMethod(md))
	return md
}

// Func runs one test case. It must return at least one assertion.
type Func func(ctx context.Context, env Env) []assertion.Assertion

var table = map[testcase.TestCase]Func{
	testcase.EmptyUnary:                emptyUnary,
	testcase.CacheableUnary:            cacheableUnary,
	testcase.LargeUnary:                largeUnary,
	testcase.ClientCompressedUnary:     clientCompressedUnary,
	testcase.ServerCompressedUnary:     serverCompressedUnary,
	testcase.ClientStreaming:           clientStreaming,
	testcase.ClientCompressedStreaming: clientCompressedStreaming,
	testcase.ServerStreaming:           serverStreaming,
	testcase.ServerCompressedStreaming: serverCompressedStreaming,
	testcase.PingPong:                  pingPong,
	testcase.EmptyStream:               emptyStream,
	testcase.CustomMetadata:            customMetadata,
	testcase.StatusCodeAndMessage:      statusCodeAndMessage,
	testcase.UnimplementedMethod:       unimplementedMethod,
	testcase.UnimplementedService:      unimplementedService,
	testcase.CancelAfterBegin:          cancelAfterBegin,
	testcase.CancelAfterFirstResponse:  cancelAfterFirstResponse,
	testcase.TimeoutOnSleepingServer:   timeoutOnSleepingServer,
	testcase.ConcurrentLargeUnary:      concurrentLargeUnary,
}

// Lookup returns the scenario of tc. Unsupported cases have none.
func Lookup(tc testcase.TestCase) (Func, bool) {
	f, ok := table[tc]
	return f, ok
}

// ---------------- call outcomes ----------------

// outcome classifies how a call ended. Cancellation and deadline expiry are
// kept apart from ordinary failures so a cancelled call can never pass as a
// plain success or failure check.
type outcome int

const (
	succeeded outcome = iota
	cancelled
	deadlineExceeded
	failedStatus
	noStatus
)

func classify(err error) outcome {
	if err == nil {
		return succeeded
	}
	s, ok := status.FromError(err)
	if !ok {
		return noStatus
	}
	switch s.Code() {
	case codes.OK:
		return succeeded
	case codes.Canceled:
		return cancelled
	case codes.DeadlineExceeded:
		return deadlineExceeded
	}
	return failedStatus
}

// describe renders err as the diagnostic of a call assertion.
func describe(err error) string {
	switch classify(err) {
	case succeeded:
		return "outcome=succeeded"
	case cancelled:
		return "outcome=cancelled"
	case deadlineExceeded:
		return "outcome=deadline exceeded"
	case noStatus:
		return fmt.Sprintf("outcome=fault without gRPC status: %v", err)
	}
	s := status.Convert(err)
	return fmt.Sprintf("outcome=failed code=%s message=%q", s.Code(), s.Message())
}

// endOfStream maps the clean end of a stream to a nil error.
func endOfStream(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

const callOK = "call must be successful"

func callSucceeded(description string, err error) assertion.Assertion {
	return assertion.Check(description, "err == nil", classify(err) == succeeded, describe(err))
}

func callFailsWith(description string, err error, code codes.Code) assertion.Assertion {
	ok := classify(err) != noStatus && status.Code(err) == code
	return assertion.Check(description, fmt.Sprintf("status.Code(err) == codes.%s", code), ok, describe(err))
}

func callCancelled(err error) assertion.Assertion {
	return assertion.Check("call must be cancelled", "status.Code(err) == codes.Canceled", classify(err) == cancelled, describe(err))
}

// sizeChecks compares response body sizes with the requested ones, in order.
func sizeChecks(got, want []int) []assertion.Assertion {
	as := []assertion.Assertion{
		assertion.Equal(fmt.Sprintf("response count must be %d", len(want)), "len(responses) == len(response_parameters)", len(got), len(want)),
	}
	for i, w := range want {
		if i >= len(got) {
			break
		}
		as = append(as, assertion.Equal(
			fmt.Sprintf("response %d size must be %d bytes", i, w),
			fmt.Sprintf("len(responses[%d].payload.body) == %d", i, w),
			got[i], w))
	}
	return as
}

func responseParameters(sizes []int) []testproto.ResponseParameters {
	out := make([]testproto.ResponseParameters, len(sizes))
	for i, s := range sizes {
		out[i] = testproto.ResponseParameters{Size: int32(s)}
	}
	return out
}

// drain reads a stream to its end and returns the body size of every
// response.
func drain(st rpc.ServerStream) ([]int, error) {
	var sizes []int
	for {
		m, err := st.Recv()
		if err != nil {
			return sizes, endOfStream(err)
		}
		sizes = append(sizes, testproto.DecodeStreamingOutputCallResponse(m).Payload.BodyLen())
	}
}
