// Package rpc declares what a scenario can do against the server under test.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Capability performs calls of each gRPC method shape. Methods are
// identified by descriptor and messages are dynamic, so no generated stubs
// are involved.
//
// Implementations MUST be safe for concurrent use: concurrent scenarios
// share one Capability across goroutines.
//
// Provided implementations:
//   - internal/grpctp.Conn: a single grpc.ClientConn to the server under test
//   - MockCapability: seeded responses for unit tests
type Capability interface {
	// Unary sends req and waits for the single response.
	Unary(ctx context.Context, method protoreflect.MethodDescriptor, req proto.Message, opts ...grpc.CallOption) (protoreflect.Message, error)
	// ClientStream sends every request, half-closes and waits for the
	// single response.
	ClientStream(ctx context.Context, method protoreflect.MethodDescriptor, reqs []proto.Message, opts ...grpc.CallOption) (protoreflect.Message, error)
	// ServerStream sends req and returns a stream of responses read lazily.
	ServerStream(ctx context.Context, method protoreflect.MethodDescriptor, req proto.Message, opts ...grpc.CallOption) (ServerStream, error)
	// BidiStream opens a stream on any streaming method and leaves both
	// directions to the caller.
	BidiStream(ctx context.Context, method protoreflect.MethodDescriptor, opts ...grpc.CallOption) (BidiStream, error)
}

// ServerStream yields responses until Recv returns io.EOF (clean end) or a
// status error.
type ServerStream interface {
	Recv() (protoreflect.Message, error)
	Header() (metadata.MD, error)
	// Trailer is only valid after Recv returned a non-nil error.
	Trailer() metadata.MD
}

// BidiStream is the handle of an open stream.
type BidiStream interface {
	ServerStream
	// Send returns io.EOF when the server already ended the call; the
	// status is then available from Recv.
	Send(req proto.Message) error
	CloseSend() error
	// Cancel aborts the call without waiting. Subsequent Recv calls
	// return a Canceled status.
	Cancel()
}
