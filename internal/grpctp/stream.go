package grpctp

import (
	"context"
	"errors"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// stream adapts grpc.ClientStream to rpc.BidiStream. The stream owns the
// context created in open; it is released once the call reaches a terminal
// state or is cancelled.
type stream struct {
	cs     grpc.ClientStream
	out    protoreflect.MessageDescriptor
	call   *call
	cancel context.CancelFunc
}

func isEOF(err error) bool { return errors.Is(err, io.EOF) }

func (s *stream) end(err error) {
	if isEOF(err) {
		err = nil
	}
	s.call.finish(err)
	s.cancel()
}

func (s *stream) Send(req proto.Message) error {
	return s.cs.SendMsg(req)
}

func (s *stream) CloseSend() error {
	return s.cs.CloseSend()
}

func (s *stream) Recv() (protoreflect.Message, error) {
	resp := dynamicpb.NewMessage(s.out)
	if err := s.cs.RecvMsg(resp); err != nil {
		s.end(err)
		return nil, err
	}
	return resp, nil
}

// Cancel releases the call. If the call has not ended yet it finishes with
// a Canceled status.
func (s *stream) Cancel() {
	s.end(status.FromContextError(context.Canceled).Err())
}

func (s *stream) Header() (metadata.MD, error) { return s.cs.Header() }
func (s *stream) Trailer() metadata.MD         { return s.cs.Trailer() }
