package rpc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// CallRecord captures a single call for assertions.
type CallRecord struct {
	Method protoreflect.MethodDescriptor
	// FullMethod is "/<service full name>/<method>" for convenience.
	FullMethod string
	// Requests holds deep-cloned snapshots of every message sent.
	Requests []proto.Message
}

// Reply seeds the outcome of one call on a MockCapability.
//
// For unary and client-streaming calls Err has precedence over Response.
// For streaming calls Responses are yielded first, then Err (io.EOF when
// nil). OpenErr makes opening the stream fail.
type Reply struct {
	Response  protoreflect.Message
	Responses []protoreflect.Message
	Err       error
	OpenErr   error
	Header    metadata.MD
	Trailer   metadata.MD
}

// MockCapability implements Capability, returning seeded replies in order
// while recording every call.
type MockCapability struct {
	mu      sync.Mutex
	replies []Reply
	idx     int
	calls   []*CallRecord
}

var _ Capability = (*MockCapability)(nil)

// NewMockCapability returns a MockCapability that answers successive calls
// with replies.
func NewMockCapability(replies ...Reply) *MockCapability {
	cp := make([]Reply, len(replies))
	copy(cp, replies)
	return &MockCapability{replies: cp}
}

func (m *MockCapability) next(method protoreflect.MethodDescriptor, reqs ...proto.Message) (*CallRecord, Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &CallRecord{Method: method}
	if method != nil {
		rec.FullMethod = fmt.Sprintf("/%s/%s", method.Parent().FullName(), method.Name())
	}
	for _, r := range reqs {
		rec.Requests = append(rec.Requests, proto.Clone(r))
	}
	m.calls = append(m.calls, rec)

	if m.idx >= len(m.replies) {
		return rec, Reply{}, fmt.Errorf("mock capability: no more replies")
	}
	r := m.replies[m.idx]
	m.idx++
	return rec, r, nil
}

func applyMetadata(r Reply, opts []grpc.CallOption) {
	for _, o := range opts {
		switch o := o.(type) {
		case grpc.HeaderCallOption:
			*o.HeaderAddr = r.Header
		case grpc.TrailerCallOption:
			*o.TrailerAddr = r.Trailer
		}
	}
}

func (m *MockCapability) Unary(ctx context.Context, method protoreflect.MethodDescriptor, req proto.Message, opts ...grpc.CallOption) (protoreflect.Message, error) {
	_, r, err := m.next(method, req)
	if err != nil {
		return nil, err
	}
	applyMetadata(r, opts)
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Response, nil
}

func (m *MockCapability) ClientStream(ctx context.Context, method protoreflect.MethodDescriptor, reqs []proto.Message, opts ...grpc.CallOption) (protoreflect.Message, error) {
	_, r, err := m.next(method, reqs...)
	if err != nil {
		return nil, err
	}
	applyMetadata(r, opts)
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Response, nil
}

func (m *MockCapability) ServerStream(ctx context.Context, method protoreflect.MethodDescriptor, req proto.Message, opts ...grpc.CallOption) (ServerStream, error) {
	rec, r, err := m.next(method, req)
	if err != nil {
		return nil, err
	}
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	return &mockStream{mu: &m.mu, rec: rec, reply: r}, nil
}

func (m *MockCapability) BidiStream(ctx context.Context, method protoreflect.MethodDescriptor, opts ...grpc.CallOption) (BidiStream, error) {
	rec, r, err := m.next(method)
	if err != nil {
		return nil, err
	}
	if r.OpenErr != nil {
		return nil, r.OpenErr
	}
	return &mockStream{mu: &m.mu, rec: rec, reply: r}, nil
}

// Calls returns a snapshot of recorded calls.
func (m *MockCapability) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, len(m.calls))
	for i, c := range m.calls {
		out[i] = *c
		out[i].Requests = append([]proto.Message(nil), c.Requests...)
	}
	return out
}

type mockStream struct {
	mu        *sync.Mutex
	rec       *CallRecord
	reply     Reply
	next      int
	cancelled bool
	closed    bool
}

func (s *mockStream) Send(req proto.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mock stream: send after CloseSend")
	}
	if s.cancelled {
		return io.EOF
	}
	s.rec.Requests = append(s.rec.Requests, proto.Clone(req))
	return nil
}

func (s *mockStream) CloseSend() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *mockStream) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *mockStream) Recv() (protoreflect.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return nil, status.Error(codes.Canceled, "context canceled")
	}
	if s.next < len(s.reply.Responses) {
		resp := s.reply.Responses[s.next]
		s.next++
		return resp, nil
	}
	if s.reply.Err != nil {
		return nil, s.reply.Err
	}
	return nil, io.EOF
}

func (s *mockStream) Header() (metadata.MD, error) { return s.reply.Header, nil }
func (s *mockStream) Trailer() metadata.MD         { return s.reply.Trailer }
