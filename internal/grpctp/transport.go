package grpctp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	_ "google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/eventbus"
	"github.com/hanpama/grpc-interop/internal/events"
	"github.com/hanpama/grpc-interop/internal/rpc"
)

// Conn is one plaintext HTTP/2 connection to the server under test. It
// implements rpc.Capability with dynamic messages.
type Conn struct {
	opts   *Options
	target string
	cc     *grpc.ClientConn

	nextCall atomic.Int64
	closed   atomic.Bool
}

var _ rpc.Capability = (*Conn)(nil)

// Establish connects to ep and waits until the connection is READY. A
// server that cannot be reached within the connect timeout is an error.
func Establish(ctx context.Context, ep endpoint.Endpoint, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
	}
	if ep.HostOverride != "" {
		dialOpts = append(dialOpts, grpc.WithAuthority(ep.HostOverride))
	}
	dialOpts = append(dialOpts, o.DialOptions...)

	cc, err := grpc.NewClient(ep.Target(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpctp: connect %s: %w", ep.URI(), err)
	}
	if o.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.ConnectTimeout)
		defer cancel()
	}
	if err := waitReady(ctx, cc); err != nil {
		_ = cc.Close()
		return nil, fmt.Errorf("grpctp: connect %s: %w", ep.URI(), err)
	}
	return &Conn{opts: o, target: ep.Address(), cc: cc}, nil
}

// waitReady fails fast on the first TRANSIENT_FAILURE instead of waiting for
// reconnect backoff.
func waitReady(ctx context.Context, cc *grpc.ClientConn) error {
	cc.Connect()
	for {
		switch s := cc.GetState(); s {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			return errors.New("server unreachable")
		case connectivity.Shutdown:
			return errors.New("connection shut down")
		default:
			if !cc.WaitForStateChange(ctx, s) {
				return ctx.Err()
			}
		}
	}
}

// Close tears down the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cc.Close()
}

// ---------------- calls ----------------

// call tracks one RPC for event publishing.
type call struct {
	conn    *Conn
	ctx     context.Context
	id      int64
	service string
	method  string
	kind    events.CallKind
	start   time.Time
	once    sync.Once
}

func (c *Conn) begin(ctx context.Context, md protoreflect.MethodDescriptor, kind events.CallKind) *call {
	cl := &call{
		conn:    c,
		ctx:     ctx,
		id:      c.nextCall.Add(1),
		service: string(md.Parent().FullName()),
		method:  string(md.Name()),
		kind:    kind,
		start:   time.Now(),
	}
	eventbus.Publish(ctx, events.RPCStart{CallID: cl.id, Service: cl.service, Method: cl.method, Kind: kind, Target: c.target})
	return cl
}

// finish publishes RPCFinish exactly once. A nil err means the call ended OK.
func (cl *call) finish(err error) {
	cl.once.Do(func() {
		eventbus.Publish(cl.ctx, events.RPCFinish{
			CallID:   cl.id,
			Service:  cl.service,
			Method:   cl.method,
			Kind:     cl.kind,
			Target:   cl.conn.target,
			Code:     status.Code(err),
			Err:      err,
			Duration: time.Since(cl.start),
		})
	})
}

func (c *Conn) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); !ok && c.opts.RPCTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.RPCTimeout)
	}
	return context.WithCancel(ctx)
}

func fullMethod(md protoreflect.MethodDescriptor) string {
	return fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())
}

func (c *Conn) Unary(ctx context.Context, md protoreflect.MethodDescriptor, req proto.Message, opts ...grpc.CallOption) (protoreflect.Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	cl := c.begin(ctx, md, events.Unary)
	resp := dynamicpb.NewMessage(md.Output())
	err := c.cc.Invoke(ctx, fullMethod(md), req, resp, opts...)
	cl.finish(err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Conn) ClientStream(ctx context.Context, md protoreflect.MethodDescriptor, reqs []proto.Message, opts ...grpc.CallOption) (protoreflect.Message, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !md.IsStreamingClient() {
		return nil, fmt.Errorf("%w: %s", ErrNotStreaming, fullMethod(md))
	}
	ctx, cancel := c.withDefaultTimeout(ctx)
	defer cancel()

	cl := c.begin(ctx, md, events.ClientStream)
	desc := &grpc.StreamDesc{StreamName: string(md.Name()), ClientStreams: true}
	cs, err := c.cc.NewStream(ctx, desc, fullMethod(md), opts...)
	if err != nil {
		cl.finish(err)
		return nil, err
	}
	for _, r := range reqs {
		// io.EOF means the server already ended the call; its status
		// surfaces from RecvMsg below.
		if err := cs.SendMsg(r); err != nil {
			break
		}
	}
	if err := cs.CloseSend(); err != nil {
		cl.finish(err)
		return nil, err
	}
	resp := dynamicpb.NewMessage(md.Output())
	err = cs.RecvMsg(resp)
	cl.finish(err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Conn) ServerStream(ctx context.Context, md protoreflect.MethodDescriptor, req proto.Message, opts ...grpc.CallOption) (rpc.ServerStream, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !md.IsStreamingServer() {
		return nil, fmt.Errorf("%w: %s", ErrNotStreaming, fullMethod(md))
	}
	s, err := c.open(ctx, md, events.ServerStream, &grpc.StreamDesc{StreamName: string(md.Name()), ServerStreams: true}, opts)
	if err != nil {
		return nil, err
	}
	if err := s.cs.SendMsg(req); err != nil && !isEOF(err) {
		s.end(err)
		return nil, err
	}
	if err := s.cs.CloseSend(); err != nil {
		s.end(err)
		return nil, err
	}
	return s, nil
}

func (c *Conn) BidiStream(ctx context.Context, md protoreflect.MethodDescriptor, opts ...grpc.CallOption) (rpc.BidiStream, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !md.IsStreamingClient() && !md.IsStreamingServer() {
		return nil, fmt.Errorf("%w: %s", ErrNotStreaming, fullMethod(md))
	}
	desc := &grpc.StreamDesc{StreamName: string(md.Name()), ClientStreams: true, ServerStreams: true}
	s, err := c.open(ctx, md, events.BidiStream, desc, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (c *Conn) open(ctx context.Context, md protoreflect.MethodDescriptor, kind events.CallKind, desc *grpc.StreamDesc, opts []grpc.CallOption) (*stream, error) {
	ctx, cancel := c.withDefaultTimeout(ctx)
	cl := c.begin(ctx, md, kind)
	cs, err := c.cc.NewStream(ctx, desc, fullMethod(md), opts...)
	if err != nil {
		cl.finish(err)
		cancel()
		return nil, err
	}
	return &stream{cs: cs, out: md.Output(), call: cl, cancel: cancel}, nil
}
