// Package interoptest runs an in-process grpc.testing TestService for tests.
// The service is registered from the runtime-built descriptors, so no
// generated code is needed on the server side either.
package interoptest

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/grpc-interop/internal/endpoint"
	"github.com/hanpama/grpc-interop/internal/payload"
	"github.com/hanpama/grpc-interop/internal/testproto"
)

const (
	InitialMetadataKey  = "x-grpc-test-echo-initial"
	TrailingMetadataKey = "x-grpc-test-echo-trailing-bin"
)

// Options tweaks the peer so tests can provoke failing assertions.
type Options struct {
	// ResponseSize, when positive, replaces every requested response size.
	ResponseSize int32
	// DisableCache makes CacheableUnaryCall answer every call afresh.
	DisableCache bool
	// DropMetadata stops echoing the test metadata keys.
	DropMetadata bool
}

type Option func(*Options)

func WithResponseSize(n int32) Option { return func(o *Options) { o.ResponseSize = n } }
func WithoutCache() Option            { return func(o *Options) { o.DisableCache = true } }
func WithoutMetadataEcho() Option     { return func(o *Options) { o.DropMetadata = true } }

// Server is a running TestService.
type Server struct {
	reg  *testproto.Registry
	opts Options
	srv  *grpc.Server

	ep       endpoint.Endpoint
	dialOpts []grpc.DialOption

	cacheMu sync.Mutex
	cache   map[string]string
	served  int
}

func newServer(opts []Option) *Server {
	s := &Server{reg: testproto.Default(), cache: make(map[string]string)}
	for _, f := range opts {
		f(&s.opts)
	}
	s.srv = grpc.NewServer(grpc.StatsHandler(compressionStats{}))
	s.srv.RegisterService(s.testServiceDesc(), s)
	return s
}

// Start serves over an in-memory listener. Connect with Endpoint and
// DialOptions.
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := newServer(opts)
	lis := bufconn.Listen(1 << 20)
	s.ep = endpoint.Endpoint{Host: "bufnet", Port: 1}
	s.dialOpts = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	go func() { _ = s.srv.Serve(lis) }()
	t.Cleanup(s.srv.Stop)
	return s
}

// StartTCP serves on a loopback TCP port.
func StartTCP(t testing.TB, opts ...Option) *Server {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("interoptest: listen: %v", err)
	}
	s := newServer(opts)
	s.ep = endpoint.Endpoint{Host: "127.0.0.1", Port: lis.Addr().(*net.TCPAddr).Port}
	go func() { _ = s.srv.Serve(lis) }()
	t.Cleanup(s.srv.Stop)
	return s
}

func (s *Server) Endpoint() endpoint.Endpoint    { return s.ep }
func (s *Server) DialOptions() []grpc.DialOption { return s.dialOpts }

// ---------------- registration ----------------

type unaryImpl func(ctx context.Context, req protoreflect.Message) (proto.Message, error)

func (s *Server) unary(name string, in protoreflect.MessageDescriptor, impl unaryImpl) grpc.MethodDesc {
	full := "/" + testproto.Package + "." + testproto.TestServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := dynamicpb.NewMessage(in)
			if err := dec(req); err != nil {
				return nil, err
			}
			h := func(ctx context.Context, r any) (any, error) {
				resp, err := impl(ctx, r.(*dynamicpb.Message))
				if err != nil {
					return nil, err
				}
				return resp, nil
			}
			if interceptor == nil {
				return h(ctx, req)
			}
			return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: s, FullMethod: full}, h)
		},
	}
}

func (s *Server) testServiceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: testproto.Package + "." + testproto.TestServiceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			s.unary("EmptyCall", s.reg.Empty, s.emptyCall),
			s.unary("UnaryCall", s.reg.SimpleRequest, s.unaryCall),
			s.unary("CacheableUnaryCall", s.reg.SimpleRequest, s.cacheableUnaryCall),
		},
		// UnimplementedCall is deliberately left out so the server answers
		// UNIMPLEMENTED for it.
		Streams: []grpc.StreamDesc{
			{StreamName: "StreamingOutputCall", Handler: s.streamingOutputCall, ServerStreams: true},
			{StreamName: "StreamingInputCall", Handler: s.streamingInputCall, ClientStreams: true},
			{StreamName: "FullDuplexCall", Handler: s.fullDuplexCall, ServerStreams: true, ClientStreams: true},
			{StreamName: "HalfDuplexCall", Handler: s.halfDuplexCall, ServerStreams: true, ClientStreams: true},
		},
		Metadata: testproto.FilePath,
	}
}

// ---------------- unary ----------------

func (s *Server) emptyCall(ctx context.Context, _ protoreflect.Message) (proto.Message, error) {
	return s.reg.NewEmpty(), nil
}

func (s *Server) unaryCall(ctx context.Context, m protoreflect.Message) (proto.Message, error) {
	req := testproto.DecodeSimpleRequest(m)
	if hdr, trl := s.echoed(ctx); hdr != nil || trl != nil {
		if hdr != nil {
			_ = grpc.SetHeader(ctx, hdr)
		}
		if trl != nil {
			_ = grpc.SetTrailer(ctx, trl)
		}
	}
	if err := echoStatus(req.ResponseStatus); err != nil {
		return nil, err
	}
	if err := checkCompressed(ctx, req.ExpectCompressed); err != nil {
		return nil, err
	}
	if req.ResponseCompressed != nil && *req.ResponseCompressed {
		_ = grpc.SetSendCompressor(ctx, gzip.Name)
	}
	return s.reg.EncodeSimpleResponse(testproto.SimpleResponse{Payload: s.payload(req.ResponseSize)}), nil
}

// cacheableUnaryCall stands in for a server behind a caching proxy: equal
// request bodies get the same timestamp back.
func (s *Server) cacheableUnaryCall(ctx context.Context, m protoreflect.Message) (proto.Message, error) {
	req := testproto.DecodeSimpleRequest(m)
	key := ""
	if req.Payload != nil {
		key = string(req.Payload.Body)
	}
	s.cacheMu.Lock()
	body, ok := s.cache[key]
	if !ok || s.opts.DisableCache {
		s.served++
		body = strconv.FormatInt(time.Now().UnixNano(), 10) + "/" + strconv.Itoa(s.served)
		s.cache[key] = body
	}
	s.cacheMu.Unlock()

	_ = grpc.SetHeader(ctx, metadata.Pairs("cache-control", "max-age=60, public"))
	return s.reg.EncodeSimpleResponse(testproto.SimpleResponse{
		Payload: &testproto.Payload{Type: testproto.Compressable, Body: []byte(body)},
	}), nil
}

// ---------------- streaming ----------------

func (s *Server) streamingInputCall(_ any, stream grpc.ServerStream) error {
	var sum int32
	for first := true; ; first = false {
		m := dynamicpb.NewMessage(s.reg.StreamingInputCallRequest)
		err := stream.RecvMsg(m)
		if err == io.EOF {
			return stream.SendMsg(s.reg.EncodeStreamingInputCallResponse(testproto.StreamingInputCallResponse{AggregatedPayloadSize: sum}))
		}
		if err != nil {
			return err
		}
		req := testproto.DecodeStreamingInputCallRequest(m)
		if first {
			if err := checkCompressed(stream.Context(), req.ExpectCompressed); err != nil {
				return err
			}
		}
		sum += int32(req.Payload.BodyLen())
	}
}

func (s *Server) streamingOutputCall(_ any, stream grpc.ServerStream) error {
	m := dynamicpb.NewMessage(s.reg.StreamingOutputCallRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	req := testproto.DecodeStreamingOutputCallRequest(m)
	if err := echoStatus(req.ResponseStatus); err != nil {
		return err
	}
	for _, p := range req.ResponseParameters {
		if p.Compressed != nil && *p.Compressed {
			_ = grpc.SetSendCompressor(stream.Context(), gzip.Name)
			break
		}
	}
	return s.respond(stream, req.ResponseParameters)
}

func (s *Server) fullDuplexCall(_ any, stream grpc.ServerStream) error {
	if hdr, trl := s.echoed(stream.Context()); hdr != nil || trl != nil {
		if hdr != nil {
			_ = stream.SetHeader(hdr)
		}
		if trl != nil {
			stream.SetTrailer(trl)
		}
	}
	for {
		m := dynamicpb.NewMessage(s.reg.StreamingOutputCallRequest)
		err := stream.RecvMsg(m)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		req := testproto.DecodeStreamingOutputCallRequest(m)
		if err := echoStatus(req.ResponseStatus); err != nil {
			return err
		}
		if err := s.respond(stream, req.ResponseParameters); err != nil {
			return err
		}
	}
}

func (s *Server) halfDuplexCall(_ any, stream grpc.ServerStream) error {
	var params []testproto.ResponseParameters
	for {
		m := dynamicpb.NewMessage(s.reg.StreamingOutputCallRequest)
		err := stream.RecvMsg(m)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		params = append(params, testproto.DecodeStreamingOutputCallRequest(m).ResponseParameters...)
	}
	return s.respond(stream, params)
}

func (s *Server) respond(stream grpc.ServerStream, params []testproto.ResponseParameters) error {
	ctx := stream.Context()
	for _, p := range params {
		if p.IntervalUS > 0 {
			t := time.NewTimer(time.Duration(p.IntervalUS) * time.Microsecond)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return status.FromContextError(ctx.Err()).Err()
			}
		}
		resp := s.reg.EncodeStreamingOutputCallResponse(testproto.StreamingOutputCallResponse{Payload: s.payload(p.Size)})
		if err := stream.SendMsg(resp); err != nil {
			return err
		}
	}
	return nil
}

// ---------------- helpers ----------------

func (s *Server) payload(size int32) *testproto.Payload {
	if s.opts.ResponseSize > 0 {
		size = s.opts.ResponseSize
	}
	return payload.New(int(size))
}

func (s *Server) echoed(ctx context.Context) (header, trailer metadata.MD) {
	if s.opts.DropMetadata {
		return nil, nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	if v := md.Get(InitialMetadataKey); len(v) > 0 {
		header = metadata.Pairs(InitialMetadataKey, v[0])
	}
	if v := md.Get(TrailingMetadataKey); len(v) > 0 {
		trailer = metadata.Pairs(TrailingMetadataKey, v[0])
	}
	return header, trailer
}

func echoStatus(st *testproto.EchoStatus) error {
	if st == nil || st.Code == 0 {
		return nil
	}
	return status.Error(codes.Code(st.Code), st.Message)
}

func checkCompressed(ctx context.Context, expect *bool) error {
	if expect == nil || !*expect {
		return nil
	}
	if enc := requestCompression(ctx); enc == "" || enc == "identity" {
		return status.Error(codes.InvalidArgument, "expected compressed request")
	}
	return nil
}
