package grpctp

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures the connection to the server under test.
//
// Defaults:
// - ConnectTimeout: 10s (time allowed to reach READY in Establish)
// - RPCTimeout:     10s (used only if the call context has no deadline)
// - DialOptions:    none beyond insecure credentials and the authority
//
// All options are safe to leave zero-valued to use defaults.
type Options struct {
	ConnectTimeout time.Duration
	RPCTimeout     time.Duration

	DialOptions []grpc.DialOption
}

// Option mutates Options
//
// Use WithX helpers below.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		ConnectTimeout: 10 * time.Second,
		RPCTimeout:     10 * time.Second,
	}
}

func WithConnectTimeout(d time.Duration) Option { return func(o *Options) { o.ConnectTimeout = d } }
func WithRPCTimeout(d time.Duration) Option     { return func(o *Options) { o.RPCTimeout = d } }

// WithDialOptions appends extra dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = append(o.DialOptions, opts...) }
}
