package config

import "time"

const (
	// DefaultServerHost is the host the client connects to
	DefaultServerHost = "127.0.0.1"
	// DefaultServerPort is the port the client connects to
	DefaultServerPort = 10000
	// DefaultTestCase runs when no test case is selected
	DefaultTestCase = "large_unary"
	// DefaultCAFile is the CA bundle used with --use_test_ca
	DefaultCAFile = "ca.pem"
	// DefaultConnectTimeout bounds connection establishment
	DefaultConnectTimeout = 10 * time.Second
	// DefaultRPCTimeout bounds a call that has no deadline of its own
	DefaultRPCTimeout = 10 * time.Second
	// DefaultOtelService is the service name reported to the trace collector
	DefaultOtelService = "grpc-interop-client"
	// EnvPrefix prefixes every environment variable the client reads
	EnvPrefix = "INTEROP_"
)
