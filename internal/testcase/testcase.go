// Package testcase is the catalog of interop test case names.
package testcase

import (
	"errors"
	"fmt"
	"strings"
)

// TestCase identifies one interop scenario.
type TestCase int

const (
	EmptyUnary TestCase = iota
	CacheableUnary
	LargeUnary
	ClientCompressedUnary
	ServerCompressedUnary
	ClientStreaming
	ClientCompressedStreaming
	ServerStreaming
	ServerCompressedStreaming
	PingPong
	EmptyStream
	ComputeEngineCreds
	JWTTokenCreds
	OAuth2AuthToken
	PerRPCCreds
	CustomMetadata
	StatusCodeAndMessage
	UnimplementedMethod
	UnimplementedService
	CancelAfterBegin
	CancelAfterFirstResponse
	TimeoutOnSleepingServer
	ConcurrentLargeUnary

	numTestCases
)

var names = [numTestCases]string{
	EmptyUnary:                "empty_unary",
	CacheableUnary:            "cacheable_unary",
	LargeUnary:                "large_unary",
	ClientCompressedUnary:     "client_compressed_unary",
	ServerCompressedUnary:     "server_compressed_unary",
	ClientStreaming:           "client_streaming",
	ClientCompressedStreaming: "client_compressed_streaming",
	ServerStreaming:           "server_streaming",
	ServerCompressedStreaming: "server_compressed_streaming",
	PingPong:                  "ping_pong",
	EmptyStream:               "empty_stream",
	ComputeEngineCreds:        "compute_engine_creds",
	JWTTokenCreds:             "jwt_token_creds",
	OAuth2AuthToken:           "oauth2_auth_token",
	PerRPCCreds:               "per_rpc_creds",
	CustomMetadata:            "custom_metadata",
	StatusCodeAndMessage:      "status_code_and_message",
	UnimplementedMethod:       "unimplemented_method",
	UnimplementedService:      "unimplemented_service",
	CancelAfterBegin:          "cancel_after_begin",
	CancelAfterFirstResponse:  "cancel_after_first_response",
	TimeoutOnSleepingServer:   "timeout_on_sleeping_server",
	ConcurrentLargeUnary:      "concurrent_large_unary",
}

var byName = func() map[string]TestCase {
	m := make(map[string]TestCase, numTestCases)
	for tc, n := range names {
		m[n] = TestCase(tc)
	}
	return m
}()

// ErrUnknownTestCase is wrapped by Parse for names outside the catalog.
var ErrUnknownTestCase = errors.New("unknown test case")

// UnsupportedError is returned for catalog entries this client cannot run.
type UnsupportedError struct {
	TestCase TestCase
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("not supported by this implementation: %s (requires credential support)", e.TestCase)
}

func (tc TestCase) String() string {
	if tc < 0 || tc >= numTestCases {
		return fmt.Sprintf("TestCase(%d)", int(tc))
	}
	return names[tc]
}

// Supported reports whether a scenario exists for tc. Every credential
// case is in the catalog but never attempted.
func (tc TestCase) Supported() bool {
	switch tc {
	case ComputeEngineCreds, JWTTokenCreds, OAuth2AuthToken, PerRPCCreds:
		return false
	}
	return tc >= 0 && tc < numTestCases
}

// CheckSupported returns an *UnsupportedError when tc cannot be run.
func (tc TestCase) CheckSupported() error {
	if !tc.Supported() {
		return &UnsupportedError{TestCase: tc}
	}
	return nil
}

// Parse resolves a case name. Both empty_unary and empty-unary are accepted.
func Parse(name string) (TestCase, error) {
	n := strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
	if tc, ok := byName[n]; ok {
		return tc, nil
	}
	return 0, fmt.Errorf("%w: %q (valid names: %s)", ErrUnknownTestCase, name, strings.Join(Names(), ", "))
}

// ParseList parses names in order and stops at the first unknown name.
func ParseList(names []string) ([]TestCase, error) {
	out := make([]TestCase, 0, len(names))
	for _, n := range names {
		tc, err := Parse(n)
		if err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, nil
}

// All returns every catalog entry in declaration order.
func All() []TestCase {
	out := make([]TestCase, numTestCases)
	for i := range out {
		out[i] = TestCase(i)
	}
	return out
}

// Names returns every catalog name in declaration order.
func Names() []string {
	out := make([]string, numTestCases)
	copy(out, names[:])
	return out
}
