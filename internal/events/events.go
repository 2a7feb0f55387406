// Package events defines the payloads published on the event bus during a
// run. Subscribers (tracing, progress output) must not block.
package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// CaseStart is emitted before a test case runs. The context carries the
// case id (see reqid).
type CaseStart struct {
	TestCase string
	Target   string
}

// CaseFinish is emitted after a test case produced its assertions.
type CaseFinish struct {
	TestCase   string
	Target     string
	Passed     bool
	Assertions int
	Duration   time.Duration
}

// CallKind is the shape of an RPC.
type CallKind string

const (
	Unary        CallKind = "unary"
	ClientStream CallKind = "client_stream"
	ServerStream CallKind = "server_stream"
	BidiStream   CallKind = "bidi_stream"
)

// RPCStart is emitted when a call is issued. CallID pairs it with the
// matching RPCFinish; several calls of one case may overlap.
type RPCStart struct {
	CallID  int64
	Service string
	Method  string
	Kind    CallKind
	Target  string
}

// RPCFinish is emitted once per call when its final status is known.
type RPCFinish struct {
	CallID   int64
	Service  string
	Method   string
	Kind     CallKind
	Target   string
	Code     codes.Code
	Err      error
	Duration time.Duration
}
