package grpctp

import "errors"

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("grpctp: connection closed")
	// ErrNotStreaming is returned when a stream is opened on a unary method.
	ErrNotStreaming = errors.New("grpctp: method is not streaming")
)
