// Package reqid tags a context with the id of the test case it belongs to,
// so subscribers can correlate RPC events with their case.
package reqid

import (
	"context"
	"sync/atomic"
)

type key struct{}

var last atomic.Int64

// NewContext returns a copy of parent carrying a fresh id, and the id.
// Ids are positive and increase monotonically within a process.
func NewContext(parent context.Context) (context.Context, int64) {
	id := last.Add(1)
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the id from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}
