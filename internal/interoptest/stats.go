package interoptest

import (
	"context"
	"sync"

	"google.golang.org/grpc/stats"
)

// The request's grpc-encoding never reaches handler metadata, so a stats
// handler records it from the InHeader event.

type compressionKey struct{}

type compressionTag struct {
	mu  sync.Mutex
	enc string
}

type compressionStats struct{}

func (compressionStats) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context {
	return context.WithValue(ctx, compressionKey{}, &compressionTag{})
}

func (compressionStats) HandleRPC(ctx context.Context, s stats.RPCStats) {
	h, ok := s.(*stats.InHeader)
	if !ok {
		return
	}
	if tag, ok := ctx.Value(compressionKey{}).(*compressionTag); ok {
		tag.mu.Lock()
		tag.enc = h.Compression
		tag.mu.Unlock()
	}
}

func (compressionStats) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context {
	return ctx
}

func (compressionStats) HandleConn(context.Context, stats.ConnStats) {}

func requestCompression(ctx context.Context) string {
	tag, ok := ctx.Value(compressionKey{}).(*compressionTag)
	if !ok {
		return ""
	}
	tag.mu.Lock()
	defer tag.mu.Unlock()
	return tag.enc
}
