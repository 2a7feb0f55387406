// Package payload creates the request bodies sent by interop scenarios.
package payload

import (
	"fmt"

	"github.com/hanpama/grpc-interop/internal/testproto"
)

// New returns a COMPRESSABLE payload whose body is exactly size zero bytes.
// A negative size is a caller bug and panics.
func New(size int) *testproto.Payload {
	if size < 0 {
		panic(fmt.Sprintf("payload: negative size %d", size))
	}
	return &testproto.Payload{
		Type: testproto.Compressable,
		Body: make([]byte, size),
	}
}

// Sum adds up sizes, e.g. the aggregate a client-streaming peer should report.
func Sum(sizes []int) int {
	total := 0
	for _, s := range sizes {
		total += s
	}
	return total
}
