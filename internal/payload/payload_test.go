package payload

import (
	"testing"

	"github.com/hanpama/grpc-interop/internal/testproto"
	"github.com/stretchr/testify/require"
)

func TestNew_ExactLength(t *testing.T) {
	for _, size := range []int{0, 1, 8, 1828, 27182, 271828} {
		p := New(size)
		require.Len(t, p.Body, size)
		require.Equal(t, testproto.Compressable, p.Type)
		for _, b := range p.Body {
			if b != 0 {
				t.Fatalf("payload of size %d has a non-zero byte", size)
			}
		}
	}
}

func TestNew_NegativePanics(t *testing.T) {
	require.Panics(t, func() { New(-1) })
}

func TestSum(t *testing.T) {
	require.Equal(t, 74922, Sum([]int{27182, 8, 1828, 45904}))
	require.Equal(t, 0, Sum(nil))
}
