package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ n int }
type pong struct{ s string }

func TestOnEmit_ByType(t *testing.T) {
	b := New()
	var pings []int
	var pongs []string
	On(b, func(_ context.Context, e ping) { pings = append(pings, e.n) })
	On(b, func(_ context.Context, e pong) { pongs = append(pongs, e.s) })

	Emit(context.Background(), b, ping{1})
	Emit(context.Background(), b, pong{"a"})
	Emit(context.Background(), b, ping{2})

	require.Equal(t, []int{1, 2}, pings)
	require.Equal(t, []string{"a"}, pongs)
}

func TestUnsubscribe_RemovesOnlyThatHandler(t *testing.T) {
	b := New()
	var first, second int
	h := func(_ context.Context, _ ping) { first++ }
	unsub := On(b, h)
	On(b, func(_ context.Context, _ ping) { second++ })
	// the same function value registered twice stays two subscriptions
	On(b, h)

	unsub()
	unsub()
	Emit(context.Background(), b, ping{})
	require.Equal(t, 1, first)
	require.Equal(t, 1, second)
}

func TestGlobal(t *testing.T) {
	Use(nil)
	Publish(context.Background(), ping{}) // no bus, no panic
	require.NotNil(t, Subscribe(func(context.Context, ping) {}))

	b := New()
	Use(b)
	defer Use(nil)
	got := 0
	unsub := Subscribe(func(_ context.Context, e ping) { got += e.n })
	Publish(context.Background(), ping{3})
	unsub()
	Publish(context.Background(), ping{4})
	require.Equal(t, 3, got)
}
