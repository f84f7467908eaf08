package events

import (
	"errors"
	"testing"

	pkgerrors "github.com/glorpus-work/preload/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_DispatchInSubscriptionOrder(t *testing.T) {
	bus := NewBus[int]("test")
	var got []string

	bus.Subscribe(func(v int) { got = append(got, "first") })
	bus.Subscribe(func(v int) { got = append(got, "second") })
	bus.Subscribe(func(v int) { got = append(got, "third") })

	require.NoError(t, bus.Dispatch(1))
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus[string]("test")
	var a, b int

	unsubA := bus.Subscribe(func(string) { a++ })
	bus.Subscribe(func(string) { b++ })

	require.NoError(t, bus.Dispatch("x"))
	unsubA()
	unsubA()
	require.NoError(t, bus.Dispatch("y"))

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, bus.Len())
}

func TestBus_PanickingSubscriberDoesNotStopDelivery(t *testing.T) {
	bus := NewBus[int]("progress")
	var delivered []int

	bus.Subscribe(func(v int) { delivered = append(delivered, v) })
	bus.Subscribe(func(int) { panic("boom") })
	bus.Subscribe(func(v int) { delivered = append(delivered, v*10) })

	err := bus.Dispatch(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrSubscriberPanic))
	assert.Contains(t, err.Error(), "progress")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, []int{3, 30}, delivered)
}

func TestBus_DisposeStopsDelivery(t *testing.T) {
	bus := NewBus[int]("test")
	calls := 0
	bus.Subscribe(func(int) { calls++ })

	bus.Dispose()
	require.NoError(t, bus.Dispatch(1))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, bus.Len())

	bus.Subscribe(func(int) { calls++ })
	require.NoError(t, bus.Dispatch(2))
	assert.Equal(t, 0, calls, "subscriptions after dispose are ignored")
}

func TestBus_SubscribeDuringDispatch(t *testing.T) {
	bus := NewBus[int]("test")
	late := 0
	bus.Subscribe(func(int) {
		bus.Subscribe(func(int) { late++ })
	})

	require.NoError(t, bus.Dispatch(1))
	assert.Equal(t, 0, late, "subscribers added mid-dispatch wait for the next value")
	require.NoError(t, bus.Dispatch(2))
	assert.Equal(t, 1, late)
}

func TestDisposeAll(t *testing.T) {
	a := NewBus[int]("a")
	b := NewBus[string]("b")
	a.Subscribe(func(int) {})
	b.Subscribe(func(string) {})

	DisposeAll(a, b)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 0, b.Len())
}
