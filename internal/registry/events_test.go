package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DispatchReachesAllListeners(t *testing.T) {
	bus := NewBus()

	var a, b int
	bus.Subscribe(EventProviderRegistered, func(Event) { a++ })
	bus.Subscribe(EventProviderRegistered, func(Event) { b++ })

	bus.Dispatch(Event{Kind: EventProviderRegistered})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestBus_PanickingListenerIsIsolated(t *testing.T) {
	bus := NewBus()

	var survived int
	bus.Subscribe(EventContextProvided, func(Event) { panic("listener bug") })
	bus.Subscribe(EventContextProvided, func(Event) { survived++ })

	assert.NotPanics(t, func() {
		bus.Dispatch(Event{Kind: EventContextProvided})
	})
	assert.Equal(t, 1, survived)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var calls int
	sub := bus.Subscribe(EventPermissionGranted, func(Event) { calls++ })
	bus.Dispatch(Event{Kind: EventPermissionGranted})
	bus.Unsubscribe(sub)
	bus.Dispatch(Event{Kind: EventPermissionGranted})

	assert.Equal(t, 1, calls)
}

func TestBus_KindsAreIndependent(t *testing.T) {
	bus := NewBus()

	var calls int
	bus.Subscribe(EventPermissionRevoked, func(Event) { calls++ })
	bus.Dispatch(Event{Kind: EventPermissionGranted})

	assert.Equal(t, 0, calls)
}
