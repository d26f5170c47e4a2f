package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_OnceDeliversFirstMatchOnly(t *testing.T) {
	var e Emitter
	ch, cancel := e.Once(EventReady, EventError)
	defer cancel()

	e.Emit(Event{Kind: EventConnect, Addr: "a:1"})
	e.Emit(Event{Kind: EventError})
	e.Emit(Event{Kind: EventReady})

	select {
	case ev := <-ch:
		assert.Equal(t, EventError, ev.Kind)
	default:
		t.Fatal("expected an event")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event %v", ev)
	default:
	}
	assert.Empty(t, e.waiters)
}

func TestEmitter_CancelReleasesWaiter(t *testing.T) {
	var e Emitter
	ch, cancel := e.Once(EventReady)
	cancel()
	assert.Empty(t, e.waiters)

	e.Emit(Event{Kind: EventReady})
	select {
	case <-ch:
		t.Fatal("cancelled waiter received an event")
	default:
	}

	// cancelling after delivery is harmless
	_, cancel = e.Once(EventReady)
	e.Emit(Event{Kind: EventReady})
	cancel()
}

func TestEmitter_ObserversRunInOrder(t *testing.T) {
	var e Emitter
	var got []string

	e.On(EventConnect, func(ev Event) { got = append(got, "first:"+ev.Addr) })
	e.On(EventConnect, func(ev Event) { got = append(got, "second:"+ev.Addr) })
	e.On(EventReady, func(Event) { got = append(got, "ready") })

	e.Emit(Event{Kind: EventConnect, Addr: "10.0.0.1:6379"})
	e.Emit(Event{Kind: EventClose})

	require.Equal(t, []string{"first:10.0.0.1:6379", "second:10.0.0.1:6379"}, got)
}

func TestEmitter_ObserverMayRegister(t *testing.T) {
	var e Emitter
	calls := 0
	e.On(EventReady, func(Event) {
		calls++
		e.On(EventReady, func(Event) { calls++ })
	})

	e.Emit(Event{Kind: EventReady})
	assert.Equal(t, 1, calls)
}

func TestPolicyWaitKinds(t *testing.T) {
	assert.ElementsMatch(t, []EventKind{EventReady, EventError, EventClose}, StandalonePolicy.waitKinds())
	assert.ElementsMatch(t, []EventKind{EventReady, EventClose}, ClusterPolicy.waitKinds())
}

func TestWaitOutcome(t *testing.T) {
	assert.Equal(t, OutcomeReady, waitOutcome(nil))
	assert.Equal(t, OutcomeTimeout, waitOutcome(ErrTimeout))
	assert.Equal(t, OutcomeClosed, waitOutcome(ErrClosed))
	assert.Equal(t, OutcomeError, waitOutcome(ErrConnection))
}
