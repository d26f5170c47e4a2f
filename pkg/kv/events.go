package kv

import "sync"

// Emitter fans transport events out to persistent observers and one-shot waiters.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.Mutex
	observers map[EventKind][]func(Event)
	waiters   map[uint64]*waiter
	nextID    uint64
}

type waiter struct {
	kinds []EventKind
	ch    chan Event
}

func (w *waiter) wants(kind EventKind) bool {
	for _, k := range w.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// On registers fn for every future event of the given kind
func (e *Emitter) On(kind EventKind, fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.observers == nil {
		e.observers = make(map[EventKind][]func(Event))
	}
	e.observers[kind] = append(e.observers[kind], fn)
}

// Once subscribes to the next event matching any of kinds. The returned channel
// receives at most one event and is never closed.
func (e *Emitter) Once(kinds ...EventKind) (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.waiters == nil {
		e.waiters = make(map[uint64]*waiter)
	}
	e.nextID++
	id := e.nextID
	w := &waiter{kinds: kinds, ch: make(chan Event, 1)}
	e.waiters[id] = w

	cancel := func() {
		e.mu.Lock()
		delete(e.waiters, id)
		e.mu.Unlock()
	}
	return w.ch, cancel
}

// Emit delivers ev to matching one-shot waiters, then to persistent observers.
// Observers run synchronously on the emitting goroutine.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	for id, w := range e.waiters {
		if !w.wants(ev.Kind) {
			continue
		}
		// buffered with capacity one and removed on first delivery, so never blocks
		w.ch <- ev
		delete(e.waiters, id)
	}
	observers := append([]func(Event){}, e.observers[ev.Kind]...)
	e.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}
