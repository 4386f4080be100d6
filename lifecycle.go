package pawmate

import "sync"

// AppState is the process-wide foreground/background state.
type AppState string

const (
	AppActive   AppState = "active"
	AppInactive AppState = "inactive"
)

// LifecycleBus broadcasts app foreground/background transitions to any
// interested component. It is read-only signaling: subscribers observe
// transitions, nothing owns the state. Chat sessions use it to re-poll
// once when the app returns to the foreground while delivery is degraded.
type LifecycleBus struct {
	mu        sync.Mutex
	state     AppState
	nextID    int
	listeners map[int]func(AppState)
}

// NewLifecycleBus creates a bus in the active state.
func NewLifecycleBus() *LifecycleBus {
	return &LifecycleBus{
		state:     AppActive,
		listeners: make(map[int]func(AppState)),
	}
}

// State returns the current app state.
func (b *LifecycleBus) State() AppState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetState records a transition and notifies subscribers. Setting the
// current state again is a no-op.
func (b *LifecycleBus) SetState(state AppState) {
	b.mu.Lock()
	if b.state == state {
		b.mu.Unlock()
		return
	}
	b.state = state
	handlers := make([]func(AppState), 0, len(b.listeners))
	for _, h := range b.listeners {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() { recover() }() // swallow panics in user callbacks
			h(state)
		}()
	}
}

// Subscribe registers a transition handler and returns its unsubscribe
// function.
func (b *LifecycleBus) Subscribe(h func(AppState)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}
