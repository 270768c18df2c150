// Package emitter is a small typed fan-out used by the daemon session and the
// application registry.
//
// Emit copies the listener list before calling anyone, so listeners that
// subscribe or cancel from inside a callback only affect later emissions.
package emitter

import "sync"

// Subscription is returned by Subscribe. Cancel is idempotent.
type Subscription interface {
	Cancel()
}

// Emitter delivers values of type T to its listeners in subscription order.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Subscribe registers fn and returns a handle that removes it.
func (e *Emitter[T]) Subscribe(fn func(T)) Subscription {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})
	e.mu.Unlock()

	return &subscription{cancel: func() { e.remove(id) }}
}

// Emit calls every listener registered at the time of the call.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	snapshot := make([]listener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(v)
	}
}

// Len returns the number of registered listeners.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Group cancels several subscriptions at once.
type Group []Subscription

func (g Group) Cancel() {
	for _, s := range g {
		s.Cancel()
	}
}
