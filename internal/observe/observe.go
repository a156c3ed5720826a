// Package observe provides a small observer registry. Subscribing returns a
// Disposer; once a Disposer has returned, the observer receives no further
// deliveries.
package observe

import (
	"sync"
	"sync/atomic"
)

// Disposer detaches an observer. Calling it more than once is a no-op.
type Disposer func()

// Noop is a Disposer that does nothing.
func Noop() {}

type observer[T any] struct {
	fn     func(T)
	closed atomic.Bool
}

// Registry fans values out to the observers registered at publish time.
type Registry[T any] struct {
	mu        sync.RWMutex
	next      uint64
	observers map[uint64]*observer[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{observers: make(map[uint64]*observer[T])}
}

// Subscribe registers fn and returns its Disposer.
func (r *Registry[T]) Subscribe(fn func(T)) Disposer {
	o := &observer[T]{fn: fn}

	r.mu.Lock()
	id := r.next
	r.next++
	r.observers[id] = o
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.closed.Store(true)
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

// Publish delivers v synchronously to every live observer. Order across
// observers is unspecified.
func (r *Registry[T]) Publish(v T) {
	r.mu.RLock()
	targets := make([]*observer[T], 0, len(r.observers))
	for _, o := range r.observers {
		targets = append(targets, o)
	}
	r.mu.RUnlock()

	for _, o := range targets {
		if o.closed.Load() {
			continue
		}
		o.fn(v)
	}
}

// Len returns the number of live observers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// Guard wraps fn so that it stops being invoked once the returned Disposer
// has been called. It is used for feeds whose producer cannot be detached
// synchronously, such as a remote snapshot stream.
func Guard[T any](fn func(T)) (func(T), Disposer) {
	var closed atomic.Bool
	var once sync.Once
	guarded := func(v T) {
		if closed.Load() {
			return
		}
		fn(v)
	}
	return guarded, func() {
		once.Do(func() { closed.Store(true) })
	}
}
