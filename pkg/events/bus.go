// Package events provides a typed publish/subscribe channel. A preloader
// keeps one Bus per event kind.
package events

import (
	"errors"
	"fmt"
	"sync"

	pkgerrors "github.com/glorpus-work/preload/pkg/errors"
)

// Disposer is implemented by every Bus so owners can tear several down at once.
type Disposer interface {
	Dispose()
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Bus delivers values of type T to its subscribers, in subscription order.
type Bus[T any] struct {
	name     string
	mu       sync.Mutex
	subs     []subscriber[T]
	nextID   uint64
	disposed bool
}

// NewBus creates a bus; name only appears in error messages.
func NewBus[T any](name string) *Bus[T] {
	return &Bus[T]{name: name}
}

// Subscribe registers fn and returns a func that removes it. Subscribing to
// a disposed bus is a no-op.
func (b *Bus[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed || fn == nil {
		return func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Dispatch synchronously calls every subscriber registered at the time of
// the call. A panicking subscriber does not stop delivery to the others;
// the panics are returned joined, each wrapping ErrSubscriberPanic.
func (b *Bus[T]) Dispatch(v T) error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	subs := make([]subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := b.call(s.fn, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Bus[T]) call(fn func(T), v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", pkgerrors.ErrSubscriberPanic, b.name, r)
		}
	}()
	fn(v)
	return nil
}

// Len returns the number of live subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dispose drops all subscribers; later Dispatch calls are no-ops.
func (b *Bus[T]) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
	b.disposed = true
}

// DisposeAll disposes every bus in ds.
func DisposeAll(ds ...Disposer) {
	for _, d := range ds {
		d.Dispose()
	}
}
