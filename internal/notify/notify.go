// Package notify provides synchronous change notification.
//
// A Notifier fans a value out to every subscribed observer, in subscription
// order, on the caller's goroutine. There is no buffering and no replay:
// observers subscribed after a notification never see it.
package notify

import (
	"sync"
)

// Observer is called with each notified value.
type Observer[T any] func(value T)

// Subscription represents an active observer subscription.
type Subscription struct {
	id     uint64
	cancel func(id uint64)
	once   sync.Once
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(func() {
		s.cancel(s.id)
	})
}

type entry[T any] struct {
	id       uint64
	observer Observer[T]
}

// Notifier manages observer subscriptions for values of type T.
// The zero value is not usable; create one with New.
type Notifier[T any] struct {
	mu sync.RWMutex

	// Observers in subscription order
	observers []entry[T]

	// Next subscription ID
	nextID uint64
}

// New creates a new Notifier.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{}
}

// Subscribe registers an observer. A nil observer is ignored and the
// returned subscription is inert.
func (n *Notifier[T]) Subscribe(observer Observer[T]) *Subscription {
	if observer == nil {
		return &Subscription{}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers = append(n.observers, entry[T]{id: id, observer: observer})

	return &Subscription{
		id:     id,
		cancel: n.unsubscribe,
	}
}

// Notify delivers value to all current observers.
// Observers are called outside the lock, so an observer may unsubscribe
// itself or others; changes take effect from the next Notify.
func (n *Notifier[T]) Notify(value T) {
	n.mu.RLock()
	if len(n.observers) == 0 {
		n.mu.RUnlock()
		return
	}
	observers := make([]Observer[T], len(n.observers))
	for i, e := range n.observers {
		observers[i] = e.observer
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(value)
	}
}

// Len returns the number of active subscriptions.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// unsubscribe removes an observer by ID.
func (n *Notifier[T]) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, e := range n.observers {
		if e.id == id {
			n.observers = append(n.observers[:i], n.observers[i+1:]...)
			return
		}
	}
}
