// Package state holds the replay-latest value stores that back per-session UI
// state: the globe selection and the signed-in user.
package state

import "sync"

// Store holds a single value and broadcasts every change to its subscribers.
// A new subscriber immediately receives the current value. Each subscription
// buffers only the latest value, so a slow reader skips intermediate values
// instead of blocking Set.
type Store[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[*Subscription[T]]struct{}
}

// NewStore returns a store whose initial value is initial.
func NewStore[T any](initial T) *Store[T] {
	return &Store[T]{
		value: initial,
		subs:  make(map[*Subscription[T]]struct{}),
	}
}

func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Store[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.broadcastLocked()
}

// Update applies fn to the current value and stores the result atomically.
func (s *Store[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.broadcastLocked()
	return s.value
}

// Subscribe registers a subscriber. The caller must Close it when done.
func (s *Store[T]) Subscribe() *Subscription[T] {
	sub := &Subscription[T]{
		store: s,
		ch:    make(chan T, 1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub] = struct{}{}
	sub.ch <- s.value
	return sub
}

// Subscribers reports how many subscriptions are open.
func (s *Store[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Store[T]) broadcastLocked() {
	for sub := range s.subs {
		// Sends only happen under s.mu, so after draining there is room.
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- s.value
	}
}

func (s *Store[T]) remove(sub *Subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.ch)
}

// Subscription delivers values from a Store until closed.
type Subscription[T any] struct {
	store *Store[T]
	ch    chan T
	once  sync.Once
}

// C returns the delivery channel. It is closed by Close.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.store.remove(s)
	})
}
