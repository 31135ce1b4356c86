package state

import (
	"sync"
	"time"
)

// DefaultIdle is how long a session's value survives without being used.
const DefaultIdle = 30 * time.Minute

// inUse is implemented by values that must outlive their idle time while
// someone is still subscribed to them.
type inUse interface {
	Subscribers() int
}

type registryEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// Registry keeps one lazily created value per browser session id. Values
// untouched for longer than the idle timeout are dropped on a later access,
// unless they still have subscribers.
type Registry[T any] struct {
	mu        sync.Mutex
	items     map[string]*registryEntry[T]
	newFn     func() T
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewRegistry[T any](newFn func() T) *Registry[T] {
	return &Registry[T]{
		items: make(map[string]*registryEntry[T]),
		newFn: newFn,
		idle:  DefaultIdle,
		now:   time.Now,
	}
}

// SetIdleTimeout changes the idle timeout. Zero keeps values forever.
func (r *Registry[T]) SetIdleTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.idle = d
}

// Get returns the value for key, creating it on first use.
func (r *Registry[T]) Get(key string) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	e, ok := r.items[key]
	if !ok {
		e = &registryEntry[T]{value: r.newFn()}
		r.items[key] = e
	}
	e.lastSeen = now
	return e.value
}

func (r *Registry[T]) Lookup(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	r.sweepLocked(now)
	e, ok := r.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	e.lastSeen = now
	return e.value, true
}

func (r *Registry[T]) Drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, key)
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *Registry[T]) sweepLocked(now time.Time) {
	if r.idle <= 0 || now.Sub(r.lastSweep) < r.idle {
		return
	}
	for key, e := range r.items {
		if now.Sub(e.lastSeen) <= r.idle {
			continue
		}
		if u, ok := any(e.value).(inUse); ok && u.Subscribers() > 0 {
			e.lastSeen = now
			continue
		}
		delete(r.items, key)
	}
	r.lastSweep = now
}
