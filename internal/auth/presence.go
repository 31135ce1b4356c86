package auth

import (
	"econglobe.io/explorer/internal/state"
	"econglobe.io/explorer/internal/store"
)

// Presence holds the current-user stream of each browser session.
type Presence struct {
	streams *state.Registry[*state.Store[*store.User]]
}

func NewPresence() *Presence {
	return &Presence{
		streams: state.NewRegistry(func() *state.Store[*store.User] {
			return state.NewStore[*store.User](nil)
		}),
	}
}

// Stream returns the session's current-user stream, creating it signed out.
func (p *Presence) Stream(sid string) *state.Store[*store.User] {
	return p.streams.Get(sid)
}

// Observe records who the session is acting as. Subscribers are only woken
// when the identity or display name changes.
func (p *Presence) Observe(sid string, user *store.User) {
	if user == nil {
		// Anonymous sessions get no stream until someone asks for one.
		if s, ok := p.streams.Lookup(sid); ok && s.Get() != nil {
			s.Set(nil)
		}
		return
	}
	s := p.streams.Get(sid)
	if sameUser(s.Get(), user) {
		return
	}
	s.Set(user)
}

// Forget drops a session whose stream nobody is watching.
func (p *Presence) Forget(sid string) {
	s, ok := p.streams.Lookup(sid)
	if ok && s.Subscribers() == 0 {
		p.streams.Drop(sid)
	}
}

func sameUser(a, b *store.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.DisplayName == b.DisplayName
}
