package connectivity

import (
	"sync"
)

// Observer reports whether the remote store is currently reachable and pushes
// reachability transitions to subscribers.
type Observer interface {
	Online() bool
	Subscribe(fn func(online bool)) (cancel func())
}

// subscribers is the shared fan-out bookkeeping for Observer implementations.
type subscribers struct {
	mu   sync.Mutex
	subs map[int]func(bool)
	next int
}

func (s *subscribers) add(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(bool))
	}
	id := s.next
	s.next++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// notify invokes every subscriber outside the lock so callbacks may
// re-subscribe or cancel without deadlocking.
func (s *subscribers) notify(online bool) {
	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

// Manual is an Observer driven by explicit state changes. Tests and embedders
// that learn connectivity from their own platform hooks push transitions in.
type Manual struct {
	mu     sync.Mutex
	online bool
	subs   subscribers
}

var _ Observer = (*Manual)(nil)

// NewManual returns a Manual observer starting in the given state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

// Online reports the last pushed state.
func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers fn for future transitions.
func (m *Manual) Subscribe(fn func(online bool)) (cancel func()) {
	return m.subs.add(fn)
}

// SetOnline records a state change and notifies subscribers when the state
// actually flipped.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.mu.Unlock()
	m.subs.notify(online)
}
