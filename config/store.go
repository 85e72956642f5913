package config

import "sync"

// Store is the shared handle to the active Configuration. Readers take a
// short read lock per lookup; Swap replaces the whole value under the
// write lock, so no reader sees a partial replacement.
type Store struct {
	mu  sync.RWMutex
	cfg *Configuration
}

func NewStore(cfg *Configuration) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) Current() *Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Lookup returns a copy of the bind for id with its actions cloned, so the
// caller can use it after the lock is released.
func (s *Store) Lookup(id string) (Bind, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.cfg.Binds[id]
	if !ok {
		return Bind{}, false
	}
	if b.OnDown != nil {
		b.OnDown = b.OnDown.Clone()
	}
	if b.OnUp != nil {
		b.OnUp = b.OnUp.Clone()
	}
	return b, true
}

// Swap installs cfg and returns the configuration it replaced.
func (s *Store) Swap(cfg *Configuration) *Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cfg
	s.cfg = cfg
	return prev
}
