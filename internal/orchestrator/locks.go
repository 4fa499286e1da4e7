package orchestrator

import "sync"

// sessionLocks hands out one mutex per session id so concurrent messages
// for the same session serialize while distinct sessions run in parallel.
// Entries are refcounted and dropped when the last holder releases.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*lockEntry)}
}

func (s *sessionLocks) acquire(key string) *lockEntry {
	s.mu.Lock()
	e, ok := s.locks[key]
	if !ok {
		e = &lockEntry{}
		s.locks[key] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return e
}

func (s *sessionLocks) release(key string, e *lockEntry) {
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}
