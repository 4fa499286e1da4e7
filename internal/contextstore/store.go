package contextstore

import (
	"sync"
	"time"

	"github.com/chinmaysolanki/dost-ai/internal/models"
	"github.com/chinmaysolanki/dost-ai/internal/utils"
)

const DefaultWindowSize = 20

// Store keeps the live conversation window per session. It is purely
// in-memory: evicted sessions are handed back to the caller so they can be
// archived elsewhere.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	window int
	idle   time.Duration
}

type session struct {
	mu         sync.Mutex
	userID     string
	turns      []models.Turn
	startedAt  time.Time
	lastActive time.Time
	evicted    bool
}

// Evicted is the final state of a session removed by the idle sweep.
type Evicted struct {
	SessionID  string
	UserID     string
	Turns      []models.Turn
	StartedAt  time.Time
	LastActive time.Time
}

func New(windowSize int, idleTimeout time.Duration) *Store {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Store{
		sessions: make(map[string]*session),
		window:   windowSize,
		idle:     idleTimeout,
	}
}

// Ensure returns the session, creating it when absent. Created reports
// whether a new session was made.
func (s *Store) Ensure(sessionID, userID string) (created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		return false
	}

	now := time.Now().UTC()
	s.sessions[sessionID] = &session{
		userID:     userID,
		startedAt:  now,
		lastActive: now,
	}
	return true
}

// Append adds a turn and truncates the window FIFO to the configured size.
// Returns the updated window. Fails with ErrSessionNotFound when the session
// was evicted (or never created).
func (s *Store) Append(sessionID string, turn models.Turn) ([]models.Turn, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, utils.ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return nil, utils.ErrSessionNotFound
	}

	// turns are strictly timestamp-increasing within a session
	if n := len(sess.turns); n > 0 && !turn.Timestamp.After(sess.turns[n-1].Timestamp) {
		turn.Timestamp = sess.turns[n-1].Timestamp.Add(time.Microsecond)
	}

	sess.turns = append(sess.turns, turn)
	if len(sess.turns) > s.window {
		// drop oldest first, keep relative order
		sess.turns = sess.turns[len(sess.turns)-s.window:]
	}
	sess.lastActive = time.Now().UTC()

	return copyTurns(sess.turns), nil
}

// Window returns the current turn sequence for prompt assembly. Read-only,
// safe for concurrent callers.
func (s *Store) Window(sessionID string) ([]models.Turn, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, utils.ErrSessionNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.evicted {
		return nil, utils.ErrSessionNotFound
	}
	return copyTurns(sess.turns), nil
}

// Owner returns the user id a session belongs to.
func (s *Store) Owner(sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", utils.ErrSessionNotFound
	}
	return sess.userID, nil
}

// EvictIdle removes sessions with no activity since the idle threshold and
// returns their final state. It takes the same per-session lock as Append,
// so a sweep never races an in-flight append.
func (s *Store) EvictIdle(now time.Time) []Evicted {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Evicted
	cutoff := now.Add(-s.idle)

	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.lastActive.Before(cutoff) {
			sess.evicted = true
			out = append(out, Evicted{
				SessionID:  id,
				UserID:     sess.userID,
				Turns:      copyTurns(sess.turns),
				StartedAt:  sess.startedAt,
				LastActive: sess.lastActive,
			})
			delete(s.sessions, id)
		}
		sess.mu.Unlock()
	}
	return out
}

// ActiveSessions reports how many live windows the store holds.
func (s *Store) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copyTurns(in []models.Turn) []models.Turn {
	out := make([]models.Turn, len(in))
	copy(out, in)
	return out
}
