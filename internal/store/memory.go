// internal/store/memory.go
//
// In-memory session store for running word chain games.
//
// Characteristics:
//   - Stores *Session values keyed by ID in a map.
//   - Update runs a callback under the write lock, which is how callers
//     serialize turns, timeouts and computer moves for the engine (the
//     engine itself does no locking).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/wordchain/internal/bot"
	"github.com/robalobadob/wordchain/internal/game"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("store: session not found")

// Session is one running game plus the presentation state around it.
type Session struct {
	ID        string
	Game      *game.Game
	Bot       bot.Policy // plays computer turns; nil if the roster has no computer
	UserID    string     // set when started by a signed-in user
	AnonID    string     // set for guests
	Daily     string     // date key for daily games, empty otherwise
	Deadline  time.Time  // current turn expiry; zero means no timer
	StartedAt time.Time
	EndedAt   time.Time // zero while running
	Recorded  bool      // result written to the database
}

// OwnerID returns the user ID, or the anonymous ID for guests.
func (s *Session) OwnerID() string {
	if s.UserID != "" {
		return s.UserID
	}
	return s.AnonID
}

// Store defines the persistence interface for sessions.
type Store interface {
	// Save persists or replaces a session.
	Save(ctx context.Context, s *Session) error

	// Update runs fn with exclusive access to the session.
	// Returns ErrNotFound for unknown IDs, otherwise fn's error.
	Update(ctx context.Context, id string, fn func(*Session) error) error

	// Prune drops sessions that ended before the cutoff and returns how many.
	Prune(ctx context.Context, endedBefore time.Time) int
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{sessions: make(map[string]*Session)}
}

func (m *memory) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memory) Update(ctx context.Context, id string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	return fn(s)
}

func (m *memory) Prune(ctx context.Context, endedBefore time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if !s.EndedAt.IsZero() && s.EndedAt.Before(endedBefore) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}
