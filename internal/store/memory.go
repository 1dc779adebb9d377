// apps/go-server/internal/store/memory.go
//
// In-memory registry of live game sessions.
// A session is added when a game view mounts and removed (and discarded,
// which stops its timers) when the view unmounts, when its owner logs out,
// or when it sits idle past the configured TTL.
//
// Characteristics:
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - State is lost when the process restarts.
//   - Lookups are owner-checked: a session is only visible to the user who mounted it.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/minigames/apps/go-server/internal/game"
)

// ErrNotFound is returned for unknown ids and for sessions owned by someone else.
var ErrNotFound = errors.New("not found")

// Store defines the registry interface for game sessions.
type Store interface {
	// Save adds or replaces a session.
	Save(ctx context.Context, s *game.Session) error

	// Get retrieves a session by ID for owner.
	Get(ctx context.Context, owner, id string) (*game.Session, error)

	// Delete discards and removes a session.
	Delete(ctx context.Context, owner, id string) error

	// DeleteOwner discards every session of owner and returns how many there were.
	DeleteOwner(ctx context.Context, owner string) int
}

type entry struct {
	s    *game.Session
	seen time.Time
}

// Memory is an in-memory map-based Store implementation.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*entry // keyed by Session.ID
	now      func() time.Time
}

// Ensure *Memory implements Store at compile time.
var _ Store = (*Memory)(nil)

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() *Memory {
	return &Memory{sessions: make(map[string]*entry), now: time.Now}
}

func (m *Memory) Save(ctx context.Context, s *game.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[s.ID]; ok && old.s != s {
		old.s.Discard()
	}
	m.sessions[s.ID] = &entry{s: s, seen: m.now()}
	return nil
}

func (m *Memory) Get(ctx context.Context, owner, id string) (*game.Session, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || e.s.Owner != owner {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	e.seen = m.now()
	m.mu.Unlock()
	return e.s, nil
}

func (m *Memory) Delete(ctx context.Context, owner, id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok || e.s.Owner != owner {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()
	e.s.Discard()
	return nil
}

func (m *Memory) DeleteOwner(ctx context.Context, owner string) int {
	m.mu.Lock()
	var gone []*game.Session
	for id, e := range m.sessions {
		if e.s.Owner == owner {
			gone = append(gone, e.s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range gone {
		s.Discard()
	}
	return len(gone)
}

// Sweep discards sessions idle for longer than ttl and returns how many.
func (m *Memory) Sweep(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)
	m.mu.Lock()
	var gone []*game.Session
	for id, e := range m.sessions {
		if e.seen.Before(cutoff) {
			gone = append(gone, e.s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, s := range gone {
		s.Discard()
	}
	return len(gone)
}

// Len reports the number of live sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunSweeper calls Sweep every interval until ctx ends.
func (m *Memory) RunSweeper(ctx context.Context, interval, ttl time.Duration, onSweep func(n int)) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(ttl); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
