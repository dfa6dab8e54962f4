package dragdrop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowcal/project/internal/app/events"
	"github.com/flowcal/project/internal/timeutil"
)

var (
	ErrSessionActive = errors.New("a drag session is already active")
	ErrNoSession     = errors.New("no active drag session")
)

// Outcome is the terminal result of a release.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeAborted   Outcome = "aborted"
	OutcomeFailed    Outcome = "failed"
)

// Result describes how a drag session ended. Event is populated only for a
// committed move.
type Result struct {
	Outcome Outcome      `json:"outcome"`
	Target  CommitTarget `json:"target,omitempty"`
	Event   events.Event `json:"event,omitempty"`
}

// Manager owns at most one live drag session per user and runs the
// commit-or-rollback sequence against the persistence gateway and the user's
// event store. The store is never touched before the gateway call succeeds.
type Manager struct {
	Gateway events.Gateway

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(gateway events.Gateway) *Manager {
	return &Manager{
		Gateway:  gateway,
		sessions: map[string]*Session{},
	}
}

// Grab starts a session for the user. A second grab while one is live is
// rejected, the server-side equivalent of the source chip having its pointer
// events disabled mid-drag.
func (m *Manager) Grab(userID string, event events.Event, viewDate time.Time, vp Viewport) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[userID]; exists {
		return nil, ErrSessionActive
	}
	session, err := Begin(event, viewDate, vp)
	if err != nil {
		return nil, err
	}
	m.sessions[userID] = session
	return session, nil
}

// Track forwards a pointer sample to the user's session.
func (m *Manager) Track(userID string, x, y float64) (*Session, error) {
	m.mu.Lock()
	session, exists := m.sessions[userID]
	m.mu.Unlock()
	if !exists {
		return nil, ErrNoSession
	}
	if _, err := session.Track(x, y); err != nil {
		return nil, err
	}
	return session, nil
}

// Release ends the user's session at the given pointer position. Released
// over no zone it aborts with nothing mutated. Otherwise the gateway update
// runs first; only on success is the store patched in place. The session is
// cleared on every path.
func (m *Manager) Release(ctx context.Context, userID string, store *events.Store, x, y float64) (Result, error) {
	m.mu.Lock()
	session, exists := m.sessions[userID]
	if !exists {
		m.mu.Unlock()
		return Result{}, ErrNoSession
	}
	// Claim the session before resolving so an overlapping track fails
	// instead of mutating it mid-commit.
	if err := session.beginCommit(); err != nil {
		m.mu.Unlock()
		return Result{}, err
	}

	target, ok := session.Resolve(x, y)
	if !ok {
		delete(m.sessions, userID)
		m.mu.Unlock()
		return Result{Outcome: OutcomeAborted}, nil
	}
	m.mu.Unlock()

	moved := session.event
	moved.Date = timeutil.DateOnly(target.Date)
	moved.StartTime = target.StartTime
	moved.EndTime = target.EndTime

	err := m.Gateway.Update(ctx, userID, session.event.ID, moved)

	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()

	if err != nil {
		return Result{Outcome: OutcomeFailed, Target: target}, err
	}

	store.Patch(moved.ID, moved.Date, moved.StartTime, moved.EndTime)
	return Result{Outcome: OutcomeCommitted, Target: target, Event: moved}, nil
}

// Cancel drops a session without touching anything, for pointercancel and
// visibility-change cleanup. Reports whether a session existed.
func (m *Manager) Cancel(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[userID]; !exists {
		return false
	}
	delete(m.sessions, userID)
	return true
}

// Session returns the user's live session, if any.
func (m *Manager) Session(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, exists := m.sessions[userID]
	return session, exists
}
