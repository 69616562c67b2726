// Package session is the mediator's in-memory live-session registry: a
// map-of-sessions with an inactivity janitor, generalized to the
// mediator's finer-grained state machine and voice/video readiness
// composition.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avatarplatform/mediator/internal/models"
)

// State is the mediator's per-session state machine, finer-grained than
// models.SessionStatus (which is what gets persisted at rest).
type State string

const (
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateActive     State = "active"
	StateDraining   State = "draining"
	StateFailed     State = "failed"
)

var ErrNotFound = errors.New("session: not found")

// Session is one live mediator session's in-memory bookkeeping.
type Session struct {
	ID        string
	OwnerID   string
	AvatarID  string
	Kind      models.SessionKind
	State     State

	VoiceReady bool
	VideoReady bool // ignored for voice-only sessions, where it stays false

	InterruptionCount int
	StartedAt         time.Time
	LastActivityAt    time.Time
}

// readyComposed reports whether all required upstreams for this
// session's kind have signaled ready.
func (s *Session) readyComposed() bool {
	if s.Kind == models.SessionKindVideo {
		return s.VoiceReady && s.VideoReady
	}
	return s.VoiceReady
}

// Manager tracks all live sessions for one process. Each WebSocket
// connection owns exactly one Session for its lifetime.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

// SetExpireHook registers a callback invoked (outside the manager's
// lock) for every session the inactivity janitor expires.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Create registers a new session in StateConnecting.
func (m *Manager) Create(ownerID, avatarID string, kind models.SessionKind) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		AvatarID:       avatarID,
		Kind:           kind,
		State:          StateConnecting,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// MarkVoiceReady records the voice upstream's ready signal and, if
// readiness composition is now satisfied, transitions to StateReady.
// Returns the post-update state so the caller knows whether to emit the
// client-facing ready frame.
func (m *Manager) MarkVoiceReady(sessionID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	s.VoiceReady = true
	return m.maybeAdvanceToReady(s), nil
}

// MarkVideoReady mirrors MarkVoiceReady for the video upstream.
func (m *Manager) MarkVideoReady(sessionID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return "", ErrNotFound
	}
	s.VideoReady = true
	return m.maybeAdvanceToReady(s), nil
}

func (m *Manager) maybeAdvanceToReady(s *Session) State {
	if s.State == StateConnecting && s.readyComposed() {
		s.State = StateReady
	}
	return s.State
}

// MarkActive transitions a Ready session to Active on its first user
// turn. A no-op if already Active.
func (m *Manager) MarkActive(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.State == StateReady {
		s.State = StateActive
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Interrupt records a client barge-in.
func (m *Manager) Interrupt(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.InterruptionCount++
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Drain transitions a session to Draining, the terminal-bound state
// while teardown runs.
func (m *Manager) Drain(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.State = StateDraining
	return clone(s), nil
}

// Fail transitions a session to Failed.
func (m *Manager) Fail(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.State = StateFailed
	return clone(s), nil
}

// Remove deletes a session's in-memory bookkeeping once teardown is
// complete.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// StartJanitor periodically expires sessions that have been inactive
// past the configured timeout, invoking the expire hook for each.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

// ActiveCount reports sessions not yet Draining/Failed.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.State != StateDraining && s.State != StateFailed {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.State == StateDraining || s.State == StateFailed {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.State = StateDraining
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
