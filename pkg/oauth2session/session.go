package oauth2session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// Session is created when a sign-in or a provider sign-out starts and
// is looked up by its OAuth2 state when the provider calls back.
type Session struct {
	ID                   string    `json:"id"`
	State                string    `json:"state"`
	CreatedAt            time.Time `json:"created_at"`
	CodeVerifier         string    `json:"code_verifier"`
	ReturnURL            string    `json:"return_url"`
	AccessToken          string    `json:"access_token"`
	AccessTokenExpiresAt time.Time `json:"access_token_expires_at"`
	RefreshToken         string    `json:"refresh_token"`
	IDToken              string    `json:"id_token"`
}

type SessionManager interface {
	CreateSession(state string, codeVerifier string, returnURL string) (*Session, error)
	UpdateSession(session *Session) error
	GetSessionByState(state string) (*Session, error)
	GetSessionByID(id string) (*Session, error)
	DeleteSessionByID(id string) error
}

type memorySessionManager struct {
	mux        *sync.RWMutex
	byState    map[string]*Session
	byID       map[string]*Session
	pendingTTL time.Duration
	now        func() time.Time
}

// NewMemorySessionManager keeps sessions in process memory. A session
// whose sign-in is not completed within pendingTTL is dropped, as is
// a session whose access token has expired. Sessions are lost on
// restart.
func NewMemorySessionManager(pendingTTL time.Duration) SessionManager {
	return &memorySessionManager{
		mux:        &sync.RWMutex{},
		byState:    make(map[string]*Session),
		byID:       make(map[string]*Session),
		pendingTTL: pendingTTL,
		now:        time.Now,
	}
}

func (m *memorySessionManager) CreateSession(state string, codeVerifier string, returnURL string) (*Session, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.sweep()
	if _, ok := m.byState[state]; ok {
		return nil, fmt.Errorf("session with state '%s' already exists", state)
	}
	session := &Session{
		ID:           ksuid.New().String(),
		State:        state,
		CreatedAt:    m.now(),
		CodeVerifier: codeVerifier,
		ReturnURL:    returnURL,
	}
	m.byState[state] = session
	m.byID[session.ID] = session
	slog.Debug("session created", "id", session.ID)
	s := *session
	return &s, nil
}

func (m *memorySessionManager) UpdateSession(session *Session) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	if _, ok := m.byID[session.ID]; !ok {
		return fmt.Errorf("session with id '%s' not found", session.ID)
	}
	stored := *session
	m.byState[stored.State] = &stored
	m.byID[stored.ID] = &stored
	slog.Debug("session updated", "id", session.ID)
	return nil
}

func (m *memorySessionManager) GetSessionByState(state string) (*Session, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if session, ok := m.byState[state]; ok && !m.expired(session) {
		s := *session
		return &s, nil
	}
	return nil, fmt.Errorf("session with state '%s' not found", state)
}

func (m *memorySessionManager) GetSessionByID(id string) (*Session, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	if session, ok := m.byID[id]; ok && !m.expired(session) {
		s := *session
		return &s, nil
	}
	return nil, fmt.Errorf("session with id '%s' not found", id)
}

func (m *memorySessionManager) DeleteSessionByID(id string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	session, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("session with id '%s' not found", id)
	}
	m.delete(session)
	slog.Debug("session deleted", "id", id)
	return nil
}

func (m *memorySessionManager) expired(session *Session) bool {
	now := m.now()
	if session.AccessToken == "" {
		return m.pendingTTL > 0 && now.After(session.CreatedAt.Add(m.pendingTTL))
	}
	return !session.AccessTokenExpiresAt.IsZero() && now.After(session.AccessTokenExpiresAt)
}

// sweep must be called with the write lock held.
func (m *memorySessionManager) sweep() {
	for _, session := range m.byID {
		if m.expired(session) {
			m.delete(session)
			slog.Debug("session expired", "id", session.ID)
		}
	}
}

func (m *memorySessionManager) delete(session *Session) {
	delete(m.byID, session.ID)
	if session.State != "" {
		delete(m.byState, session.State)
	}
}
