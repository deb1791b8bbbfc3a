package state

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	contractx "github.com/tanpawarit/parcel-scout/agent/contract"
)

var (
	ErrNilSession     = errors.New("session is nil")
	ErrInvalidSession = errors.New("session id is empty")
)

// Store keeps conversation logs by session id. Messages are only ever appended.
type Store interface {
	// Load returns contract.ErrSessionNotFound for unknown ids.
	Load(ctx context.Context, sessionID string) (*Session, error)
	// Create returns the existing session when the id is already taken.
	Create(ctx context.Context, sessionID string, now time.Time) (*Session, error)
	Append(ctx context.Context, sessionID string, msgs ...contractx.Message) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*Session{}}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrInvalidSession
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, contractx.ErrSessionNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, sessionID string, now time.Time) (*Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s.clone(), nil
	}
	s := NewSession(id, now)
	m.sessions[id] = s
	return s.clone(), nil
}

func (m *MemoryStore) Append(ctx context.Context, sessionID string, msgs ...contractx.Message) error {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return contractx.ErrSessionNotFound
	}
	s.Messages = append(s.Messages, msgs...)
	return nil
}
