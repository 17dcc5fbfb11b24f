package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manualqa/manual-assistant/internal/core/domain"
)

// Store keeps sessions in process memory behind an explicit abstraction:
// callers create, read and delete sessions by opaque id, nothing reaches
// into a shared map directly. Suitable for a single-instance deployment;
// the Postgres store covers everything else.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
	}
}

func (s *Store) Create(_ context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return cloneSession(session), nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("session %q", id))
	}
	return cloneSession(session), nil
}

func (s *Store) SaveContext(_ context.Context, id, contextText string, bundle domain.ContextBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "save session context", fmt.Errorf("session %q", id))
	}
	session.CurrentContext = contextText
	session.LastBundle = bundle
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) AppendTurn(_ context.Context, id string, turn domain.SessionTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "append session turn", fmt.Errorf("session %q", id))
	}
	session.Turns = append(session.Turns, turn)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete session", fmt.Errorf("session %q", id))
	}
	delete(s.sessions, id)
	return nil
}

// cloneSession hands callers their own copy so concurrent readers never
// observe in-place mutation.
func cloneSession(in *domain.Session) *domain.Session {
	out := *in
	out.Turns = append([]domain.SessionTurn(nil), in.Turns...)
	out.LastBundle.TextContexts = append([]domain.TextContext(nil), in.LastBundle.TextContexts...)
	out.LastBundle.ImageContexts = append([]domain.ImageContext(nil), in.LastBundle.ImageContexts...)
	return &out
}
