package memory

import (
	"context"
	"strings"
	"time"

	"redish/server/internal/model"
	"redish/server/internal/store"
)

func (s *Store) CreateUser(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.TrimSpace(u.Email)
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, email) {
			return model.User{}, store.ErrConflict
		}
	}

	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = strings.ToLower(email)
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateSession(_ context.Context, sess model.Session) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[sess.UserID]; !ok {
		return model.Session{}, store.ErrNotFound
	}
	if _, ok := s.sessions[sess.Token]; ok {
		return model.Session{}, store.ErrConflict
	}

	now := time.Now().UTC()
	sess.ID = newID()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	s.sessions[sess.Token] = sess
	return sess, nil
}

func (s *Store) GetSessionByToken(_ context.Context, token string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return store.ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}
