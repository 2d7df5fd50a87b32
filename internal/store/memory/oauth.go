package memory

import (
	"context"
	"time"

	"redish/server/internal/model"
	"redish/server/internal/store"
)

func (s *Store) CreateClient(_ context.Context, c model.OAuthClient) (model.OAuthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	if _, ok := s.clients[c.ID]; ok {
		return model.OAuthClient{}, store.ErrConflict
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClient(_ context.Context, id string) (*model.OAuthClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateAuthorization(_ context.Context, a model.Authorization) (model.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.authorizations[a.Code]; ok {
		return model.Authorization{}, store.ErrConflict
	}
	if _, ok := s.clients[a.ClientID]; !ok {
		return model.Authorization{}, store.ErrNotFound
	}

	a.ID = newID()
	a.Used = false
	a.CreatedAt = time.Now().UTC()
	s.authorizations[a.Code] = a
	return a, nil
}

func (s *Store) GetAuthorizationByCode(_ context.Context, code string) (*model.Authorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorizations[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) RedeemAuthorization(_ context.Context, req store.RedeemRequest) (model.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.authorizations[req.Code]
	if !ok || a.ClientID != req.ClientID || a.Used || !a.ExpiresAt.After(req.Now) {
		return model.Token{}, store.ErrNotFound
	}
	if _, ok := s.tokens[req.AccessToken]; ok {
		return model.Token{}, store.ErrConflict
	}

	now := time.Now().UTC()
	t := model.Token{
		ID:          newID(),
		AccessToken: req.AccessToken,
		ClientID:    a.ClientID,
		UserID:      a.UserID,
		ExpiresAt:   req.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.tokens[t.AccessToken] = t

	a.Used = true
	s.authorizations[a.Code] = a
	return t, nil
}

func (s *Store) DeleteToken(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[accessToken]; !ok {
		return store.ErrNotFound
	}
	delete(s.tokens, accessToken)
	return nil
}
