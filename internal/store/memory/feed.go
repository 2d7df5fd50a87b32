package memory

import (
	"context"
	"sort"
	"time"

	"redish/server/internal/model"
	"redish/server/internal/store"
)

func (s *Store) CreateFeed(_ context.Context, f model.Feed) (model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = newID()
	}
	if _, ok := s.feeds[f.ID]; ok {
		return model.Feed{}, store.ErrConflict
	}

	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.feeds[f.ID] = f
	return f, nil
}

func (s *Store) GetFeed(_ context.Context, id string) (*model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *Store) GetUserFeed(_ context.Context, id, userID string) (*model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok || f.UserID != userID {
		return nil, store.ErrNotFound
	}
	return &f, nil
}

func (s *Store) ListFeeds(_ context.Context, userID string) ([]model.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Feed, 0)
	for _, f := range s.feeds {
		if f.UserID == userID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) TouchFeed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.feeds[id]
	if !ok {
		return store.ErrNotFound
	}
	f.UpdatedAt = time.Now().UTC()
	s.feeds[id] = f
	return nil
}
