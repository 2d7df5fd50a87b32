// Package feeds owns feed documents: creating them, appending links as
// items and serving their XML. Feed rows decide existence and ownership;
// blobs hold the content.
package feeds

import (
	"context"
	"errors"
	"fmt"

	"redish/server/internal/apperr"
	"redish/server/internal/blob"
	"redish/server/internal/model"
	"redish/server/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TitleResolver looks up a display title for a link. Implementations must
// fall back to the link itself instead of failing.
type TitleResolver interface {
	Title(ctx context.Context, link string) string
}

type Service struct {
	feeds  store.FeedStore
	blobs  blob.Store
	locks  *keyedMutex
	titles TitleResolver
	log    logrus.FieldLogger
}

type Option func(*Service)

// WithTitleResolver makes AddItem use fetched page titles for new items.
func WithTitleResolver(r TitleResolver) Option {
	return func(s *Service) {
		s.titles = r
	}
}

func NewService(feeds store.FeedStore, blobs blob.Store, log logrus.FieldLogger, opts ...Option) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		feeds: feeds,
		blobs: blobs,
		locks: newKeyedMutex(),
		log:   log.WithField("component", "feeds"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func documentPath(userID, feedID string) string {
	return userID + "/" + feedID + ".xml"
}

// CreateFeed writes the default document first and then inserts the row, so
// a committed row always has a document. A failed insert removes the blob.
func (s *Service) CreateFeed(ctx context.Context, userID string) (string, error) {
	feedID := uuid.NewString()
	path := documentPath(userID, feedID)

	doc, err := newDocument(DefaultTitle, DefaultDescription, DefaultLink)
	if err != nil {
		return "", err
	}
	if err := s.blobs.Write(ctx, path, doc); err != nil {
		return "", fmt.Errorf("write feed document: %w", err)
	}

	_, err = s.feeds.CreateFeed(ctx, model.Feed{
		ID:          feedID,
		Title:       DefaultTitle,
		Description: DefaultDescription,
		Link:        DefaultLink,
		UserID:      userID,
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			s.log.WithError(delErr).WithField("path", path).Error("failed to remove orphaned feed document")
		}
		return "", fmt.Errorf("insert feed: %w", err)
	}

	s.log.WithFields(logrus.Fields{"feed_id": feedID, "user_id": userID}).Info("feed created")
	return feedID, nil
}

func (s *Service) ListFeeds(ctx context.Context, userID string) ([]model.Feed, error) {
	feeds, err := s.feeds.ListFeeds(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	return feeds, nil
}

// GetFeed returns the owner's feed document. A feed owned by someone else is
// reported exactly like a feed that does not exist.
func (s *Service) GetFeed(ctx context.Context, userID, feedID string) ([]byte, error) {
	f, err := s.ownedFeed(ctx, userID, feedID)
	if err != nil {
		return nil, err
	}
	return s.readDocument(ctx, f)
}

// GetPublicFeed returns any feed document by id, for RSS readers.
func (s *Service) GetPublicFeed(ctx context.Context, feedID string) ([]byte, error) {
	if !model.IsUUID(feedID) {
		return nil, apperr.Validation("invalid feed ID")
	}

	f, err := s.feeds.GetFeed(ctx, feedID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("Feed not found")
		}
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return s.readDocument(ctx, f)
}

// AddItem appends link as a new item. Appends to the same feed are
// serialized so concurrent requests cannot drop each other's items.
func (s *Service) AddItem(ctx context.Context, userID, feedID, link string) error {
	f, err := s.ownedFeed(ctx, userID, feedID)
	if err != nil {
		return err
	}
	if link == "" {
		return apperr.Validation("link is required")
	}

	title := link
	if s.titles != nil {
		title = s.titles.Title(ctx, link)
	}

	unlock := s.locks.Lock(f.ID)
	defer unlock()

	src, err := s.readDocument(ctx, f)
	if err != nil {
		return err
	}
	out, err := appendItem(src, title, link)
	if err != nil {
		return err
	}
	if err := s.blobs.Write(ctx, documentPath(f.UserID, f.ID), out); err != nil {
		return fmt.Errorf("write feed document: %w", err)
	}

	if err := s.feeds.TouchFeed(ctx, f.ID); err != nil {
		s.log.WithError(err).WithField("feed_id", f.ID).Warn("failed to bump feed updated_at")
	}
	return nil
}

func (s *Service) ownedFeed(ctx context.Context, userID, feedID string) (*model.Feed, error) {
	if !model.IsUUID(feedID) {
		return nil, apperr.Validation("invalid feed ID")
	}

	f, err := s.feeds.GetUserFeed(ctx, feedID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.AccessDenied("")
		}
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return f, nil
}

func (s *Service) readDocument(ctx context.Context, f *model.Feed) ([]byte, error) {
	path := documentPath(f.UserID, f.ID)
	b, err := s.blobs.Read(ctx, path)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			s.log.WithField("path", path).Error("feed row has no document")
			return nil, apperr.NotFound("File not found")
		}
		return nil, fmt.Errorf("read feed document: %w", err)
	}
	return b, nil
}
