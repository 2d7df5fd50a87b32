package store

import (
	"context"
	"errors"
	"time"

	"redish/server/internal/model"
)

var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
)

// RedeemRequest describes a code exchange. The authorization must match
// Code and ClientID, be unused and expire after Now.
type RedeemRequest struct {
	Code        string
	ClientID    string
	Now         time.Time
	AccessToken string
	ExpiresAt   time.Time
}

type ClientStore interface {
	CreateClient(ctx context.Context, c model.OAuthClient) (model.OAuthClient, error)
	GetClient(ctx context.Context, id string) (*model.OAuthClient, error)
}

type AuthorizationStore interface {
	CreateAuthorization(ctx context.Context, a model.Authorization) (model.Authorization, error)
	GetAuthorizationByCode(ctx context.Context, code string) (*model.Authorization, error)
}

type TokenStore interface {
	// RedeemAuthorization marks the matching authorization used and inserts
	// the token in one transaction. ErrNotFound when nothing matches.
	RedeemAuthorization(ctx context.Context, req RedeemRequest) (model.Token, error)
	// DeleteToken removes a token by its access token value. ErrNotFound when
	// no row was deleted.
	DeleteToken(ctx context.Context, accessToken string) error
}

type FeedStore interface {
	CreateFeed(ctx context.Context, f model.Feed) (model.Feed, error)
	GetFeed(ctx context.Context, id string) (*model.Feed, error)
	GetUserFeed(ctx context.Context, id, userID string) (*model.Feed, error)
	ListFeeds(ctx context.Context, userID string) ([]model.Feed, error)
	TouchFeed(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s model.Session) (model.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*model.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

type Store interface {
	ClientStore
	AuthorizationStore
	TokenStore
	FeedStore
	UserStore
	SessionStore
}
