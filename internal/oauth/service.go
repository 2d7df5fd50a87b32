// Package oauth implements the authorization-code grant: client lookup,
// consent-backed code issuance, code-for-token exchange and revocation.
package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"redish/server/internal/apperr"
	"redish/server/internal/model"
	"redish/server/internal/store"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// CodeTTL is how long an authorization code stays redeemable.
	CodeTTL = 10 * time.Minute
	// TokenTTL is effectively forever; tokens end by revocation.
	TokenTTL = 100 * 365 * 24 * time.Hour
)

// Client is the public view of a registered client.
type Client struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Redirect string `json:"redirect,omitempty"`
}

// Grant is the result of a successful consent.
type Grant struct {
	Code      string    `json:"code"`
	State     string    `json:"state,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// AccessToken is the result of a successful code exchange.
type AccessToken struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Service struct {
	clients    store.ClientStore
	auths      store.AuthorizationStore
	tokens     store.TokenStore
	consentURL string
	now        func() time.Time
	log        logrus.FieldLogger
}

type Option func(*Service)

// WithClock replaces time.Now, for tests that need to move past CodeTTL.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService builds the engine. webOrigin is the base URL of the consent
// surface that StartAuthorization redirects to.
func NewService(clients store.ClientStore, auths store.AuthorizationStore, tokens store.TokenStore, webOrigin string, log logrus.FieldLogger, opts ...Option) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Service{
		clients:    clients,
		auths:      auths,
		tokens:     tokens,
		consentURL: strings.TrimRight(webOrigin, "/") + "/consent",
		now:        time.Now,
		log:        log.WithField("component", "oauth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generateRandomToken returns 32 random bytes, base64url encoded (43 chars).
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}

// RegisterClient creates a client with a fresh secret. The returned value is
// the only place the secret is shown.
func (s *Service) RegisterClient(ctx context.Context, name, redirect string) (model.OAuthClient, error) {
	if strings.TrimSpace(name) == "" {
		return model.OAuthClient{}, apperr.Validation("name is required")
	}
	if redirect != "" {
		u, err := url.Parse(redirect)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return model.OAuthClient{}, apperr.Validation("redirect must be an absolute URL")
		}
	}

	c, err := s.clients.CreateClient(ctx, model.OAuthClient{
		Name:     name,
		Secret:   generateRandomToken(),
		Redirect: redirect,
	})
	if err != nil {
		return model.OAuthClient{}, fmt.Errorf("create client: %w", err)
	}
	s.log.WithField("client_id", c.ID).Info("client registered")
	return c, nil
}

func (s *Service) GetClient(ctx context.Context, clientID string) (Client, error) {
	c, err := s.lookupClient(ctx, clientID)
	if err != nil {
		return Client{}, err
	}
	return Client{ID: c.ID, Name: c.Name, Redirect: c.Redirect}, nil
}

// AuthenticateClient checks a client's secret in constant time.
func (s *Service) AuthenticateClient(ctx context.Context, clientID, secret string) error {
	c, err := s.lookupClient(ctx, clientID)
	if err != nil {
		if apperr.Is(err, apperr.KindAccessDenied) {
			return apperr.AccessDenied("invalid client credentials")
		}
		return err
	}
	if subtle.ConstantTimeCompare([]byte(c.Secret), []byte(secret)) != 1 {
		return apperr.AccessDenied("invalid client credentials")
	}
	return nil
}

func (s *Service) lookupClient(ctx context.Context, clientID string) (*model.OAuthClient, error) {
	if !model.IsUUID(clientID) {
		return nil, apperr.Validation("invalid client id")
	}
	c, err := s.clients.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.AccessDenied("")
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

// StartAuthorization resolves the client and returns the consent page URL
// the user agent should be sent to.
func (s *Service) StartAuthorization(ctx context.Context, clientID, state string) (*url.URL, error) {
	c, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(s.consentURL)
	if err != nil {
		return nil, fmt.Errorf("parse consent url: %w", err)
	}
	q := u.Query()
	q.Set("clientId", c.ID)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

// CreateAuthorization issues a code for userID. consent comes straight from
// the decoded request body; anything but the boolean true is a denial and
// writes nothing.
func (s *Service) CreateAuthorization(ctx context.Context, userID, clientID string, consent any, state string) (Grant, error) {
	if granted, ok := consent.(bool); !ok || !granted {
		return Grant{}, apperr.AccessDenied("")
	}
	if !model.IsUUID(clientID) {
		return Grant{}, apperr.Validation("invalid client id")
	}

	a, err := s.auths.CreateAuthorization(ctx, model.Authorization{
		Code:      generateRandomToken(),
		State:     state,
		ClientID:  clientID,
		UserID:    userID,
		ExpiresAt: s.now().Add(CodeTTL).UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Grant{}, apperr.AccessDenied("")
		}
		return Grant{}, fmt.Errorf("create authorization: %w", err)
	}

	s.log.WithFields(logrus.Fields{"client_id": clientID, "user_id": userID}).Info("authorization code issued")
	return Grant{Code: a.Code, State: a.State, ExpiresAt: a.ExpiresAt}, nil
}

// CreateToken exchanges a code for an access token. The secret is checked
// when given; the code must belong to clientID, be unused and unexpired.
// Every code mismatch is reported with the same error.
func (s *Service) CreateToken(ctx context.Context, code, clientID, clientSecret string) (AccessToken, error) {
	if clientSecret != "" {
		if err := s.AuthenticateClient(ctx, clientID, clientSecret); err != nil {
			return AccessToken{}, err
		}
	} else if !model.IsUUID(clientID) {
		return AccessToken{}, apperr.Validation("invalid client id")
	}

	now := s.now()
	t, err := s.tokens.RedeemAuthorization(ctx, store.RedeemRequest{
		Code:        code,
		ClientID:    clientID,
		Now:         now,
		AccessToken: generateRandomToken(),
		ExpiresAt:   now.Add(TokenTTL).UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return AccessToken{}, apperr.AccessDenied("invalid authorization code")
		}
		return AccessToken{}, fmt.Errorf("redeem authorization: %w", err)
	}

	s.log.WithFields(logrus.Fields{"client_id": clientID, "user_id": t.UserID}).Info("access token issued")
	return AccessToken{AccessToken: t.AccessToken, ExpiresAt: t.ExpiresAt}, nil
}

// RevokeToken deletes an access token. Revoking an unknown or already
// revoked token is access-denied.
func (s *Service) RevokeToken(ctx context.Context, accessToken string) error {
	if err := s.tokens.DeleteToken(ctx, accessToken); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.AccessDenied("")
		}
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
