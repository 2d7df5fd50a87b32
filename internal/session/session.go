// Package session is the email and password authentication provider. A
// signed-in user holds an HS256 token whose sid claim names a session row;
// deleting the row signs the user out everywhere the token was used.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"redish/server/internal/apperr"
	"redish/server/internal/model"
	"redish/server/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	minPasswordLen = 8
	maxPasswordLen = 72
)

func invalidCredentials() error {
	return apperr.Unauthenticated("invalid email or password")
}

// ClientInfo describes where a sign-in came from.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type SignUpInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identity is a resolved, live session and its user.
type Identity struct {
	Token   string        `json:"token,omitempty"`
	User    model.User    `json:"user"`
	Session model.Session `json:"session"`
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type Manager struct {
	users    store.UserStore
	sessions store.SessionStore
	key      []byte
	ttl      time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewManager signs tokens with secret, or with a random per-process key when
// secret is empty. A non-positive ttl means DefaultTTL.
func NewManager(users store.UserStore, sessions store.SessionStore, secret string, ttl time.Duration, log logrus.FieldLogger) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		users:    users,
		sessions: sessions,
		key:      key,
		ttl:      ttl,
		now:      time.Now,
		log:      log.WithField("component", "session"),
	}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", apperr.Validation("invalid email")
	}
	return strings.ToLower(addr.Address), nil
}

func (m *Manager) SignUp(ctx context.Context, in SignUpInput, from ClientInfo) (Identity, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Identity{}, apperr.Validation("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Identity{}, err
	}
	if len(in.Password) < minPasswordLen {
		return Identity{}, apperr.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(in.Password) > maxPasswordLen {
		return Identity{}, apperr.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordLen))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := m.users.CreateUser(ctx, model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Identity{}, apperr.Conflict("user already exists")
		}
		return Identity{}, fmt.Errorf("create user: %w", err)
	}

	m.log.WithField("user_id", u.ID).Info("user signed up")
	return m.start(ctx, u, from)
}

func (m *Manager) SignIn(ctx context.Context, email, password string, from ClientInfo) (Identity, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	if password == "" {
		return Identity{}, apperr.Validation("password is required")
	}

	u, err := m.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, invalidCredentials()
		}
		return Identity{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Identity{}, invalidCredentials()
	}

	return m.start(ctx, *u, from)
}

func (m *Manager) start(ctx context.Context, u model.User, from ClientInfo) (Identity, error) {
	now := m.now()
	sess, err := m.sessions.CreateSession(ctx, model.Session{
		Token:     oauth2.GenerateVerifier(),
		UserID:    u.ID,
		ExpiresAt: now.Add(m.ttl).UTC(),
		IPAddress: from.IPAddress,
		UserAgent: from.UserAgent,
	})
	if err != nil {
		return Identity{}, fmt.Errorf("create session: %w", err)
	}

	token, err := m.sign(u.ID, sess.Token, now, sess.ExpiresAt)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Token: token, User: u, Session: sess}, nil
}

func (m *Manager) sign(userID, sid string, issued, expires time.Time) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	s, err := t.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return s, nil
}

func (m *Manager) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || c.SessionID == "" || c.Subject == "" {
		return nil, apperr.Unauthenticated("")
	}
	return &c, nil
}

// Resolve turns a token into a live session. Any problem with the token or
// its session row is reported as unauthenticated.
func (m *Manager) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.Unauthenticated("")
	}
	c, err := m.parse(token)
	if err != nil {
		return Identity{}, err
	}

	sess, err := m.sessions.GetSessionByToken(ctx, c.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, apperr.Unauthenticated("")
		}
		return Identity{}, fmt.Errorf("get session: %w", err)
	}
	if sess.UserID != c.Subject || !sess.ExpiresAt.After(m.now()) {
		return Identity{}, apperr.Unauthenticated("")
	}

	u, err := m.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Identity{}, apperr.Unauthenticated("")
		}
		return Identity{}, fmt.Errorf("get user: %w", err)
	}
	return Identity{User: *u, Session: *sess}, nil
}

// SignOut deletes the session behind token.
func (m *Manager) SignOut(ctx context.Context, token string) error {
	id, err := m.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if err := m.sessions.DeleteSession(ctx, id.Session.Token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.Unauthenticated("")
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
