package postgres

import (
	"context"
	"errors"
	"strings"

	"redish/server/internal/model"
	"redish/server/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// credentialProvider names account rows that hold an email/password login.
const credentialProvider = "credential"

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	email := strings.ToLower(strings.TrimSpace(u.Email))

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.User{}, mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var out model.User
	err = tx.QueryRow(ctx, `
		insert into public."user" (id, name, email)
		values ($1, $2, $3)
		returning id, name, email, email_verified, created_at, updated_at
	`, u.ID, u.Name, email).Scan(
		&out.ID,
		&out.Name,
		&out.Email,
		&out.EmailVerified,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return model.User{}, mapPgErr(err)
	}

	_, err = tx.Exec(ctx, `
		insert into public.account (id, account_id, provider_id, user_id, password)
		values ($1, $2, $3, $2, $4)
	`, uuid.NewString(), out.ID, credentialProvider, u.PasswordHash)
	if err != nil {
		return model.User{}, mapPgErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, mapPgErr(err)
	}
	out.PasswordHash = u.PasswordHash
	return out, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, `lower(u.email) = lower($1)`, strings.TrimSpace(email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, `u.id = $1`, id)
}

func (s *Store) getUser(ctx context.Context, where string, arg string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		select u.id, u.name, u.email, u.email_verified, coalesce(a.password, ''), u.created_at, u.updated_at
		from public."user" u
		left join public.account a on a.user_id = u.id and a.provider_id = '`+credentialProvider+`'
		where `+where, arg).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.EmailVerified,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &u, nil
}

func (s *Store) CreateSession(ctx context.Context, sess model.Session) (model.Session, error) {
	var out model.Session
	err := s.pool.QueryRow(ctx, `
		insert into public.session (id, expires_at, token, ip_address, user_agent, user_id)
		values ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6)
		returning id, token, user_id, expires_at, coalesce(ip_address, ''), coalesce(user_agent, ''), created_at, updated_at
	`, uuid.NewString(), sess.ExpiresAt, sess.Token, sess.IPAddress, sess.UserAgent, sess.UserID).Scan(
		&out.ID,
		&out.Token,
		&out.UserID,
		&out.ExpiresAt,
		&out.IPAddress,
		&out.UserAgent,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return model.Session{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetSessionByToken(ctx context.Context, token string) (*model.Session, error) {
	var out model.Session
	err := s.pool.QueryRow(ctx, `
		select id, token, user_id, expires_at, coalesce(ip_address, ''), coalesce(user_agent, ''), created_at, updated_at
		from public.session
		where token = $1
	`, token).Scan(
		&out.ID,
		&out.Token,
		&out.UserID,
		&out.ExpiresAt,
		&out.IPAddress,
		&out.UserAgent,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &out, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, `delete from public.session where token = $1`, token)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
