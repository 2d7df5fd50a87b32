package postgres

import (
	"context"
	"errors"

	"redish/server/internal/model"
	"redish/server/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) CreateClient(ctx context.Context, c model.OAuthClient) (model.OAuthClient, error) {
	var out model.OAuthClient
	err := s.pool.QueryRow(ctx, `
		insert into public.oauth_clients (id, name, secret, redirect)
		values (coalesce(nullif($1, '')::uuid, gen_random_uuid()), $2, $3, nullif($4, ''))
		returning id::text, name, secret, coalesce(redirect, ''), created_at, updated_at
	`, c.ID, c.Name, c.Secret, c.Redirect).Scan(
		&out.ID,
		&out.Name,
		&out.Secret,
		&out.Redirect,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return model.OAuthClient{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetClient(ctx context.Context, id string) (*model.OAuthClient, error) {
	var c model.OAuthClient
	err := s.pool.QueryRow(ctx, `
		select id::text, name, secret, coalesce(redirect, ''), created_at, updated_at
		from public.oauth_clients
		where id = $1::uuid
	`, id).Scan(&c.ID, &c.Name, &c.Secret, &c.Redirect, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &c, nil
}

func (s *Store) CreateAuthorization(ctx context.Context, a model.Authorization) (model.Authorization, error) {
	var out model.Authorization
	err := s.pool.QueryRow(ctx, `
		insert into public.oauth_authorizations (code, state, client_id, user_id, expires_at)
		values ($1, nullif($2, ''), $3::uuid, $4, $5)
		returning id::text, code, coalesce(state, ''), client_id::text, user_id, expires_at, used, created_at
	`, a.Code, a.State, a.ClientID, a.UserID, a.ExpiresAt).Scan(
		&out.ID,
		&out.Code,
		&out.State,
		&out.ClientID,
		&out.UserID,
		&out.ExpiresAt,
		&out.Used,
		&out.CreatedAt,
	)
	if err != nil {
		return model.Authorization{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetAuthorizationByCode(ctx context.Context, code string) (*model.Authorization, error) {
	var a model.Authorization
	err := s.pool.QueryRow(ctx, `
		select id::text, code, coalesce(state, ''), client_id::text, user_id, expires_at, used, created_at
		from public.oauth_authorizations
		where code = $1
	`, code).Scan(&a.ID, &a.Code, &a.State, &a.ClientID, &a.UserID, &a.ExpiresAt, &a.Used, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &a, nil
}

func (s *Store) RedeemAuthorization(ctx context.Context, req store.RedeemRequest) (model.Token, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Token{}, mapPgErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The conditional update takes the row lock; a concurrent redemption
	// re-evaluates used = false after this commits and matches nothing.
	var clientID, userID string
	err = tx.QueryRow(ctx, `
		update public.oauth_authorizations
		set used = true
		where code = $1
		  and client_id = $2::uuid
		  and used = false
		  and expires_at > $3
		returning client_id::text, user_id
	`, req.Code, req.ClientID, req.Now).Scan(&clientID, &userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Token{}, store.ErrNotFound
		}
		return model.Token{}, mapPgErr(err)
	}

	var t model.Token
	err = tx.QueryRow(ctx, `
		insert into public.oauth_tokens (access_token, client_id, user_id, expires_at)
		values ($1, $2::uuid, $3, $4)
		returning id::text, access_token, client_id::text, user_id, expires_at, created_at, updated_at
	`, req.AccessToken, clientID, userID, req.ExpiresAt).Scan(
		&t.ID,
		&t.AccessToken,
		&t.ClientID,
		&t.UserID,
		&t.ExpiresAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return model.Token{}, mapPgErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Token{}, mapPgErr(err)
	}
	return t, nil
}

func (s *Store) DeleteToken(ctx context.Context, accessToken string) error {
	tag, err := s.pool.Exec(ctx, `
		delete from public.oauth_tokens
		where access_token = $1
	`, accessToken)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
