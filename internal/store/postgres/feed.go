package postgres

import (
	"context"
	"errors"

	"redish/server/internal/model"
	"redish/server/internal/store"

	"github.com/jackc/pgx/v5"
)

const feedColumns = `id::text, coalesce(title, ''), coalesce(description, ''), coalesce(link, ''), coalesce(user_id, ''), created_at, updated_at`

func scanFeed(row pgx.Row, f *model.Feed) error {
	return row.Scan(&f.ID, &f.Title, &f.Description, &f.Link, &f.UserID, &f.CreatedAt, &f.UpdatedAt)
}

func (s *Store) CreateFeed(ctx context.Context, f model.Feed) (model.Feed, error) {
	var out model.Feed
	err := scanFeed(s.pool.QueryRow(ctx, `
		insert into public.feeds (id, title, description, link, user_id)
		values (coalesce(nullif($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5)
		returning `+feedColumns,
		f.ID, f.Title, f.Description, f.Link, f.UserID), &out)
	if err != nil {
		return model.Feed{}, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) GetFeed(ctx context.Context, id string) (*model.Feed, error) {
	var f model.Feed
	err := scanFeed(s.pool.QueryRow(ctx, `
		select `+feedColumns+`
		from public.feeds
		where id = $1::uuid
	`, id), &f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &f, nil
}

func (s *Store) GetUserFeed(ctx context.Context, id, userID string) (*model.Feed, error) {
	var f model.Feed
	err := scanFeed(s.pool.QueryRow(ctx, `
		select `+feedColumns+`
		from public.feeds
		where id = $1::uuid and user_id = $2
	`, id, userID), &f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, mapPgErr(err)
	}
	return &f, nil
}

func (s *Store) ListFeeds(ctx context.Context, userID string) ([]model.Feed, error) {
	rows, err := s.pool.Query(ctx, `
		select `+feedColumns+`
		from public.feeds
		where user_id = $1
		order by created_at asc
	`, userID)
	if err != nil {
		return nil, mapPgErr(err)
	}
	defer rows.Close()

	out := make([]model.Feed, 0)
	for rows.Next() {
		var f model.Feed
		if err := scanFeed(rows, &f); err != nil {
			return nil, mapPgErr(err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr(err)
	}
	return out, nil
}

func (s *Store) TouchFeed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		update public.feeds
		set updated_at = now()
		where id = $1::uuid
	`, id)
	if err != nil {
		return mapPgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
