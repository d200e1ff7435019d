package db

import (
	"context"
	"fmt"
)

// schema is applied in order on start-up; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		email         TEXT NOT NULL DEFAULT '',
		username      VARCHAR(150) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name     TEXT NOT NULL DEFAULT '',
		is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS post_groups (
		id          BIGSERIAL PRIMARY KEY,
		title       VARCHAR(200) NOT NULL,
		slug        VARCHAR(50) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id        BIGSERIAL PRIMARY KEY,
		text      TEXT NOT NULL,
		pub_date  TIMESTAMPTZ NOT NULL DEFAULT now(),
		author_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		group_id  BIGINT REFERENCES post_groups (id) ON DELETE SET NULL,
		image     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS posts_pub_date_idx ON posts (pub_date)`,
	`CREATE INDEX IF NOT EXISTS posts_author_idx ON posts (author_id)`,
	`CREATE INDEX IF NOT EXISTS posts_group_idx ON posts (group_id)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id        BIGSERIAL PRIMARY KEY,
		post_id   BIGINT NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		author_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		text      TEXT NOT NULL,
		created   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_idx ON comments (post_id)`,
	`CREATE TABLE IF NOT EXISTS follows (
		id        BIGSERIAL PRIMARY KEY,
		user_id   UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		author_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		CONSTRAINT unique_author_user_following UNIQUE (user_id, author_id)
	)`,
	`CREATE INDEX IF NOT EXISTS follows_author_idx ON follows (author_id)`,
	`CREATE TABLE IF NOT EXISTS storage_objects (
		id           UUID PRIMARY KEY,
		user_id      UUID REFERENCES users (id) ON DELETE SET NULL,
		key          TEXT NOT NULL UNIQUE,
		url          TEXT NOT NULL,
		content_type TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates the tables the service needs.
func Migrate(ctx context.Context, q Executor) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
