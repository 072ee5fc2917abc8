// Package migrations applies the database schema. Statements are idempotent
// and run in order on every start.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		avatar TEXT NOT NULL DEFAULT '',
		avatar_color TEXT NOT NULL DEFAULT '#4a4a4a',
		blurb TEXT NOT NULL DEFAULT '',
		theme TEXT NOT NULL DEFAULT 'light',
		featured_howl_id UUID,
		replies_made INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS users_username_lower ON users (LOWER(username))`,

	`CREATE TABLE IF NOT EXISTS howls (
		id UUID PRIMARY KEY,
		author_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS howls_author_created ON howls (author_id, created_at DESC)`,

	// The featured howl back-reference is added after howls exists. Deleting
	// a howl clears any pin pointing at it.
	`DO $$ BEGIN
		ALTER TABLE users
			ADD CONSTRAINT users_featured_howl_fk
			FOREIGN KEY (featured_howl_id) REFERENCES howls(id) ON DELETE SET NULL;
	EXCEPTION WHEN duplicate_object THEN NULL;
	END $$`,

	`CREATE TABLE IF NOT EXISTS replies (
		id UUID PRIMARY KEY,
		howl_id UUID NOT NULL REFERENCES howls(id) ON DELETE CASCADE,
		author_id UUID NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS replies_howl_created ON replies (howl_id, created_at)`,

	`CREATE INDEX IF NOT EXISTS replies_author ON replies (author_id)`,

	`CREATE TABLE IF NOT EXISTS follows (
		follower_id UUID NOT NULL REFERENCES users(id),
		followee_id UUID NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (follower_id, followee_id)
	)`,

	`CREATE INDEX IF NOT EXISTS follows_followee ON follows (followee_id)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		message TEXT NOT NULL,
		read BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS notifications_user_unread
		ON notifications (user_id, created_at DESC) WHERE NOT read`,

	`CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		id UUID NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id),
		username TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS sessions_expires ON sessions (expires_at)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// Count returns the number of schema statements. Exposed for tests.
func Count() int { return len(statements) }
