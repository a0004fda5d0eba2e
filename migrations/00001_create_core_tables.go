package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateCoreTables, downCreateCoreTables)
}

func upCreateCoreTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		external_uid TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		display_name TEXT,
		photo_url TEXT,
		role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'mentor', 'admin')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS sessions (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		mentor_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT,
		scheduled_at TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL DEFAULT 60 CHECK (duration_minutes > 0),
		status TEXT NOT NULL DEFAULT 'scheduled',
		meeting_link TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS notifications (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		notification_type TEXT NOT NULL DEFAULT 'plain',
		data TEXT,
		is_read BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS device_tokens (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token TEXT NOT NULL UNIQUE,
		device_type TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, scheduled_at DESC);
		CREATE INDEX IF NOT EXISTS idx_sessions_mentor ON sessions(mentor_id, scheduled_at DESC);
		CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id, created_at DESC) WHERE NOT is_read;
		CREATE INDEX IF NOT EXISTS idx_device_tokens_user ON device_tokens(user_id);
	`)
	return err
}

func downCreateCoreTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DROP TABLE IF EXISTS device_tokens;
		DROP TABLE IF EXISTS notifications;
		DROP TABLE IF EXISTS sessions;
		DROP TABLE IF EXISTS users;
	`)
	return err
}
