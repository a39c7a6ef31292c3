package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaSQL holds the tables owned by the push subsystem. users, messages and
// user_messages belong to the message store and are only created here so a
// standalone deployment has something to read from.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL DEFAULT '',
	avatar_url TEXT NOT NULL DEFAULT '',
	is_bot BOOLEAN NOT NULL DEFAULT FALSE,
	enable_offline_email_notifications BOOLEAN NOT NULL DEFAULT TRUE,
	enable_offline_push_notifications BOOLEAN NOT NULL DEFAULT TRUE,
	enable_online_push_notifications BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS messages (
	id BIGSERIAL PRIMARY KEY,
	sender_id BIGINT NOT NULL REFERENCES users(id),
	recipient_type SMALLINT NOT NULL,
	display_recipient TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	rendered_content TEXT NOT NULL DEFAULT '',
	pub_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_messages (
	user_id BIGINT NOT NULL REFERENCES users(id),
	message_id BIGINT NOT NULL REFERENCES messages(id),
	is_read BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (user_id, message_id)
);

CREATE TABLE IF NOT EXISTS push_device_tokens (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	kind SMALLINT NOT NULL,
	token TEXT NOT NULL,
	ios_app_id TEXT,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (token, kind)
);

CREATE INDEX IF NOT EXISTS idx_push_device_tokens_user ON push_device_tokens (user_id, kind);

CREATE TABLE IF NOT EXISTS remote_zulip_servers (
	id BIGSERIAL PRIMARY KEY,
	uuid TEXT NOT NULL UNIQUE,
	api_key_hash TEXT NOT NULL,
	hostname TEXT NOT NULL DEFAULT '',
	contact_email TEXT NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS remote_push_device_tokens (
	id BIGSERIAL PRIMARY KEY,
	server_id BIGINT NOT NULL REFERENCES remote_zulip_servers(id) ON DELETE CASCADE,
	user_id BIGINT NOT NULL,
	kind SMALLINT NOT NULL,
	token TEXT NOT NULL,
	ios_app_id TEXT,
	last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (server_id, user_id, kind, token)
);
`

// RunMigrations creates tables if they don't exist.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
