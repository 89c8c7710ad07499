package repository

import (
	"context"
	"fmt"
)

// schema は PostgreSQL バックエンドで利用するテーブル定義です
// seq 列は一覧取得時に登録順を保つためのものです
const schema = `
CREATE TABLE IF NOT EXISTS books (
	seq              BIGSERIAL,
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	author           TEXT NOT NULL,
	year             INTEGER NOT NULL,
	date_added       TIMESTAMPTZ NOT NULL,
	image_url        TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	genre            TEXT NOT NULL DEFAULT '',
	isbn             TEXT NOT NULL DEFAULT '',
	pages            INTEGER NOT NULL DEFAULT 0,
	publisher        TEXT NOT NULL DEFAULT '',
	language         TEXT NOT NULL DEFAULT '',
	available        BOOLEAN NOT NULL,
	total_copies     INTEGER NOT NULL,
	available_copies INTEGER NOT NULL,
	location         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reservations (
	seq                BIGSERIAL,
	id                 TEXT PRIMARY KEY,
	book_id            TEXT NOT NULL,
	user_email         TEXT NOT NULL,
	user_name          TEXT NOT NULL,
	book_title         TEXT NOT NULL,
	request_date       TIMESTAMPTZ NOT NULL,
	status             TEXT NOT NULL,
	reservation_period INTEGER NOT NULL,
	approved_by        TEXT NOT NULL DEFAULT '',
	approved_date      TIMESTAMPTZ,
	due_date           TIMESTAMPTZ,
	rejected_by        TEXT NOT NULL DEFAULT '',
	rejected_date      TIMESTAMPTZ,
	notes              TEXT NOT NULL DEFAULT '',
	completed_date     TIMESTAMPTZ,
	returned_date      TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS reservations_user_email_idx ON reservations (user_email);
CREATE INDEX IF NOT EXISTS reservations_status_idx ON reservations (status);

CREATE TABLE IF NOT EXISTS notifications (
	id         SERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	message    TEXT NOT NULL,
	is_read    BOOLEAN NOT NULL DEFAULT FALSE,
	type       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema は必要なテーブルが存在しない場合に作成します
func EnsureSchema(ctx context.Context, db *DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
