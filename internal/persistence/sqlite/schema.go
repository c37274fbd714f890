package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	username       TEXT NOT NULL UNIQUE,
	password       TEXT NOT NULL DEFAULT '',
	role           TEXT NOT NULL CHECK (role IN ('admin', 'faculty', 'student')),
	first_name     TEXT,
	last_name      TEXT,
	preferred_name TEXT,
	email          TEXT,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS media (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	title         TEXT NOT NULL,
	description   TEXT,
	file_path     TEXT NOT NULL,
	file_type     TEXT NOT NULL CHECK (file_type IN ('image', 'video')),
	duration      REAL,
	display_order INTEGER,
	user_id       INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status        TEXT NOT NULL DEFAULT 'pending'
	              CHECK (status IN ('pending', 'approved', 'rejected', 'archived')),
	created_at    TEXT NOT NULL,
	approved_at   TEXT,
	approved_by   INTEGER,
	archived_at   TEXT,
	archived_by   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_media_status ON media(status);
CREATE INDEX IF NOT EXISTS idx_media_approved_at ON media(approved_at);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
INSERT OR IGNORE INTO settings (key, value) VALUES
	('auto_approve', 'false'),
	('default_image_duration', '10');
`

// migrate brings the database to schemaVersion, tracked in PRAGMA user_version.
func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}
