package migrations

// The user aggregate: the users row plus its favorites set. There is no
// foreign key from user_favorites.card_id to cards; references across
// aggregates are repaired by the application.

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUsers, downCreateUsers)
}

func upCreateUsers(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx, createUsersStmts())
}

func downCreateUsers(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx, []string{
		`DROP TABLE IF EXISTS user_favorites`,
		`DROP TABLE IF EXISTS users`,
	})
}

func createUsersStmts() []string {
	switch dialect {
	case "postgres":
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    is_publisher  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL
)`,
			`CREATE UNIQUE INDEX idx_users_email ON users (email)`,
			`CREATE TABLE IF NOT EXISTS user_favorites (
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    PRIMARY KEY (user_id, card_id)
)`,
			`CREATE INDEX idx_user_favorites_card_id ON user_favorites (card_id)`,
		}

	case "mysql":
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
    id            VARCHAR(36) PRIMARY KEY,
    name          VARCHAR(255) NOT NULL,
    email         VARCHAR(255) NOT NULL,
    password_hash VARCHAR(1024) NOT NULL,
    is_publisher  BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    DATETIME(6) NOT NULL
)`,
			`CREATE UNIQUE INDEX idx_users_email ON users (email)`,
			`CREATE TABLE IF NOT EXISTS user_favorites (
    user_id VARCHAR(36) NOT NULL,
    card_id VARCHAR(36) NOT NULL,
    PRIMARY KEY (user_id, card_id)
)`,
			`CREATE INDEX idx_user_favorites_card_id ON user_favorites (card_id)`,
		}

	default: // sqlite3
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    is_publisher  BOOLEAN NOT NULL DEFAULT 0,
    created_at    TIMESTAMP NOT NULL
)`,
			`CREATE UNIQUE INDEX idx_users_email ON users (email)`,
			`CREATE TABLE IF NOT EXISTS user_favorites (
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    PRIMARY KEY (user_id, card_id)
)`,
			`CREATE INDEX idx_user_favorites_card_id ON user_favorites (card_id)`,
		}
	}
}
