package migrations

// The card aggregate: the cards row plus its likedBy set. biz_number carries
// the only uniqueness constraint the business-number allocator relies on.

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateCards, downCreateCards)
}

func upCreateCards(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx, createCardsStmts())
}

func downCreateCards(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx, []string{
		`DROP TABLE IF EXISTS card_likes`,
		`DROP TABLE IF EXISTS cards`,
	})
}

func createCardsStmts() []string {
	switch dialect {
	case "postgres":
		return []string{
			`CREATE TABLE IF NOT EXISTS cards (
    id              TEXT PRIMARY KEY,
    biz_number      TEXT NOT NULL,
    owner_id        TEXT NOT NULL,
    biz_name        TEXT NOT NULL,
    biz_description TEXT NOT NULL,
    biz_address     TEXT NOT NULL,
    biz_phone       TEXT NOT NULL,
    biz_image       TEXT NOT NULL,
    like_amount     INTEGER NOT NULL DEFAULT 0 CHECK (like_amount >= 0),
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
)`,
			`CREATE UNIQUE INDEX idx_cards_biz_number ON cards (biz_number)`,
			`CREATE INDEX idx_cards_owner_id ON cards (owner_id)`,
			`CREATE TABLE IF NOT EXISTS card_likes (
    card_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (card_id, user_id)
)`,
			`CREATE INDEX idx_card_likes_user_id ON card_likes (user_id)`,
		}

	case "mysql":
		return []string{
			`CREATE TABLE IF NOT EXISTS cards (
    id              VARCHAR(36) PRIMARY KEY,
    biz_number      VARCHAR(16) NOT NULL,
    owner_id        VARCHAR(36) NOT NULL,
    biz_name        VARCHAR(255) NOT NULL,
    biz_description TEXT NOT NULL,
    biz_address     VARCHAR(400) NOT NULL,
    biz_phone       VARCHAR(16) NOT NULL,
    biz_image       VARCHAR(1024) NOT NULL,
    like_amount     INT NOT NULL DEFAULT 0,
    created_at      DATETIME(6) NOT NULL,
    updated_at      DATETIME(6) NOT NULL
)`,
			`CREATE UNIQUE INDEX idx_cards_biz_number ON cards (biz_number)`,
			`CREATE INDEX idx_cards_owner_id ON cards (owner_id)`,
			`CREATE TABLE IF NOT EXISTS card_likes (
    card_id VARCHAR(36) NOT NULL,
    user_id VARCHAR(36) NOT NULL,
    PRIMARY KEY (card_id, user_id)
)`,
			`CREATE INDEX idx_card_likes_user_id ON card_likes (user_id)`,
		}

	default: // sqlite3
		return []string{
			`CREATE TABLE IF NOT EXISTS cards (
    id              TEXT PRIMARY KEY,
    biz_number      TEXT NOT NULL,
    owner_id        TEXT NOT NULL,
    biz_name        TEXT NOT NULL,
    biz_description TEXT NOT NULL,
    biz_address     TEXT NOT NULL,
    biz_phone       TEXT NOT NULL,
    biz_image       TEXT NOT NULL,
    like_amount     INTEGER NOT NULL DEFAULT 0 CHECK (like_amount >= 0),
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL
)`,
			`CREATE UNIQUE INDEX idx_cards_biz_number ON cards (biz_number)`,
			`CREATE INDEX idx_cards_owner_id ON cards (owner_id)`,
			`CREATE TABLE IF NOT EXISTS card_likes (
    card_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    PRIMARY KEY (card_id, user_id)
)`,
			`CREATE INDEX idx_card_likes_user_id ON card_likes (user_id)`,
		}
	}
}
