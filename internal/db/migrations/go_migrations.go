// Package migrations contains dialect-aware Go database migrations. Column types
// differ between SQLite, PostgreSQL and MySQL, so the schema is expressed in Go
// rather than as a single cross-database SQL file.
package migrations

import (
	"context"
	"database/sql"
)

// dialect is set by the parent db package before migrations are applied.
var dialect string

// SetDialect configures the SQL dialect for Go migrations.
// Must be called before goose.Up. Valid values: "sqlite3", "postgres", "mysql".
func SetDialect(d string) {
	dialect = d
}

// exec runs each statement in order inside the migration transaction.
func exec(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
