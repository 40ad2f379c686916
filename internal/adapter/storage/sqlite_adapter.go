package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	upsertBalance: `
		INSERT INTO balances (owner, item_code, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT (owner, item_code)
		DO UPDATE SET quantity = balances.quantity + excluded.quantity`,
	// DELETE ... LIMIT needs a compile-time option in SQLite.
	deleteOldest: `
		DELETE FROM history WHERE id IN (
			SELECT id FROM history
			ORDER BY occurred_at_seconds ASC, id ASC
			LIMIT ?)`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS balances (
			owner     TEXT    NOT NULL,
			item_code TEXT    NOT NULL,
			quantity  INTEGER NOT NULL CHECK (quantity >= 0),
			PRIMARY KEY (owner, item_code)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_balances_item ON balances (item_code)`,
		"CREATE TABLE IF NOT EXISTS history (" +
			"id INTEGER PRIMARY KEY AUTOINCREMENT, " +
			"owner TEXT NOT NULL, " +
			"item_code TEXT NOT NULL, " +
			"`change` INTEGER NOT NULL, " +
			"running_total INTEGER NOT NULL, " +
			"reason TEXT NOT NULL, " +
			"occurred_at_seconds INTEGER NOT NULL)",
		`CREATE INDEX IF NOT EXISTS idx_history_occurred ON history (occurred_at_seconds, id)`,
		`CREATE INDEX IF NOT EXISTS idx_history_owner_item ON history (owner, item_code)`,
	},
}

func NewSQLiteAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: sqliteDialect}
}

// OpenSQLite opens the database file at path. SQLite allows a single writer,
// so the pool is pinned to one connection.
func OpenSQLite(ctx context.Context, path string) (*SQLAdapter, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeError("ping sqlite", err)
	}

	return NewSQLiteAdapter(db), nil
}
