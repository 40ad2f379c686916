package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	upsertBalance: `
		INSERT INTO balances (owner, item_code, quantity)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE quantity = quantity + VALUES(quantity)`,
	deleteOldest: `
		DELETE FROM history
		ORDER BY occurred_at_seconds ASC, id ASC
		LIMIT ?`,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS balances (
			owner     VARCHAR(64) NOT NULL,
			item_code VARCHAR(64) NOT NULL,
			quantity  BIGINT      NOT NULL,
			PRIMARY KEY (owner, item_code),
			KEY idx_balances_item (item_code),
			CONSTRAINT chk_balances_quantity CHECK (quantity >= 0)
		)`,
		"CREATE TABLE IF NOT EXISTS history (" +
			"id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY, " +
			"owner VARCHAR(64) NOT NULL, " +
			"item_code VARCHAR(64) NOT NULL, " +
			"`change` BIGINT NOT NULL, " +
			"running_total BIGINT NOT NULL, " +
			"reason VARCHAR(255) NOT NULL, " +
			"occurred_at_seconds BIGINT NOT NULL, " +
			"KEY idx_history_occurred (occurred_at_seconds, id), " +
			"KEY idx_history_owner_item (owner, item_code))",
	},
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func NewMySQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db, dialect: mysqlDialect}
}

// OpenMySQL connects, sizes the pool and verifies the connection.
func OpenMySQL(ctx context.Context, dsn string, pool PoolConfig) (*SQLAdapter, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeError("ping mysql", err)
	}

	return NewMySQLAdapter(db), nil
}
