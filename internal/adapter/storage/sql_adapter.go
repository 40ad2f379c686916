package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/item-ledger/internal/core/domain"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// dialect holds the statements that differ between database engines.
type dialect struct {
	name          string
	upsertBalance string
	deleteOldest  string
	schema        []string
}

// SQLAdapter implements the balance and history repositories on top of
// database/sql. Dialect-specific statements come from the constructor.
type SQLAdapter struct {
	db      *sql.DB
	dialect dialect
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func (a *SQLAdapter) DB() *sql.DB {
	return a.db
}

func (a *SQLAdapter) Dialect() string {
	return a.dialect.name
}

// Migrate creates the balances and history tables if they are missing.
func (a *SQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range a.dialect.schema {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return storeError("migrate", err)
		}
	}
	return nil
}

func (a *SQLAdapter) GetBalance(ctx context.Context, owner, itemCode string) (*domain.Balance, error) {
	b := domain.Balance{Owner: owner, ItemCode: itemCode}
	err := a.db.QueryRowContext(ctx, `
		SELECT quantity FROM balances WHERE owner = ? AND item_code = ?`,
		owner, itemCode,
	).Scan(&b.Quantity)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("query balance", err)
	}

	return &b, nil
}

func (a *SQLAdapter) Increment(ctx context.Context, owner, itemCode string, quantity int64) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("begin tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, a.dialect.upsertBalance, owner, itemCode, quantity); err != nil {
		return 0, storeError("upsert balance", err)
	}

	var current int64
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM balances WHERE owner = ? AND item_code = ?`,
		owner, itemCode,
	).Scan(&current)
	if err != nil {
		return 0, storeError("read balance", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError("commit", err)
	}
	return current, nil
}

func (a *SQLAdapter) Decrement(ctx context.Context, owner, itemCode string, quantity int64) (int64, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeError("begin tx", err)
	}
	defer tx.Rollback()

	// The floor check lives in the WHERE clause so two concurrent decrements
	// cannot both pass it.
	result, err := tx.ExecContext(ctx, `
		UPDATE balances
		SET quantity = quantity - ?
		WHERE owner = ? AND item_code = ? AND quantity >= ?`,
		quantity, owner, itemCode, quantity,
	)
	if err != nil {
		return 0, storeError("update balance", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("update balance", err)
	}
	if rows == 0 {
		return 0, domain.ErrInsufficientQuantity
	}

	var remaining int64
	err = tx.QueryRowContext(ctx, `
		SELECT quantity FROM balances WHERE owner = ? AND item_code = ?`,
		owner, itemCode,
	).Scan(&remaining)
	if err != nil {
		return 0, storeError("read balance", err)
	}

	if remaining == 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM balances WHERE owner = ? AND item_code = ? AND quantity = 0`,
			owner, itemCode,
		)
		if err != nil {
			return 0, storeError("delete empty balance", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError("commit", err)
	}
	return remaining, nil
}

func (a *SQLAdapter) DeleteBalance(ctx context.Context, owner, itemCode string) error {
	_, err := a.db.ExecContext(ctx, `
		DELETE FROM balances WHERE owner = ? AND item_code = ?`,
		owner, itemCode,
	)
	if err != nil {
		return storeError("delete balance", err)
	}
	return nil
}

func (a *SQLAdapter) TotalSupply(ctx context.Context, itemCode string) (int64, error) {
	var total int64
	err := a.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM balances WHERE item_code = ?`,
		itemCode,
	).Scan(&total)
	if err != nil {
		return 0, storeError("sum supply", err)
	}
	return total, nil
}

func (a *SQLAdapter) InsertHistory(ctx context.Context, e domain.HistoryEntry) (int64, error) {
	result, err := a.db.ExecContext(ctx, "INSERT INTO history (owner, item_code, `change`, running_total, reason, occurred_at_seconds) VALUES (?, ?, ?, ?, ?, ?)",
		e.Owner, e.ItemCode, e.Change, e.RunningTotal, e.Reason, e.OccurredAt,
	)
	if err != nil {
		return 0, storeError("insert history", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("insert history", err)
	}
	return rows, nil
}

func (a *SQLAdapter) CountHistory(ctx context.Context) (int64, error) {
	var count int64
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&count); err != nil {
		return 0, storeError("count history", err)
	}
	return count, nil
}

func (a *SQLAdapter) DeleteOldestHistory(ctx context.Context, limit int) (int64, error) {
	if limit <= 0 {
		return 0, nil
	}

	result, err := a.db.ExecContext(ctx, a.dialect.deleteOldest, limit)
	if err != nil {
		return 0, storeError("trim history", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("trim history", err)
	}
	return rows, nil
}

func (a *SQLAdapter) ListHistory(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := a.db.QueryContext(ctx, "SELECT id, owner, item_code, `change`, running_total, reason, occurred_at_seconds FROM history "+
		"WHERE (? = '' OR owner = ?) AND (? = '' OR item_code = ?) ORDER BY id DESC LIMIT ?",
		filter.Owner, filter.Owner, filter.ItemCode, filter.ItemCode, limit,
	)
	if err != nil {
		return nil, storeError("list history", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Owner, &e.ItemCode, &e.Change, &e.RunningTotal, &e.Reason, &e.OccurredAt); err != nil {
			return nil, storeError("scan history", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list history", err)
	}

	return entries, nil
}
