package port

import (
	"context"

	"github.com/rl1809/item-ledger/internal/core/domain"
)

type BalanceRepository interface {
	// GetBalance returns nil when the owner holds none of the item
	GetBalance(ctx context.Context, owner, itemCode string) (*domain.Balance, error)

	// Increment upserts the balance row and returns the new quantity
	Increment(ctx context.Context, owner, itemCode string, quantity int64) (int64, error)

	// Decrement atomically subtracts quantity only if enough is held, deleting
	// the row when it reaches zero. Returns domain.ErrInsufficientQuantity
	// when the floor check fails.
	Decrement(ctx context.Context, owner, itemCode string, quantity int64) (int64, error)

	// DeleteBalance removes the row unconditionally
	DeleteBalance(ctx context.Context, owner, itemCode string) error

	// TotalSupply sums quantity across all owners, 0 when nobody holds it
	TotalSupply(ctx context.Context, itemCode string) (int64, error)
}
