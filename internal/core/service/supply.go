package service

import (
	"context"
	"fmt"

	"github.com/rl1809/item-ledger/internal/port"
)

// SupplyQuery reports how much of an item circulates across all owners.
type SupplyQuery struct {
	balances port.BalanceRepository
}

func NewSupplyQuery(balances port.BalanceRepository) *SupplyQuery {
	return &SupplyQuery{balances: balances}
}

// TotalSupply returns 0 when no owner holds the item.
func (q *SupplyQuery) TotalSupply(ctx context.Context, itemCode string) (int64, error) {
	if err := validateItem(itemCode); err != nil {
		return 0, err
	}

	total, err := q.balances.TotalSupply(ctx, itemCode)
	if err != nil {
		return 0, fmt.Errorf("total supply of %s: %w", itemCode, err)
	}
	return total, nil
}
