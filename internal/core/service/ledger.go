package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rl1809/item-ledger/internal/core/domain"
	"github.com/rl1809/item-ledger/internal/port"
	"github.com/rl1809/item-ledger/internal/telemetry"
)

// Housekeeper runs after every successful mutation. It must not fail the
// mutation; implementations log their own errors.
type Housekeeper interface {
	AfterMutation(ctx context.Context)
}

type noopHousekeeper struct{}

func (noopHousekeeper) AfterMutation(context.Context) {}

// LedgerService owns item balances. Each mutation is a store-level atomic
// balance step followed by a supply snapshot, a history entry and housekeeping.
type LedgerService struct {
	balances    port.BalanceRepository
	supply      *SupplyQuery
	audit       *AuditTrail
	housekeeper Housekeeper
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

func NewLedgerService(balances port.BalanceRepository, supply *SupplyQuery, audit *AuditTrail, housekeeper Housekeeper, opts Options) *LedgerService {
	opts = opts.withDefaults()
	if housekeeper == nil {
		housekeeper = noopHousekeeper{}
	}
	return &LedgerService{
		balances:    balances,
		supply:      supply,
		audit:       audit,
		housekeeper: housekeeper,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

func (s *LedgerService) GetBalance(ctx context.Context, owner, itemCode string) (*domain.Balance, error) {
	if err := validateKey(owner, itemCode); err != nil {
		return nil, err
	}

	b, err := s.balances.GetBalance(ctx, owner, itemCode)
	if err != nil {
		return nil, fmt.Errorf("get balance %s/%s: %w", owner, itemCode, err)
	}
	return b, nil
}

func (s *LedgerService) GetQuantity(ctx context.Context, owner, itemCode string) (int64, error) {
	b, err := s.GetBalance(ctx, owner, itemCode)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return b.Quantity, nil
}

// HasAtLeast is advisory only; Subtract enforces the floor itself.
func (s *LedgerService) HasAtLeast(ctx context.Context, owner, itemCode string, quantity int64) (bool, error) {
	held, err := s.GetQuantity(ctx, owner, itemCode)
	if err != nil {
		return false, err
	}
	return held >= quantity, nil
}

func (s *LedgerService) Add(ctx context.Context, owner, itemCode string, quantity int64, reason string) (int64, error) {
	start := time.Now()
	if err := validateMutation(owner, itemCode, quantity); err != nil {
		s.metrics.RecordMutation(ctx, "add", outcome(err), time.Since(start))
		return 0, err
	}

	current, err := s.balances.Increment(ctx, owner, itemCode, quantity)
	if err != nil {
		s.metrics.RecordMutation(ctx, "add", outcome(err), time.Since(start))
		return 0, fmt.Errorf("add %d %s to %s: %w", quantity, itemCode, owner, err)
	}

	s.afterMutation(ctx, owner, itemCode, quantity, reason)
	s.metrics.RecordMutation(ctx, "add", outcome(nil), time.Since(start))
	return current, nil
}

// Subtract returns the remaining quantity, 0 when the balance row was removed.
// It fails with domain.ErrInsufficientQuantity, leaving the balance untouched,
// if less than quantity is held.
func (s *LedgerService) Subtract(ctx context.Context, owner, itemCode string, quantity int64, reason string) (int64, error) {
	start := time.Now()
	if err := validateMutation(owner, itemCode, quantity); err != nil {
		s.metrics.RecordMutation(ctx, "subtract", outcome(err), time.Since(start))
		return 0, err
	}

	remaining, err := s.balances.Decrement(ctx, owner, itemCode, quantity)
	if err != nil {
		s.metrics.RecordMutation(ctx, "subtract", outcome(err), time.Since(start))
		return 0, fmt.Errorf("subtract %d %s from %s: %w", quantity, itemCode, owner, err)
	}

	s.afterMutation(ctx, owner, itemCode, -quantity, reason)
	s.metrics.RecordMutation(ctx, "subtract", outcome(nil), time.Since(start))
	return remaining, nil
}

// Delete removes the balance row regardless of its quantity. No history entry
// is written.
func (s *LedgerService) Delete(ctx context.Context, owner, itemCode string) error {
	if err := validateKey(owner, itemCode); err != nil {
		return err
	}
	if err := s.balances.DeleteBalance(ctx, owner, itemCode); err != nil {
		return fmt.Errorf("delete balance %s/%s: %w", owner, itemCode, err)
	}
	return nil
}

func (s *LedgerService) TotalSupply(ctx context.Context, itemCode string) (int64, error) {
	return s.supply.TotalSupply(ctx, itemCode)
}

func (s *LedgerService) History(ctx context.Context, filter domain.HistoryFilter) ([]domain.HistoryEntry, error) {
	return s.audit.List(ctx, filter)
}

// afterMutation runs once the balance change has committed, so nothing here
// may fail the caller.
func (s *LedgerService) afterMutation(ctx context.Context, owner, itemCode string, delta int64, reason string) {
	total, err := s.supply.TotalSupply(ctx, itemCode)
	if err != nil {
		s.audit.Anomaly(ctx, fmt.Errorf("%w: %w", domain.ErrAuditAnomaly, err), domain.HistoryEntry{
			Owner:    owner,
			ItemCode: itemCode,
			Change:   delta,
			Reason:   reason,
		})
	} else {
		s.audit.Record(ctx, owner, itemCode, delta, total, reason)
	}

	s.housekeeper.AfterMutation(ctx)
}

func validateItem(itemCode string) error {
	if strings.TrimSpace(itemCode) == "" {
		return fmt.Errorf("%w: empty item code", domain.ErrInvalidArgument)
	}
	return nil
}

func validateKey(owner, itemCode string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("%w: empty owner", domain.ErrInvalidArgument)
	}
	return validateItem(itemCode)
}

func validateMutation(owner, itemCode string, quantity int64) error {
	if err := validateKey(owner, itemCode); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", domain.ErrInvalidArgument, quantity)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, domain.ErrInsufficientQuantity):
		return "insufficient"
	default:
		return "store_error"
	}
}
