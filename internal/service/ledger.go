// Package service assembles adapter output into the reports served by the
// API and CLI tools: running-balance ledgers, Cardano daily snapshots and
// the cross-chain portfolio.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/stream"
	"github.com/chain-ledger/internal/types"
)

// HistorySource resolves the history adapter of a category
type HistorySource interface {
	History(category types.Category) (adapter.HistoryAdapter, error)
}

// Accumulate walks movements oldest first and attaches the running native
// balance and its USD value at each row's own price. movements must already
// be ascending; they are not re-sorted.
func Accumulate(opening decimal.Decimal, movements []types.SignedMovement) []types.LedgerRow {
	rows := make([]types.LedgerRow, len(movements))
	balance := opening
	for i, m := range movements {
		balance = balance.Add(m.NativeAmount).Add(m.Fee)
		rows[i] = types.LedgerRow{
			SignedMovement: m,
			Balance:        balance,
			BalanceUSD:     balance.Mul(m.PriceUSD),
		}
	}
	return rows
}

// LedgerService builds per-account ledgers
type LedgerService struct {
	history HistorySource
}

// NewLedgerService creates a new ledger service
func NewLedgerService(history HistorySource) *LedgerService {
	return &LedgerService{history: history}
}

// BuildLedger fetches the full history of account and returns it with
// running balances starting from zero. Rows are oldest first unless
// descending is set.
func (s *LedgerService) BuildLedger(ctx context.Context, category types.Category, account string, descending bool) ([]types.LedgerRow, error) {
	a, err := s.history.History(category)
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"category": string(category),
		"account":  account,
	})
	log.Debug("building ledger")

	movements, err := a.GetHistory(ctx, account)
	if err != nil {
		return nil, err
	}
	rows := Accumulate(decimal.Zero, stream.Reverse(movements))
	log.WithField("rows", len(rows)).Info("ledger built")

	if descending {
		return stream.Reverse(rows), nil
	}
	return rows, nil
}
