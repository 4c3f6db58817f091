// Package adapter holds the per-chain history normalizers and balance
// providers. Each adapter turns one explorer's paginated records into
// signed movements relative to the tracked address set.
package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/types"
)

// HistoryAdapter reconstructs the signed movement history of one account
type HistoryAdapter interface {
	// Category returns the address book category this adapter serves
	Category() types.Category

	// GetHistory returns every movement of account, newest first.
	// Any upstream failure fails the whole call; no partial history is returned.
	GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error)
}

// BalanceAdapter reads the current balance of one address
type BalanceAdapter interface {
	Category() types.Category

	// Asset is the price symbol the balance is denominated in
	Asset() string

	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// PriceSource supplies USD prices to the normalizers. price.Cache implements it.
type PriceSource interface {
	Daily(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error)
	At(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error)
	Current(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Registry maps categories to their adapters
type Registry struct {
	mu       sync.RWMutex
	history  map[types.Category]HistoryAdapter
	balances map[types.Category]BalanceAdapter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		history:  make(map[types.Category]HistoryAdapter),
		balances: make(map[types.Category]BalanceAdapter),
	}
}

// RegisterHistory adds or replaces the history adapter of a.Category()
func (r *Registry) RegisterHistory(a HistoryAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[a.Category()] = a
}

// RegisterBalance adds or replaces the balance adapter of a.Category()
func (r *Registry) RegisterBalance(a BalanceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[a.Category()] = a
}

// History returns the history adapter of category
func (r *Registry) History(category types.Category) (HistoryAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.history[category]
	if !ok {
		return nil, errors.NewUnknownCategoryError(category)
	}
	return a, nil
}

// Balance returns the balance adapter of category
func (r *Registry) Balance(category types.Category) (BalanceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.balances[category]
	if !ok {
		return nil, errors.NewUnknownCategoryError(category)
	}
	return a, nil
}

// HistoryCategories lists the categories with a history adapter, sorted
func (r *Registry) HistoryCategories() []types.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Category, 0, len(r.history))
	for c := range r.history {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// finalize drops zero-net movements and orders the rest newest first.
// Movements sharing a timestamp keep their relative order.
func finalize(movements []types.SignedMovement) []types.SignedMovement {
	out := movements[:0]
	for _, m := range movements {
		if m.IsZero() {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// priceDaily attaches the day price of asset to every movement
func priceDaily(ctx context.Context, prices PriceSource, asset string, movements []types.SignedMovement) ([]types.SignedMovement, error) {
	for i, m := range movements {
		p, err := prices.Daily(ctx, asset, m.Timestamp)
		if err != nil {
			return nil, err
		}
		movements[i] = m.WithPrice(p)
	}
	return movements, nil
}

// skipRecord logs a record that could not be normalized
func skipRecord(ctx context.Context, category types.Category, id, reason string) {
	err := errors.NewMalformedRecordError(category, id, reason)
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"chain": string(category),
		"id":    id,
	}).Debug(err.Message)
}
