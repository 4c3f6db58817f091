package service

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/types"
)

type staticHistory struct {
	category  types.Category
	movements []types.SignedMovement
}

func (h *staticHistory) Category() types.Category { return h.category }

func (h *staticHistory) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	return append([]types.SignedMovement(nil), h.movements...), nil
}

type historyMap map[types.Category]adapter.HistoryAdapter

func (m historyMap) History(c types.Category) (adapter.HistoryAdapter, error) {
	a, ok := m[c]
	if !ok {
		return nil, errors.NewUnknownCategoryError(c)
	}
	return a, nil
}

func movement(id string, sec int64, amount, fee, price string) types.SignedMovement {
	return types.SignedMovement{
		Timestamp:    time.Unix(sec, 0).UTC(),
		ExternalID:   id,
		NativeAmount: decimal.RequireFromString(amount),
		Fee:          decimal.RequireFromString(fee),
	}.WithPrice(decimal.RequireFromString(price))
}

func balances(rows []types.LedgerRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Balance.String()
	}
	return out
}

func TestAccumulate(t *testing.T) {
	rows := Accumulate(decimal.Zero, []types.SignedMovement{
		movement("a", 1, "1", "0", "10"),
		movement("b", 2, "-0.4", "-0.01", "20"),
		movement("c", 3, "0", "-0.01", "30"),
	})

	assert.Equal(t, []string{"1", "0.59", "0.58"}, balances(rows))
	// each row is marked at its own price
	assert.Equal(t, "10", rows[0].BalanceUSD.String())
	assert.Equal(t, "11.8", rows[1].BalanceUSD.String())
	assert.Equal(t, "17.4", rows[2].BalanceUSD.String())
}

func TestAccumulateDoesNotSort(t *testing.T) {
	rows := Accumulate(decimal.Zero, []types.SignedMovement{
		movement("late", 5, "2", "0", "1"),
		movement("early", 1, "1", "0", "1"),
	})
	assert.Equal(t, "late", rows[0].ExternalID)
	assert.Equal(t, []string{"2", "3"}, balances(rows))
}

func TestBuildLedgerBitcoinScenario(t *testing.T) {
	// newest first, as adapters return them
	history := &staticHistory{category: types.CategoryBTC, movements: []types.SignedMovement{
		movement("deposit2", 3000, "0.1", "0", "100"),
		movement("withdraw", 2000, "-0.2", "0", "100"),
		movement("deposit1", 1000, "0.5", "0", "100"),
	}}
	svc := NewLedgerService(historyMap{types.CategoryBTC: history})

	rows, err := svc.BuildLedger(context.Background(), types.CategoryBTC, "bc1q", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.5", "0.3", "0.4"}, balances(rows))
	assert.Equal(t, "deposit1", rows[0].ExternalID)

	rows, err = svc.BuildLedger(context.Background(), types.CategoryBTC, "bc1q", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"0.4", "0.3", "0.5"}, balances(rows))
	assert.Equal(t, "deposit2", rows[0].ExternalID)
}

func TestBuildLedgerUnknownCategory(t *testing.T) {
	svc := NewLedgerService(historyMap{})

	_, err := svc.BuildLedger(context.Background(), "DOGE", "x", false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))
}

// Property: the final balance equals the sum of nets and accumulation is deterministic
func TestAccumulateProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	toMovements := func(amounts, fees []int64) []types.SignedMovement {
		n := len(amounts)
		if len(fees) < n {
			n = len(fees)
		}
		out := make([]types.SignedMovement, n)
		for i := 0; i < n; i++ {
			out[i] = types.SignedMovement{
				Timestamp:    time.Unix(int64(i), 0),
				NativeAmount: decimal.New(amounts[i], -8),
				Fee:          decimal.New(fees[i], -8),
				PriceUSD:     decimal.NewFromInt(2),
			}
		}
		return out
	}

	properties.Property("last balance is the sum of nets", prop.ForAll(
		func(amounts, fees []int64) bool {
			movs := toMovements(amounts, fees)
			rows := Accumulate(decimal.Zero, movs)
			sum := decimal.Zero
			for _, m := range movs {
				sum = sum.Add(m.Net())
			}
			if len(rows) == 0 {
				return len(movs) == 0
			}
			return rows[len(rows)-1].Balance.Equal(sum)
		},
		gen.SliceOf(gen.Int64Range(-1e10, 1e10)),
		gen.SliceOf(gen.Int64Range(-1e5, 0)),
	))

	properties.Property("each balance steps by the row net", prop.ForAll(
		func(amounts, fees []int64) bool {
			movs := toMovements(amounts, fees)
			rows := Accumulate(decimal.Zero, movs)
			prev := decimal.Zero
			for i, r := range rows {
				if !r.Balance.Sub(prev).Equal(movs[i].Net()) {
					return false
				}
				if !r.BalanceUSD.Equal(r.Balance.Mul(decimal.NewFromInt(2))) {
					return false
				}
				prev = r.Balance
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-1e10, 1e10)),
		gen.SliceOf(gen.Int64Range(-1e5, 0)),
	))

	zeroDelta := func(rows []types.LedgerRow) []types.SignedMovement {
		out := make([]types.SignedMovement, len(rows))
		for i, r := range rows {
			m := r.SignedMovement
			m.NativeAmount = decimal.Zero
			m.Fee = decimal.Zero
			out[i] = m
		}
		return out
	}

	properties.Property("zero-delta rows hold the opening balance", prop.ForAll(
		func(amounts, fees []int64) bool {
			rows := Accumulate(decimal.Zero, toMovements(amounts, fees))
			zeros := zeroDelta(rows)
			for i := range rows {
				again := Accumulate(rows[i].Balance, zeros)
				if len(again) != len(rows) {
					return false
				}
				for _, r := range again {
					if !r.Balance.Equal(rows[i].Balance) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-1e10, 1e10)),
		gen.SliceOf(gen.Int64Range(-1e5, 0)),
	))

	properties.Property("resuming from a prior balance reproduces the ledger", prop.ForAll(
		func(amounts, fees []int64) bool {
			movs := toMovements(amounts, fees)
			rows := Accumulate(decimal.Zero, movs)
			for i := 1; i < len(rows); i++ {
				held := Accumulate(rows[i-1].Balance, zeroDelta(rows[i:]))
				for _, r := range held {
					if !r.Balance.Equal(rows[i-1].Balance) {
						return false
					}
				}
				resumed := Accumulate(rows[i-1].Balance, movs[i:])
				for j, r := range resumed {
					if !r.Balance.Equal(rows[i+j].Balance) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(-1e10, 1e10)),
		gen.SliceOf(gen.Int64Range(-1e5, 0)),
	))

	properties.TestingRun(t)
}
