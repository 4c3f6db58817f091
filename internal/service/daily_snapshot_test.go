package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/stream"
	"github.com/chain-ledger/internal/types"
)

var snapshotNow = time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

type fakeTx struct {
	at    time.Time
	delta string
}

type fakeDaily struct {
	balance    string
	current    string
	dayPrices  map[string]string // boundary date -> price
	priceErr   error
	txs        []fakeTx
	deltaCalls int
	boundaries []time.Time
}

func (f *fakeDaily) LiveBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString(f.balance), nil
}

func (f *fakeDaily) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString(f.current), nil
}

func (f *fakeDaily) DayPrice(ctx context.Context, boundary time.Time) (decimal.Decimal, error) {
	f.boundaries = append(f.boundaries, boundary)
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	if p, ok := f.dayPrices[boundary.Format(snapshotDateLayout)]; ok {
		return decimal.RequireFromString(p), nil
	}
	return decimal.NewFromInt(1), nil
}

func (f *fakeDaily) Transactions() stream.Iterator[types.DailyEvent] {
	events := make([]types.DailyEvent, len(f.txs))
	for i, tx := range f.txs {
		events[i] = types.DailyEvent{
			Time: tx.at,
			ID:   tx.at.Format(time.RFC3339),
			Delta: func(ctx context.Context) (decimal.Decimal, error) {
				f.deltaCalls++
				return decimal.RequireFromString(tx.delta), nil
			},
		}
	}
	return stream.FromSlice(events)
}

type row struct {
	date    string
	balance string
}

func collectRows(t *testing.T, src DailySource) []row {
	t.Helper()
	gen := NewSnapshotGenerator(WithSnapshotClock(func() time.Time { return snapshotNow }))
	it, err := gen.Generate(context.Background(), src)
	require.NoError(t, err)
	snaps, err := stream.Collect(context.Background(), it)
	require.NoError(t, err)

	out := make([]row, len(snaps))
	for i, s := range snaps {
		out[i] = row{date: s.Date, balance: s.Balance.String()}
	}
	return out
}

func TestSnapshotSingleTransaction(t *testing.T) {
	src := &fakeDaily{
		balance: "10",
		current: "0.5",
		txs:     []fakeTx{{at: time.Date(2024, time.March, 8, 12, 0, 0, 0, time.UTC), delta: "2"}},
	}

	assert.Equal(t, []row{
		{"2024-03-10", "10"},
		{"2024-03-09", "10"},
		{"2024-03-08", "10"},
		{"2024-03-07", "8"},
	}, collectRows(t, src))
	assert.Equal(t, 1, src.deltaCalls)
}

func TestSnapshotPricesAndUSD(t *testing.T) {
	src := &fakeDaily{
		balance:   "4",
		current:   "0.5",
		dayPrices: map[string]string{"2024-03-10": "0.25"},
		txs:       []fakeTx{{at: time.Date(2024, time.March, 9, 6, 0, 0, 0, time.UTC), delta: "-1"}},
	}
	gen := NewSnapshotGenerator(WithSnapshotClock(func() time.Time { return snapshotNow }))
	it, err := gen.Generate(context.Background(), src)
	require.NoError(t, err)
	snaps, err := stream.Collect(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	// today uses the current price
	assert.Equal(t, "0.5", snaps[0].PriceUSD.String())
	assert.Equal(t, "2", snaps[0].BalanceUSD.String())

	// the 2024-03-09 row is priced at the boundary ending that day
	assert.Equal(t, "2024-03-09", snaps[1].Date)
	assert.Equal(t, "0.25", snaps[1].PriceUSD.String())
	assert.Equal(t, "1", snaps[1].BalanceUSD.String())

	// undoing a negative delta raises the earlier balance
	assert.Equal(t, "2024-03-08", snaps[2].Date)
	assert.Equal(t, "5", snaps[2].Balance.String())

	assert.Equal(t, []time.Time{
		time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC),
	}, src.boundaries)
}

func TestSnapshotSeveralTransactions(t *testing.T) {
	src := &fakeDaily{
		balance: "10",
		current: "1",
		txs: []fakeTx{
			{at: time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC), delta: "1"},
			{at: time.Date(2024, time.March, 8, 20, 0, 0, 0, time.UTC), delta: "3"},
			{at: time.Date(2024, time.March, 8, 1, 0, 0, 0, time.UTC), delta: "2"},
		},
	}

	assert.Equal(t, []row{
		{"2024-03-10", "10"},
		{"2024-03-09", "9"},
		{"2024-03-08", "9"},
		{"2024-03-07", "4"},
	}, collectRows(t, src))
}

func TestSnapshotWithoutTransactions(t *testing.T) {
	src := &fakeDaily{balance: "7", current: "2"}

	assert.Equal(t, []row{{"2024-03-10", "7"}}, collectRows(t, src))
	assert.Empty(t, src.boundaries)
}

func TestSnapshotTransactionAtMidnight(t *testing.T) {
	// a transaction at 00:00 belongs to the day it opens
	src := &fakeDaily{
		balance: "10",
		current: "1",
		txs:     []fakeTx{{at: time.Date(2024, time.March, 9, 0, 0, 0, 0, time.UTC), delta: "1"}},
	}

	assert.Equal(t, []row{
		{"2024-03-10", "10"},
		{"2024-03-09", "10"},
		{"2024-03-08", "9"},
	}, collectRows(t, src))
}

func TestSnapshotIsLazy(t *testing.T) {
	src := &fakeDaily{
		balance: "10",
		current: "1",
		txs:     []fakeTx{{at: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), delta: "1"}},
	}
	gen := NewSnapshotGenerator(WithSnapshotClock(func() time.Time { return snapshotNow }))
	it, err := gen.Generate(context.Background(), src)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Zero(t, src.deltaCalls)
	assert.Len(t, src.boundaries, 2)
}

func TestSnapshotDayPriceError(t *testing.T) {
	boom := stderrors.New("price unavailable")
	src := &fakeDaily{
		balance:  "10",
		current:  "1",
		priceErr: boom,
		txs:      []fakeTx{{at: time.Date(2024, time.March, 8, 12, 0, 0, 0, time.UTC), delta: "2"}},
	}
	gen := NewSnapshotGenerator(WithSnapshotClock(func() time.Time { return snapshotNow }))
	it, err := gen.Generate(context.Background(), src)
	require.NoError(t, err)

	_, err = stream.Collect(context.Background(), it)
	assert.ErrorIs(t, err, boom)
}
