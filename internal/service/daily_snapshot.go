package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/stream"
	"github.com/chain-ledger/internal/types"
)

const snapshotDateLayout = "2006-01-02"

// DailySource supplies the inputs of a daily balance walk
type DailySource interface {
	LiveBalance(ctx context.Context) (decimal.Decimal, error)
	CurrentPrice(ctx context.Context) (decimal.Decimal, error)
	DayPrice(ctx context.Context, boundary time.Time) (decimal.Decimal, error)
	// Transactions yields the account's transactions newest first
	Transactions() stream.Iterator[types.DailyEvent]
}

// SnapshotGenerator produces one balance row per UTC calendar day by walking
// transactions backward from the live balance
type SnapshotGenerator struct {
	now func() time.Time
}

// SnapshotOption configures a SnapshotGenerator
type SnapshotOption func(*SnapshotGenerator)

// WithSnapshotClock replaces the clock that decides "today"
func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(g *SnapshotGenerator) { g.now = now }
}

// NewSnapshotGenerator creates a generator
func NewSnapshotGenerator(opts ...SnapshotOption) *SnapshotGenerator {
	g := &SnapshotGenerator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// walkItem is either a day boundary or a transaction
type walkItem struct {
	at       time.Time
	boundary bool
	event    types.DailyEvent
}

// Generate returns a lazy, newest first stream of snapshots. The first row
// is today at the live balance and current price. Each following row is the
// balance at the end of a day, reached by undoing every newer transaction.
// The walk ends at the first day boundary before the earliest transaction.
func (g *SnapshotGenerator) Generate(ctx context.Context, src DailySource) (stream.Iterator[types.DailySnapshot], error) {
	now := g.now().UTC()
	balance, err := src.LiveBalance(ctx)
	if err != nil {
		return nil, err
	}
	price, err := src.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}

	var (
		exhausted bool
		earliest  = now
	)
	txs := src.Transactions()
	txItems := stream.Func[walkItem](func(ctx context.Context) (walkItem, bool, error) {
		ev, ok, err := txs.Next(ctx)
		if err != nil {
			return walkItem{}, false, err
		}
		if !ok {
			exhausted = true
			return walkItem{}, false, nil
		}
		earliest = ev.Time
		return walkItem{at: ev.Time, event: ev}, true, nil
	})

	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	boundaries := stream.Func[walkItem](func(ctx context.Context) (walkItem, bool, error) {
		if exhausted && next.Before(earliest) {
			return walkItem{}, false, nil
		}
		b := next
		next = next.Add(-24 * time.Hour)
		return walkItem{at: b, boundary: true}, true, nil
	})

	today := snapshot(now.Format(snapshotDateLayout), balance, price)
	return &snapshotWalk{
		src:     src,
		merged:  stream.MergeDescending(func(w walkItem) int64 { return w.at.UnixMilli() }, txItems, boundaries),
		balance: balance,
		today:   &today,
	}, nil
}

type snapshotWalk struct {
	src     DailySource
	merged  stream.Iterator[walkItem]
	balance decimal.Decimal
	today   *types.DailySnapshot
}

func (w *snapshotWalk) Next(ctx context.Context) (types.DailySnapshot, bool, error) {
	if w.today != nil {
		s := *w.today
		w.today = nil
		return s, true, nil
	}
	for {
		item, ok, err := w.merged.Next(ctx)
		if err != nil || !ok {
			return types.DailySnapshot{}, false, err
		}
		if item.boundary {
			price, err := w.src.DayPrice(ctx, item.at)
			if err != nil {
				return types.DailySnapshot{}, false, err
			}
			day := item.at.Add(-time.Millisecond).Format(snapshotDateLayout)
			return snapshot(day, w.balance, price), true, nil
		}
		delta, err := item.event.Delta(ctx)
		if err != nil {
			return types.DailySnapshot{}, false, err
		}
		w.balance = w.balance.Sub(delta)
	}
}

func snapshot(date string, balance, price decimal.Decimal) types.DailySnapshot {
	return types.DailySnapshot{
		Date:       date,
		Balance:    balance,
		PriceUSD:   price,
		BalanceUSD: balance.Mul(price),
	}
}
