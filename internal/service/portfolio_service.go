package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/chain-ledger/internal/adapter"
	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/types"
)

// BalanceSource resolves the balance adapter of a category
type BalanceSource interface {
	Balance(category types.Category) (adapter.BalanceAdapter, error)
}

// CurrentPricer returns current USD prices
type CurrentPricer interface {
	Current(ctx context.Context, asset string) (decimal.Decimal, error)
}

// CopperSource returns the custodial wallet snapshot
type CopperSource interface {
	Wallets(ctx context.Context) ([]adapter.CopperWallet, error)
}

const copperUSD = "USD"

// PortfolioService values every address of an address book at current prices
type PortfolioService struct {
	balances BalanceSource
	prices   CurrentPricer
	copper   CopperSource
	now      func() time.Time
}

// NewPortfolioService creates a new portfolio service. copper may be nil
// when no custodial wallets are tracked.
func NewPortfolioService(balances BalanceSource, prices CurrentPricer, copper CopperSource) *PortfolioService {
	return &PortfolioService{
		balances: balances,
		prices:   prices,
		copper:   copper,
		now:      time.Now,
	}
}

// BuildReport fetches one price per category and one balance per address.
// Categories are fetched concurrently; entries keep address book order. Any
// failure fails the whole report.
func (s *PortfolioService) BuildReport(ctx context.Context, book types.AddressBook) (*types.PortfolioReport, error) {
	offsets := make([]int, len(book))
	adapters := make([]adapter.BalanceAdapter, len(book))
	total := 0
	for i, group := range book {
		offsets[i] = total
		total += len(group.Addresses)
		if group.Category == types.CategoryCopper || len(group.Addresses) == 0 {
			continue
		}
		a, err := s.balances.Balance(group.Category)
		if err != nil {
			return nil, err
		}
		adapters[i] = a
	}
	entries := make([]types.PortfolioEntry, total)

	g, gctx := errgroup.WithContext(ctx)
	for i, group := range book {
		if len(group.Addresses) == 0 {
			continue
		}
		out := entries[offsets[i] : offsets[i]+len(group.Addresses)]
		if group.Category == types.CategoryCopper {
			g.Go(func() error { return s.valueCopper(gctx, group, out) })
			continue
		}
		a := adapters[i]
		g.Go(func() error { return s.valueCategory(gctx, a, group, out) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &types.PortfolioReport{
		ID:          uuid.New().String(),
		GeneratedAt: s.now().UTC(),
		Entries:     entries,
		TotalUSD:    decimal.Zero,
	}
	for _, e := range entries {
		report.TotalUSD = report.TotalUSD.Add(e.Value)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"report_id": report.ID,
		"entries":   len(entries),
		"total_usd": report.TotalUSD.String(),
	}).Info("portfolio report built")
	return report, nil
}

func (s *PortfolioService) valueCategory(ctx context.Context, a adapter.BalanceAdapter, group types.CategoryAddresses, out []types.PortfolioEntry) error {
	price, err := s.prices.Current(ctx, a.Asset())
	if err != nil {
		return err
	}
	for i, entry := range group.Addresses {
		balance, err := a.GetBalance(ctx, entry.Address)
		if err != nil {
			return err
		}
		out[i] = newEntry(group.Category, entry, balance, price)
	}
	return nil
}

// valueCopper reads all custodial balances from one snapshot. Addresses are
// wallet ids; each wallet is priced in its declared currency.
func (s *PortfolioService) valueCopper(ctx context.Context, group types.CategoryAddresses, out []types.PortfolioEntry) error {
	if s.copper == nil {
		return errors.NewInternalError("copper wallets requested but no Copper client is configured", nil)
	}
	wallets, err := s.copper.Wallets(ctx)
	if err != nil {
		return err
	}
	byID := adapter.WalletsByID(wallets)

	prices := make(map[string]decimal.Decimal)
	priceOf := func(currency string) (decimal.Decimal, error) {
		if strings.EqualFold(currency, copperUSD) {
			return decimal.NewFromInt(1), nil
		}
		if p, ok := prices[currency]; ok {
			return p, nil
		}
		p, err := s.prices.Current(ctx, currency)
		if err != nil {
			return decimal.Zero, err
		}
		prices[currency] = p
		return p, nil
	}

	for i, entry := range group.Addresses {
		w, ok := byID[entry.Address]
		if !ok {
			return errors.NewInvalidAccountError(entry.Address, "unknown Copper wallet id")
		}
		price, err := priceOf(w.Currency)
		if err != nil {
			return err
		}
		out[i] = newEntry(types.CategoryCopper, entry, w.Balance, price)
	}
	return nil
}

func newEntry(category types.Category, entry types.AddressEntry, balance, price decimal.Decimal) types.PortfolioEntry {
	return types.PortfolioEntry{
		Category: category,
		Address:  entry.Address,
		Entity:   entry.Entity,
		Liquid:   entry.Liquid,
		Balance:  balance,
		Price:    price,
		Value:    balance.Mul(price),
	}
}
