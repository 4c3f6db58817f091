// Package price resolves USD prices for ledger rows, daily snapshots and
// portfolio valuations. Oracles talk to upstream price APIs; Cache memoises
// their answers and coalesces concurrent lookups of the same key.
package price

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Asset symbols understood by the oracles
const (
	AssetBTC   = "BTC"
	AssetETH   = "ETH"
	AssetADA   = "ADA"
	AssetSOL   = "SOL"
	AssetUSDC  = "USDC"
	AssetUSDT  = "USDT"
	AssetXRP   = "XRP"
	AssetDOT   = "DOT"
	AssetSUI   = "SUI"
	AssetAPI3  = "API3"
	AssetStETH = "stETH"
)

// Oracle is a source of USD prices
type Oracle interface {
	Name() string
	// PriceAt returns the USD price of asset at t. Oracles with daily
	// granularity answer for the UTC day containing t.
	PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error)
	CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

// Router dispatches each asset to the oracle configured for it.
// Historical and current prices are routed independently.
type Router struct {
	historical map[string]Oracle
	current    map[string]Oracle
	fallback   Oracle
}

// NewRouter creates a router answering unrouted assets with fallback.
// A nil fallback makes unrouted assets an error.
func NewRouter(fallback Oracle) *Router {
	return &Router{
		historical: make(map[string]Oracle),
		current:    make(map[string]Oracle),
		fallback:   fallback,
	}
}

// Historical routes historical lookups of the assets to o
func (r *Router) Historical(o Oracle, assets ...string) *Router {
	for _, a := range assets {
		r.historical[a] = o
	}
	return r
}

// Current routes current price lookups of the assets to o
func (r *Router) Current(o Oracle, assets ...string) *Router {
	for _, a := range assets {
		r.current[a] = o
	}
	return r
}

// Name implements Oracle
func (r *Router) Name() string {
	return "router"
}

func (r *Router) pick(routes map[string]Oracle, asset string) (Oracle, error) {
	if o, ok := routes[asset]; ok {
		return o, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("no price oracle for asset %s", asset)
}

// PriceAt implements Oracle
func (r *Router) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	o, err := r.pick(r.historical, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return o.PriceAt(ctx, asset, t)
}

// CurrentPrice implements Oracle
func (r *Router) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	o, err := r.pick(r.current, asset)
	if err != nil {
		return decimal.Zero, err
	}
	return o.CurrentPrice(ctx, asset)
}

// DayStart returns midnight UTC of the day containing t
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
