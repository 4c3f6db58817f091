package price

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/upstream"
)

// CoinGeckoIDs maps asset symbols to CoinGecko coin ids
var CoinGeckoIDs = map[string]string{
	AssetBTC:   "bitcoin",
	AssetETH:   "ethereum",
	AssetSOL:   "solana",
	AssetSUI:   "sui",
	AssetXRP:   "ripple",
	AssetADA:   "cardano",
	AssetAPI3:  "api3",
	AssetStETH: "staked-ether",
	AssetUSDT:  "tether",
	AssetUSDC:  "usd-coin",
	AssetDOT:   "polkadot",
}

// CoinGecko serves daily historical prices and current prices
type CoinGecko struct {
	client *upstream.Client
}

// NewCoinGecko creates a CoinGecko oracle
func NewCoinGecko(client *upstream.Client) *CoinGecko {
	return &CoinGecko{client: client}
}

// Name implements Oracle
func (c *CoinGecko) Name() string {
	return "coingecko"
}

func coinID(asset string) (string, error) {
	id, ok := CoinGeckoIDs[asset]
	if !ok {
		return "", fmt.Errorf("no coingecko id for asset %s", asset)
	}
	return id, nil
}

type coinHistoryResponse struct {
	MarketData *struct {
		CurrentPrice map[string]decimal.Decimal `json:"current_price"`
	} `json:"market_data"`
}

// PriceAt returns the USD price snapshot CoinGecko keeps for the UTC day of t
func (c *CoinGecko) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	id, err := coinID(asset)
	if err != nil {
		return decimal.Zero, err
	}

	path := "/coins/" + id + "/history"
	query := url.Values{
		"date":         {DayStart(t).Format("02-01-2006")},
		"localization": {"false"},
	}

	var resp coinHistoryResponse
	if err := c.client.GetJSON(ctx, path, query, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.MarketData == nil {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(c.Name(), path, "no market data for "+query.Get("date"))
	}
	usd, ok := resp.MarketData.CurrentPrice["usd"]
	if !ok {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(c.Name(), path, "no usd price for "+query.Get("date"))
	}
	return usd, nil
}

// CurrentPrice returns the spot USD price
func (c *CoinGecko) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	id, err := coinID(asset)
	if err != nil {
		return decimal.Zero, err
	}

	var resp map[string]map[string]decimal.Decimal
	query := url.Values{"ids": {id}, "vs_currencies": {"usd"}}
	if err := c.client.GetJSON(ctx, "/simple/price", query, &resp); err != nil {
		return decimal.Zero, err
	}
	usd, ok := resp[id]["usd"]
	if !ok {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(c.Name(), "/simple/price", "no usd price for "+id)
	}
	return usd, nil
}
