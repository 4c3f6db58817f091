package price

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/upstream"
)

// CryptoCompare serves DOT and SUI history, which CoinGecko's free tier
// does not cover reliably.
type CryptoCompare struct {
	client *upstream.Client
}

// NewCryptoCompare creates a CryptoCompare oracle
func NewCryptoCompare(client *upstream.Client) *CryptoCompare {
	return &CryptoCompare{client: client}
}

// Name implements Oracle
func (c *CryptoCompare) Name() string {
	return "cryptocompare"
}

// PriceAt calls data/pricehistorical with the unix timestamp of t
func (c *CryptoCompare) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	query := url.Values{
		"fsym":  {asset},
		"tsyms": {"USD"},
		"ts":    {strconv.FormatInt(t.Unix(), 10)},
	}
	var resp map[string]map[string]decimal.Decimal
	if err := c.client.GetJSON(ctx, "/data/pricehistorical", query, &resp); err != nil {
		return decimal.Zero, err
	}
	return usdField(c.Name(), "/data/pricehistorical", resp, asset)
}

// CurrentPrice calls data/price
func (c *CryptoCompare) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	query := url.Values{"fsym": {asset}, "tsyms": {"USD"}}
	var resp map[string]decimal.Decimal
	if err := c.client.GetJSON(ctx, "/data/price", query, &resp); err != nil {
		return decimal.Zero, err
	}
	usd, ok := resp["USD"]
	if !ok {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(c.Name(), "/data/price", "no USD price for "+asset)
	}
	return usd, nil
}

func usdField(provider, endpoint string, resp map[string]map[string]decimal.Decimal, asset string) (decimal.Decimal, error) {
	usd, ok := resp[asset]["USD"]
	if !ok {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(provider, endpoint, "no USD price for "+asset)
	}
	return usd, nil
}
