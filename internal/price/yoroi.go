package price

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/upstream"
)

// Yoroi serves ADA prices at millisecond precision
type Yoroi struct {
	client *upstream.Client
}

// NewYoroi creates a Yoroi oracle
func NewYoroi(client *upstream.Client) *Yoroi {
	return &Yoroi{client: client}
}

// Name implements Oracle
func (y *Yoroi) Name() string {
	return "yoroi"
}

type yoroiTicker struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

func checkADA(asset string) error {
	if asset != AssetADA {
		return fmt.Errorf("yoroi only prices ADA, not %s", asset)
	}
	return nil
}

// PriceAt calls price/ADA/{unix ms}
func (y *Yoroi) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	if err := checkADA(asset); err != nil {
		return decimal.Zero, err
	}

	path := "/price/ADA/" + strconv.FormatInt(t.UnixMilli(), 10)
	var resp struct {
		Tickers []yoroiTicker `json:"tickers"`
	}
	if err := y.client.GetJSON(ctx, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if len(resp.Tickers) == 0 {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(y.Name(), path, "no ticker")
	}
	usd, ok := resp.Tickers[0].Prices["USD"]
	if !ok {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(y.Name(), path, "no USD price")
	}
	return usd, nil
}

// CurrentPrice calls price/ADA/current
func (y *Yoroi) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	if err := checkADA(asset); err != nil {
		return decimal.Zero, err
	}

	const path = "/price/ADA/current"
	var resp struct {
		Ticker yoroiTicker `json:"ticker"`
	}
	if err := y.client.GetJSON(ctx, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	usd, ok := resp.Ticker.Prices["USD"]
	if !ok {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(y.Name(), path, "no USD price")
	}
	return usd, nil
}
