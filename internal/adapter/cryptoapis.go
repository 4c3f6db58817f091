package adapter

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/upstream"
)

// CryptoAPIs blockchain identifiers
const (
	blockchainSui = "sui"
	blockchainXRP = "xrp-slice"
)

// CryptoAPIsClient reads confirmed balances for chains whose explorer has
// no balance endpoint
type CryptoAPIsClient struct {
	client *upstream.Client
}

// NewCryptoAPIsClient creates a balance client
func NewCryptoAPIsClient(client *upstream.Client) *CryptoAPIsClient {
	return &CryptoAPIsClient{client: client}
}

type cryptoAPIsBalance struct {
	Data struct {
		Item struct {
			ConfirmedBalance struct {
				Amount string `json:"amount"`
				Unit   string `json:"unit"`
			} `json:"confirmedBalance"`
		} `json:"item"`
	} `json:"data"`
}

// ConfirmedBalance returns the confirmed balance of address in base units
// of blockchain. A missing amount is reported as zero.
func (c *CryptoAPIsClient) ConfirmedBalance(ctx context.Context, blockchain, address string) (decimal.Decimal, error) {
	path := "/blockchain-data/" + blockchain + "/mainnet/addresses/" + url.PathEscape(address) + "/balance"
	var resp cryptoAPIsBalance
	if err := c.client.GetJSON(ctx, path, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	amount := resp.Data.Item.ConfirmedBalance.Amount
	if amount == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(amount)
}
