package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/upstream"
)

const copperWalletsPath = "/platform/wallets"

// CopperWallet is one custodial wallet balance
type CopperWallet struct {
	WalletID     string          `json:"walletId"`
	Currency     string          `json:"currency"`
	MainCurrency string          `json:"mainCurrency"`
	Balance      decimal.Decimal `json:"balance"`
}

// CopperClient reads wallet balances from the Copper platform API
type CopperClient struct {
	client    *upstream.Client
	apiKey    string
	apiSecret string
	now       func() time.Time
}

// NewCopperClient creates a Copper client signing with apiKey and apiSecret
func NewCopperClient(client *upstream.Client, apiKey, apiSecret string) *CopperClient {
	return &CopperClient{client: client, apiKey: apiKey, apiSecret: apiSecret, now: time.Now}
}

// WithClock replaces the clock used for request timestamps
func (c *CopperClient) WithClock(now func() time.Time) *CopperClient {
	c.now = now
	return c
}

// CopperSignature returns hex(HMAC-SHA256(secret, timestamp+method+path+body))
func CopperSignature(secret, timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + method + path + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Wallets returns every wallet of the account in one signed snapshot
func (c *CopperClient) Wallets(ctx context.Context) ([]CopperWallet, error) {
	ts := strconv.FormatInt(c.now().UnixMilli(), 10)
	header := http.Header{}
	header.Set("X-Signature", CopperSignature(c.apiSecret, ts, http.MethodGet, copperWalletsPath, ""))
	header.Set("X-Timestamp", ts)
	header.Set("Authorization", "ApiKey "+c.apiKey)

	var resp struct {
		Wallets []CopperWallet `json:"wallets"`
	}
	if err := c.client.Do(ctx, http.MethodGet, copperWalletsPath, nil, nil, header, &resp); err != nil {
		return nil, err
	}
	return resp.Wallets, nil
}

// WalletsByID indexes wallets by walletId
func WalletsByID(wallets []CopperWallet) map[string]CopperWallet {
	out := make(map[string]CopperWallet, len(wallets))
	for _, w := range wallets {
		out[w.WalletID] = w
	}
	return out
}
