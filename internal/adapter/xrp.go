package adapter

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/types"
	"github.com/chain-ledger/internal/upstream"
)

const (
	xrpPageSize = 200
	xrpMaxPages = 100000
	assetXRP    = "XRP"

	// rippleEpochOffset is the unix time of 2000-01-01T00:00:00Z
	rippleEpochOffset = 946684800
)

type xrpTransaction struct {
	Account     string          `json:"Account"`
	Destination string          `json:"Destination"`
	Amount      json.RawMessage `json:"Amount"`
	Date        json.RawMessage `json:"date"`
	Hash        string          `json:"hash"`
}

type xrpTransactionsResponse struct {
	Result       string `json:"result"`
	Marker       string `json:"marker"`
	Transactions []struct {
		Tx xrpTransaction `json:"tx"`
	} `json:"transactions"`
}

// XRPAdapter reconstructs XRP payments from XRPSCAN
type XRPAdapter struct {
	xrpscan  *upstream.Client
	balances *CryptoAPIsClient
	prices   PriceSource
}

// NewXRPAdapter creates an XRP adapter
func NewXRPAdapter(xrpscan *upstream.Client, balances *CryptoAPIsClient, prices PriceSource) *XRPAdapter {
	return &XRPAdapter{xrpscan: xrpscan, balances: balances, prices: prices}
}

func (a *XRPAdapter) Category() types.Category { return types.CategoryXRP }

func (a *XRPAdapter) Asset() string { return assetXRP }

// GetHistory pages through the Payment transactions of account, newest first
func (a *XRPAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	address := strings.TrimSpace(account)
	if address == "" {
		return nil, nil
	}

	cfg := pagination.Config{
		Style:    pagination.Cursor,
		PageSize: xrpPageSize,
		MaxPages: xrpMaxPages,
		Endpoint: "xrpscan/account/transactions",
	}
	path := "/account/" + url.PathEscape(address) + "/transactions"
	txs, err := pagination.Collect(ctx, cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[xrpTransaction], error) {
		q := url.Values{
			"type":       {"Payment"},
			"limit":      {strconv.Itoa(req.PageSize)},
			"descending": {"true"},
		}
		if req.Cursor != "" {
			q.Set("marker", req.Cursor)
		}
		var resp xrpTransactionsResponse
		if err := a.xrpscan.GetJSON(ctx, path, q, &resp); err != nil {
			return pagination.Page[xrpTransaction]{}, err
		}
		if resp.Result != "success" {
			return pagination.Page[xrpTransaction]{}, errors.NewUpstreamEnvelopeError(a.xrpscan.Provider(), "account/transactions", "result "+strconv.Quote(resp.Result))
		}
		items := make([]xrpTransaction, len(resp.Transactions))
		for i, t := range resp.Transactions {
			items[i] = t.Tx
		}
		return pagination.Page[xrpTransaction]{Items: items, Next: resp.Marker, HasMore: true}, nil
	})
	if err != nil {
		return nil, err
	}

	var movements []types.SignedMovement
	for _, tx := range txs {
		drops, ok := xrpDrops(tx.Amount)
		if !ok {
			// issued currency payments carry an object amount
			continue
		}
		net := signedValue(drops, tx.Account == address, tx.Destination == address)
		if tx.Account == "" || tx.Destination == "" || net.IsZero() {
			continue
		}
		ts, ok := rippleTime(tx.Date)
		if !ok {
			skipRecord(ctx, types.CategoryXRP, tx.Hash, "missing date")
			continue
		}
		movements = append(movements, types.SignedMovement{
			Timestamp:    ts,
			ExternalID:   tx.Hash,
			NativeAmount: net.Shift(-types.DecimalsXRP),
			Fee:          decimal.Zero,
		})
	}

	return priceDaily(ctx, a.prices, assetXRP, finalize(movements))
}

// xrpDrops decodes a native amount in drops. ok is false for issued
// currency objects and unparsable strings.
func xrpDrops(raw json.RawMessage) (decimal.Decimal, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// rippleTime decodes either seconds since the Ripple epoch or an ISO string
func rippleTime(raw json.RawMessage) (time.Time, bool) {
	var secs int64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return time.Unix(secs+rippleEpochOffset, 0).UTC(), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// GetBalance returns the confirmed XRP balance of address
func (a *XRPAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	drops, err := a.balances.ConfirmedBalance(ctx, blockchainXRP, address)
	if err != nil {
		return decimal.Zero, err
	}
	return drops.Shift(-types.DecimalsXRP), nil
}
