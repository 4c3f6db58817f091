package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/types"
	"github.com/chain-ledger/internal/upstream"
)

const (
	subscanPageSize = 100
	subscanMaxPages = 100000
	assetDOT        = "DOT"
)

type subscanTransfer struct {
	BlockTimestamp int64  `json:"block_timestamp"`
	ExtrinsicHash  string `json:"extrinsic_hash"`
	Hash           string `json:"hash"`
	From           string `json:"from"`
	To             string `json:"to"`
	Amount         string `json:"amount"`
	AssetSymbol    string `json:"asset_symbol"`
}

type subscanEnvelope[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type subscanTransfers struct {
	Count     int               `json:"count"`
	Transfers []subscanTransfer `json:"transfers"`
}

type subscanSearch struct {
	Account struct {
		Balance string `json:"balance"`
	} `json:"account"`
}

// PolkadotAdapter reconstructs DOT transfers from Subscan
type PolkadotAdapter struct {
	subscan *upstream.Client
	prices  PriceSource
}

// NewPolkadotAdapter creates a DOT adapter
func NewPolkadotAdapter(subscan *upstream.Client, prices PriceSource) *PolkadotAdapter {
	return &PolkadotAdapter{subscan: subscan, prices: prices}
}

func (a *PolkadotAdapter) Category() types.Category { return types.CategoryDOT }

func (a *PolkadotAdapter) Asset() string { return assetDOT }

func subscanPost[T any](ctx context.Context, c *upstream.Client, path string, body interface{}) (T, error) {
	var resp subscanEnvelope[T]
	if err := c.PostJSON(ctx, path, body, &resp); err != nil {
		return resp.Data, err
	}
	if resp.Code != 0 {
		return resp.Data, errors.NewUpstreamEnvelopeError(c.Provider(), path, fmt.Sprintf("code %d: %s", resp.Code, resp.Message))
	}
	return resp.Data, nil
}

// GetHistory pages through the transfers of account. Amounts are already
// denominated in DOT.
func (a *PolkadotAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	address := strings.TrimSpace(account)
	if address == "" {
		return nil, nil
	}

	cfg := pagination.Config{
		Style:     pagination.Offset,
		PageSize:  subscanPageSize,
		FirstPage: 0,
		MaxPages:  subscanMaxPages,
		Endpoint:  "subscan/transfers",
	}
	transfers, err := pagination.Collect(ctx, cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[subscanTransfer], error) {
		data, err := subscanPost[subscanTransfers](ctx, a.subscan, "/api/v2/scan/transfers", map[string]interface{}{
			"address": address,
			"page":    req.Page,
			"row":     req.PageSize,
		})
		return pagination.Page[subscanTransfer]{Items: data.Transfers}, err
	})
	if err != nil {
		return nil, err
	}

	var movements []types.SignedMovement
	for _, t := range transfers {
		if t.AssetSymbol != "" && t.AssetSymbol != assetDOT {
			continue
		}
		id := t.ExtrinsicHash
		if id == "" {
			id = t.Hash
		}
		amount := decimal.Zero
		if t.Amount != "" {
			amount, err = decimal.NewFromString(t.Amount)
			if err != nil {
				skipRecord(ctx, types.CategoryDOT, id, "invalid amount")
				continue
			}
		}
		if t.From == "" || t.To == "" {
			continue
		}
		net := signedValue(amount, t.From == address, t.To == address)
		if net.IsZero() || t.BlockTimestamp == 0 {
			continue
		}
		movements = append(movements, types.SignedMovement{
			Timestamp:    time.Unix(t.BlockTimestamp, 0).UTC(),
			ExternalID:   id,
			NativeAmount: net,
			Fee:          decimal.Zero,
		})
	}

	return priceDaily(ctx, a.prices, assetDOT, finalize(movements))
}

// GetBalance returns the DOT balance reported by the account search
func (a *PolkadotAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	data, err := subscanPost[subscanSearch](ctx, a.subscan, "/api/v2/scan/search", map[string]string{"key": address})
	if err != nil {
		return decimal.Zero, err
	}
	if data.Account.Balance == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(data.Account.Balance)
}
