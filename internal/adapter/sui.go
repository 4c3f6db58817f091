package adapter

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/logging"
	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/types"
	"github.com/chain-ledger/internal/upstream"
)

const (
	suiPageSize = 50
	suiMaxPages = 100000
	assetSUI    = "SUI"

	// SuiCoinType is the coin type of native SUI balance changes
	SuiCoinType = "0x2::sui::SUI"
)

type suiBalanceChange struct {
	CoinType string          `json:"coinType"`
	Amount   decimal.Decimal `json:"amount"`
	Owner    struct {
		AddressOwner string `json:"AddressOwner"`
	} `json:"owner"`
}

type suiTransactionBlock struct {
	Digest         string             `json:"digest"`
	TimestampMs    decimal.Decimal    `json:"timestampMs"`
	BalanceChanges []suiBalanceChange `json:"balanceChanges"`
}

type suiPage struct {
	Data        []suiTransactionBlock `json:"data"`
	NextCursor  *string               `json:"nextCursor"`
	HasNextPage bool                  `json:"hasNextPage"`
}

// SuiAdapter reconstructs native SUI history from transaction block
// balance changes
type SuiAdapter struct {
	rpc      *upstream.Client
	balances *CryptoAPIsClient
	prices   PriceSource
}

// NewSuiAdapter creates a SUI adapter
func NewSuiAdapter(rpc *upstream.Client, balances *CryptoAPIsClient, prices PriceSource) *SuiAdapter {
	return &SuiAdapter{rpc: rpc, balances: balances, prices: prices}
}

func (a *SuiAdapter) Category() types.Category { return types.CategorySUI }

func (a *SuiAdapter) Asset() string { return assetSUI }

func (a *SuiAdapter) queryBlocks(ctx context.Context, filter map[string]interface{}) ([]suiTransactionBlock, error) {
	cfg := pagination.Config{
		Style:    pagination.Cursor,
		PageSize: suiPageSize,
		MaxPages: suiMaxPages,
		Endpoint: "sui/suix_queryTransactionBlocks",
	}
	return pagination.Collect(ctx, cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[suiTransactionBlock], error) {
		var cursor interface{}
		if req.Cursor != "" {
			cursor = req.Cursor
		}
		query := map[string]interface{}{
			"filter": filter,
			"options": map[string]bool{
				"showBalanceChanges": true,
				"showEffects":        false,
				"showEvents":         false,
				"showInput":          false,
				"showObjectChanges":  false,
				"showRawInput":       false,
			},
		}
		var page suiPage
		if err := a.rpc.Call(ctx, "suix_queryTransactionBlocks", []interface{}{query, cursor, req.PageSize, true}, &page); err != nil {
			return pagination.Page[suiTransactionBlock]{}, err
		}
		next := ""
		if page.NextCursor != nil {
			next = *page.NextCursor
		}
		return pagination.Page[suiTransactionBlock]{Items: page.Data, Next: next, HasMore: page.HasNextPage}, nil
	})
}

// isUnsupportedFromOrTo matches nodes that reject the combined address filter
func isUnsupportedFromOrTo(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "FromOrToAddress") && strings.Contains(strings.ToLower(msg), "not supported")
}

// blocks queries FromOrToAddress. Nodes that do not support it are queried
// with FromAddress and ToAddress instead and the union is deduped by digest.
func (a *SuiAdapter) blocks(ctx context.Context, address string) ([]suiTransactionBlock, error) {
	blocks, err := a.queryBlocks(ctx, map[string]interface{}{
		"FromOrToAddress": map[string]string{"addr": address},
	})
	if err == nil {
		return blocks, nil
	}
	if !isUnsupportedFromOrTo(err) {
		return nil, err
	}
	unsupported := errors.NewUnsupportedFilterError(a.rpc.Provider(), "FromOrToAddress", err)
	logging.FromContext(ctx).WithError(unsupported).Debug("falling back to FromAddress and ToAddress queries")

	var from, to []suiTransactionBlock
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		from, err = a.queryBlocks(gctx, map[string]interface{}{"FromAddress": address})
		return err
	})
	g.Go(func() error {
		var err error
		to, err = a.queryBlocks(gctx, map[string]interface{}{"ToAddress": address})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(from)+len(to))
	var out []suiTransactionBlock
	for _, b := range append(from, to...) {
		if !seen[b.Digest] {
			seen[b.Digest] = true
			out = append(out, b)
		}
	}
	return out, nil
}

// GetHistory sums the SUI balance changes owned by account per transaction block
func (a *SuiAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	address := strings.TrimSpace(account)
	if address == "" {
		return nil, nil
	}
	blocks, err := a.blocks(ctx, address)
	if err != nil {
		return nil, err
	}

	var movements []types.SignedMovement
	for _, b := range blocks {
		ms := b.TimestampMs.IntPart()
		if ms == 0 {
			continue
		}
		net := decimal.Zero
		for _, c := range b.BalanceChanges {
			if c.CoinType == SuiCoinType && c.Owner.AddressOwner == address {
				net = net.Add(c.Amount)
			}
		}
		if net.IsZero() {
			continue
		}
		movements = append(movements, types.SignedMovement{
			Timestamp:    time.UnixMilli(ms).UTC(),
			ExternalID:   b.Digest,
			NativeAmount: net.Shift(-types.DecimalsSUI),
			Fee:          decimal.Zero,
		})
	}

	return priceDaily(ctx, a.prices, assetSUI, finalize(movements))
}

// GetBalance returns the confirmed SUI balance of address
func (a *SuiAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	mist, err := a.balances.ConfirmedBalance(ctx, blockchainSui, address)
	if err != nil {
		return decimal.Zero, err
	}
	return mist.Shift(-types.DecimalsSUI), nil
}
