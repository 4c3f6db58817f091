package adapter

import (
	"context"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/types"
	"github.com/chain-ledger/internal/upstream"
)

const (
	blockstreamPageSize = 25
	bitcoinMaxPages     = 100000
	assetBTC            = "BTC"
)

type blockstreamOutput struct {
	Address string `json:"scriptpubkey_address"`
	Value   int64  `json:"value"`
}

type blockstreamTx struct {
	Txid   string `json:"txid"`
	Status struct {
		Confirmed bool   `json:"confirmed"`
		BlockTime *int64 `json:"block_time"`
	} `json:"status"`
	Vin []struct {
		Prevout *blockstreamOutput `json:"prevout"`
	} `json:"vin"`
	Vout []blockstreamOutput `json:"vout"`
}

// BitcoinAdapter reads address history from a Blockstream compatible
// explorer and balances from blockchain.info
type BitcoinAdapter struct {
	explorer *upstream.Client
	balances *upstream.Client
	prices   PriceSource
}

// NewBitcoinAdapter creates a BTC adapter
func NewBitcoinAdapter(explorer, balances *upstream.Client, prices PriceSource) *BitcoinAdapter {
	return &BitcoinAdapter{explorer: explorer, balances: balances, prices: prices}
}

func (a *BitcoinAdapter) Category() types.Category { return types.CategoryBTC }

func (a *BitcoinAdapter) Asset() string { return assetBTC }

// GetHistory walks /address/{addr}/txs, then /txs/chain/{lastTxid} until a
// short page. The fee is already inside the vin/vout difference.
func (a *BitcoinAdapter) GetHistory(ctx context.Context, address string) ([]types.SignedMovement, error) {
	cfg := pagination.Config{
		Style:           pagination.Cursor,
		PageSize:        blockstreamPageSize,
		MaxPages:        bitcoinMaxPages,
		StopOnShortPage: true,
		Endpoint:        "blockstream/address/txs",
	}
	txs, err := pagination.Collect(ctx, cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[blockstreamTx], error) {
		path := "/address/" + url.PathEscape(address) + "/txs"
		if req.Cursor != "" {
			path += "/chain/" + req.Cursor
		}
		var page []blockstreamTx
		if err := a.explorer.GetJSON(ctx, path, nil, &page); err != nil {
			return pagination.Page[blockstreamTx]{}, err
		}
		next := ""
		if len(page) > 0 {
			next = page[len(page)-1].Txid
		}
		return pagination.Page[blockstreamTx]{Items: page, Next: next, HasMore: true}, nil
	})
	if err != nil {
		return nil, err
	}

	movements := make([]types.SignedMovement, 0, len(txs))
	for _, tx := range txs {
		if tx.Status.BlockTime == nil {
			skipRecord(ctx, types.CategoryBTC, tx.Txid, "missing block_time")
			continue
		}
		net := bitcoinNet(tx, address)
		if net == 0 {
			continue
		}
		movements = append(movements, types.SignedMovement{
			Timestamp:    time.Unix(*tx.Status.BlockTime, 0).UTC(),
			ExternalID:   tx.Txid,
			NativeAmount: decimal.NewFromInt(net).Shift(-types.DecimalsBTC),
			Fee:          decimal.Zero,
		})
	}

	return priceDaily(ctx, a.prices, assetBTC, finalize(movements))
}

// bitcoinNet returns satoshis received by address minus satoshis it spent
func bitcoinNet(tx blockstreamTx, address string) int64 {
	var net int64
	for _, out := range tx.Vout {
		if out.Address == address {
			net += out.Value
		}
	}
	for _, in := range tx.Vin {
		if in.Prevout != nil && in.Prevout.Address == address {
			net -= in.Prevout.Value
		}
	}
	return net
}

// GetBalance returns final_balance of blockchain.info /rawaddr
func (a *BitcoinAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		FinalBalance *int64 `json:"final_balance"`
	}
	if err := a.balances.GetJSON(ctx, "/rawaddr/"+url.PathEscape(address), nil, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.FinalBalance == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromInt(*resp.FinalBalance).Shift(-types.DecimalsBTC), nil
}
