package adapter

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/stream"
	"github.com/chain-ledger/internal/types"
)

// Token is an ERC-20 contract tracked as its own category
type Token struct {
	Category types.Category
	Asset    string
	ChainID  int
	Contract string
	// Decimals scales balances. History uses the tokenDecimal reported with
	// each transfer and falls back to this value.
	Decimals int32
}

// Tokens lists the ERC-20 categories
var Tokens = []Token{
	{Category: types.CategoryAPI3, Asset: "API3", ChainID: ChainIDEthereum, Contract: "0x0b38210ea11411557c13457d4da7dc6ea731b88a", Decimals: 18},
	{Category: types.CategoryStETH, Asset: "stETH", ChainID: ChainIDEthereum, Contract: "0xae7ab96520de3a18e5e111b5eaab095312d7fe84", Decimals: 18},
	{Category: types.CategoryUSDT, Asset: "USDT", ChainID: ChainIDEthereum, Contract: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
	{Category: types.CategoryUSDC, Asset: "USDC", ChainID: ChainIDEthereum, Contract: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
	{Category: types.CategoryUSDTPolygon, Asset: "USDT", ChainID: ChainIDPolygon, Contract: "0xc2132d05d31c914a87c6611c10748aeb04b58e8f", Decimals: 6},
}

const assetETH = "ETH"

// Row kinds. Normal transactions sort before internal ones of the same
// timestamp and index.
const (
	kindNormal = iota
	kindInternal
)

// ethKey orders Etherscan rows deterministically
type ethKey struct {
	timestamp int64
	kind      int
	index     int64
	sub       int64
}

func (k ethKey) less(o ethKey) bool {
	if k.timestamp != o.timestamp {
		return k.timestamp < o.timestamp
	}
	if k.kind != o.kind {
		return k.kind < o.kind
	}
	if k.index != o.index {
		return k.index < o.index
	}
	return k.sub < o.sub
}

type ethRow struct {
	key      ethKey
	movement types.SignedMovement
}

// newestFirst sorts rows ascending by key and returns their movements reversed
func newestFirst(rows []ethRow) []types.SignedMovement {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].key.less(rows[j].key) })
	out := make([]types.SignedMovement, len(rows))
	for i, r := range rows {
		out[i] = r.movement
	}
	return stream.Reverse(out)
}

func parseAccount(account string) (common.Address, error) {
	account = strings.TrimSpace(account)
	if !common.IsHexAddress(account) {
		return common.Address{}, errors.NewInvalidAccountError(account, "not a hex address")
	}
	return common.HexToAddress(account), nil
}

func sameAddress(raw string, addr common.Address) bool {
	return raw != "" && common.IsHexAddress(raw) && common.HexToAddress(raw) == addr
}

// signedValue signs v by the direction of the transfer relative to addr.
// A transfer to self nets to zero.
func signedValue(v decimal.Decimal, from, to bool) decimal.Decimal {
	switch {
	case from && !to:
		return v.Neg()
	case to && !from:
		return v
	default:
		return decimal.Zero
	}
}

func parseIndex(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// EthereumAdapter reconstructs native ETH history from normal and internal
// transaction lists
type EthereumAdapter struct {
	etherscan *EtherscanClient
	prices    PriceSource
}

// NewEthereumAdapter creates an ETH adapter
func NewEthereumAdapter(etherscan *EtherscanClient, prices PriceSource) *EthereumAdapter {
	return &EthereumAdapter{etherscan: etherscan, prices: prices}
}

func (a *EthereumAdapter) Category() types.Category { return types.CategoryETH }

func (a *EthereumAdapter) Asset() string { return assetETH }

// GetHistory merges txlist and txlistinternal. Gas is charged on normal
// transactions sent by the account, so a self-transfer stays as a fee-only row.
func (a *EthereumAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	address := strings.ToLower(addr.Hex())

	normal, err := a.etherscan.FetchList(ctx, ChainIDEthereum, "txlist", address, nil)
	if err != nil {
		return nil, err
	}
	internal, err := a.etherscan.FetchList(ctx, ChainIDEthereum, "txlistinternal", address, nil)
	if err != nil {
		return nil, err
	}

	rows := make([]ethRow, 0, len(normal)+len(internal))
	for _, tx := range normal {
		if row, ok := ethereumRow(ctx, tx, addr, kindNormal, parseIndex(tx.TransactionIndex)); ok {
			rows = append(rows, row)
		}
	}

	// Internal calls of one transaction are ordered by their position in the list
	traceIndexMap := make(map[string]int64)
	for _, tx := range internal {
		idx := traceIndexMap[tx.Hash]
		traceIndexMap[tx.Hash]++
		if row, ok := ethereumRow(ctx, tx, addr, kindInternal, idx); ok {
			rows = append(rows, row)
		}
	}

	return priceDaily(ctx, a.prices, assetETH, finalize(newestFirst(rows)))
}

func ethereumRow(ctx context.Context, tx EtherscanTransaction, addr common.Address, kind int, index int64) (ethRow, bool) {
	ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
	if err != nil {
		skipRecord(ctx, types.CategoryETH, tx.Hash, "invalid timeStamp")
		return ethRow{}, false
	}

	value := decimal.Zero
	if tx.IsError != "1" {
		value, err = types.FromBaseUnits(tx.Value, types.DecimalsETH)
		if err != nil {
			skipRecord(ctx, types.CategoryETH, tx.Hash, "invalid value")
			return ethRow{}, false
		}
	}

	from := sameAddress(tx.From, addr)
	to := sameAddress(tx.To, addr)

	fee := decimal.Zero
	if kind == kindNormal && from {
		gasUsed, err1 := decimal.NewFromString(tx.GasUsed)
		gasPrice, err2 := decimal.NewFromString(tx.GasPrice)
		if err1 != nil || err2 != nil {
			skipRecord(ctx, types.CategoryETH, tx.Hash, "invalid gas fields")
			return ethRow{}, false
		}
		fee = gasUsed.Mul(gasPrice).Shift(-types.DecimalsETH).Neg()
	}

	return ethRow{
		key: ethKey{timestamp: ts, kind: kind, index: index},
		movement: types.SignedMovement{
			Timestamp:    time.Unix(ts, 0).UTC(),
			ExternalID:   tx.Hash,
			NativeAmount: signedValue(value, from, to),
			Fee:          fee,
		},
	}, true
}

// GetBalance returns the latest ETH balance
func (a *EthereumAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	addr, err := parseAccount(address)
	if err != nil {
		return decimal.Zero, err
	}
	wei, err := a.etherscan.Balance(ctx, ChainIDEthereum, strings.ToLower(addr.Hex()))
	if err != nil {
		return decimal.Zero, err
	}
	return wei.Shift(-types.DecimalsETH), nil
}

// TokenAdapter reconstructs the history of one ERC-20 token
type TokenAdapter struct {
	etherscan *EtherscanClient
	token     Token
	prices    PriceSource
}

// NewTokenAdapter creates an adapter for token
func NewTokenAdapter(etherscan *EtherscanClient, token Token, prices PriceSource) *TokenAdapter {
	return &TokenAdapter{etherscan: etherscan, token: token, prices: prices}
}

func (a *TokenAdapter) Category() types.Category { return a.token.Category }

func (a *TokenAdapter) Asset() string { return a.token.Asset }

// GetHistory reads tokentx filtered by the token contract. Gas is paid in
// the native asset, so token rows carry no fee.
func (a *TokenAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	addr, err := parseAccount(account)
	if err != nil {
		return nil, err
	}
	address := strings.ToLower(addr.Hex())

	transfers, err := a.etherscan.FetchList(ctx, a.token.ChainID, "tokentx", address, url.Values{
		"contractaddress": {a.token.Contract},
	})
	if err != nil {
		return nil, err
	}

	rows := make([]ethRow, 0, len(transfers))
	for _, tx := range transfers {
		ts, err := strconv.ParseInt(tx.TimeStamp, 10, 64)
		if err != nil {
			skipRecord(ctx, a.token.Category, tx.Hash, "invalid timeStamp")
			continue
		}
		decimals := a.token.Decimals
		if d, err := strconv.ParseInt(tx.TokenDecimal, 10, 32); err == nil {
			decimals = int32(d)
		}
		value, err := types.FromBaseUnits(tx.Value, decimals)
		if err != nil {
			skipRecord(ctx, a.token.Category, tx.Hash, "invalid value")
			continue
		}
		rows = append(rows, ethRow{
			key: ethKey{timestamp: ts, kind: kindNormal, index: parseIndex(tx.TransactionIndex), sub: parseIndex(tx.LogIndex)},
			movement: types.SignedMovement{
				Timestamp:    time.Unix(ts, 0).UTC(),
				ExternalID:   tx.Hash,
				NativeAmount: signedValue(value, sameAddress(tx.From, addr), sameAddress(tx.To, addr)),
				Fee:          decimal.Zero,
			},
		})
	}

	return priceDaily(ctx, a.prices, a.token.Asset, finalize(newestFirst(rows)))
}

// GetBalance returns the latest token balance
func (a *TokenAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	addr, err := parseAccount(address)
	if err != nil {
		return decimal.Zero, err
	}
	raw, err := a.etherscan.TokenBalance(ctx, a.token.ChainID, a.token.Contract, strings.ToLower(addr.Hex()))
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Shift(-a.token.Decimals), nil
}
