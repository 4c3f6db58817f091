package adapter

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/types"
	"github.com/chain-ledger/internal/upstream"
)

const (
	solanaSignaturePageSize = 1000
	solanaMaxPages          = 100000
	assetSOL                = "SOL"
	assetUSDC               = "USDC"

	// USDCMint is the USDC SPL token mint on Solana mainnet
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type solanaSignature struct {
	Signature string `json:"signature"`
	BlockTime *int64 `json:"blockTime"`
}

// accountKey decodes both legacy string keys and jsonParsed key objects
type accountKey string

func (k *accountKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*k = accountKey(s)
		return nil
	}
	var obj struct {
		Pubkey string `json:"pubkey"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*k = accountKey(obj.Pubkey)
	return nil
}

type solanaTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount   string `json:"amount"`
		Decimals int32  `json:"decimals"`
	} `json:"uiTokenAmount"`
}

type solanaTransaction struct {
	BlockTime *int64 `json:"blockTime"`
	Meta      *struct {
		PreBalances       []decimal.Decimal    `json:"preBalances"`
		PostBalances      []decimal.Decimal    `json:"postBalances"`
		PreTokenBalances  []solanaTokenBalance `json:"preTokenBalances"`
		PostTokenBalances []solanaTokenBalance `json:"postTokenBalances"`
	} `json:"meta"`
	Transaction struct {
		Message struct {
			AccountKeys []accountKey `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
}

// solanaSignatures enumerates the signatures of account with the before
// marker. The result keeps first-seen order and holds each signature once.
func solanaSignatures(ctx context.Context, rpc *upstream.Client, account string) ([]solanaSignature, error) {
	cfg := pagination.Config{
		Style:           pagination.Cursor,
		PageSize:        solanaSignaturePageSize,
		MaxPages:        solanaMaxPages,
		StopOnShortPage: true,
		Endpoint:        "solana/getSignaturesForAddress",
	}
	all, err := pagination.Collect(ctx, cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[solanaSignature], error) {
		opts := map[string]interface{}{"limit": req.PageSize}
		if req.Cursor != "" {
			opts["before"] = req.Cursor
		}
		var page []solanaSignature
		if err := rpc.Call(ctx, "getSignaturesForAddress", []interface{}{account, opts}, &page); err != nil {
			return pagination.Page[solanaSignature]{}, err
		}
		next := ""
		if len(page) > 0 {
			next = page[len(page)-1].Signature
		}
		return pagination.Page[solanaSignature]{Items: page, Next: next, HasMore: true}, nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, s := range all {
		if seen[s.Signature] {
			continue
		}
		seen[s.Signature] = true
		out = append(out, s)
	}
	return out, nil
}

// solanaTransactionBySignature returns nil when the node no longer has the transaction
func solanaTransactionBySignature(ctx context.Context, rpc *upstream.Client, signature string) (*solanaTransaction, error) {
	var tx *solanaTransaction
	err := rpc.Call(ctx, "getTransaction", []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"maxSupportedTransactionVersion": 0,
		},
	}, &tx)
	return tx, err
}

func signatureTime(sig solanaSignature, tx *solanaTransaction) (time.Time, bool) {
	switch {
	case sig.BlockTime != nil:
		return time.Unix(*sig.BlockTime, 0).UTC(), true
	case tx.BlockTime != nil:
		return time.Unix(*tx.BlockTime, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}

// SolanaAdapter reconstructs native SOL history from pre and post balances
type SolanaAdapter struct {
	rpc    *upstream.Client
	prices PriceSource
}

// NewSolanaAdapter creates a SOL adapter
func NewSolanaAdapter(rpc *upstream.Client, prices PriceSource) *SolanaAdapter {
	return &SolanaAdapter{rpc: rpc, prices: prices}
}

func (a *SolanaAdapter) Category() types.Category { return types.CategorySOL }

func (a *SolanaAdapter) Asset() string { return assetSOL }

// GetHistory fetches every signature of the owner, then each parsed
// transaction, and keeps the lamport change of the owner's account key
func (a *SolanaAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	owner := strings.TrimSpace(account)
	if owner == "" {
		return nil, nil
	}
	sigs, err := solanaSignatures(ctx, a.rpc, owner)
	if err != nil {
		return nil, err
	}

	var movements []types.SignedMovement
	for _, sig := range sigs {
		tx, err := solanaTransactionBySignature(ctx, a.rpc, sig.Signature)
		if err != nil {
			return nil, err
		}
		if tx == nil || tx.Meta == nil {
			continue
		}
		net, ok := lamportChange(tx, owner)
		if !ok || net.IsZero() {
			continue
		}
		ts, ok := signatureTime(sig, tx)
		if !ok {
			skipRecord(ctx, types.CategorySOL, sig.Signature, "missing blockTime")
			continue
		}
		movements = append(movements, types.SignedMovement{
			Timestamp:    ts,
			ExternalID:   sig.Signature,
			NativeAmount: net.Shift(-types.DecimalsSOL),
			Fee:          decimal.Zero,
		})
	}

	return priceDaily(ctx, a.prices, assetSOL, finalize(movements))
}

// lamportChange returns post minus pre balance of owner. ok is false when
// owner is not among the account keys.
func lamportChange(tx *solanaTransaction, owner string) (decimal.Decimal, bool) {
	idx := -1
	for i, k := range tx.Transaction.Message.AccountKeys {
		if string(k) == owner {
			idx = i
			break
		}
	}
	if idx < 0 {
		return decimal.Zero, false
	}
	at := func(list []decimal.Decimal) decimal.Decimal {
		if idx < len(list) {
			return list[idx]
		}
		return decimal.Zero
	}
	return at(tx.Meta.PostBalances).Sub(at(tx.Meta.PreBalances)), true
}

// GetBalance returns the SOL balance of address
func (a *SolanaAdapter) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Value decimal.Decimal `json:"value"`
	}
	if err := a.rpc.Call(ctx, "getBalance", []interface{}{address}, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Value.Shift(-types.DecimalsSOL), nil
}

type tokenAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data struct {
			Parsed struct {
				Info struct {
					TokenAmount struct {
						Amount   string `json:"amount"`
						Decimals int32  `json:"decimals"`
					} `json:"tokenAmount"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"account"`
}

// USDCSolanaAdapter reconstructs USDC history across every USDC token
// account of an owner
type USDCSolanaAdapter struct {
	pool   *EndpointPool
	prices PriceSource
}

// NewUSDCSolanaAdapter creates a USDC-SPL adapter
func NewUSDCSolanaAdapter(pool *EndpointPool, prices PriceSource) *USDCSolanaAdapter {
	return &USDCSolanaAdapter{pool: pool, prices: prices}
}

func (a *USDCSolanaAdapter) Category() types.Category { return types.CategoryUSDCSolana }

func (a *USDCSolanaAdapter) Asset() string { return assetUSDC }

func (a *USDCSolanaAdapter) tokenAccounts(ctx context.Context, rpc *upstream.Client, owner string) ([]tokenAccount, error) {
	var resp struct {
		Value []tokenAccount `json:"value"`
	}
	err := rpc.Call(ctx, "getTokenAccountsByOwner", []interface{}{
		owner,
		map[string]string{"mint": USDCMint},
		map[string]string{"encoding": "jsonParsed"},
	}, &resp)
	return resp.Value, err
}

// GetHistory runs the whole fetch against the primary RPC and repeats it
// on the fallback when the primary refuses service
func (a *USDCSolanaAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	owner := strings.TrimSpace(account)
	if owner == "" {
		return nil, nil
	}

	var movements []types.SignedMovement
	err := a.pool.Do(ctx, func(ctx context.Context, rpc *upstream.Client) error {
		var err error
		movements, err = a.history(ctx, rpc, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return priceDaily(ctx, a.prices, assetUSDC, finalize(movements))
}

func (a *USDCSolanaAdapter) history(ctx context.Context, rpc *upstream.Client, owner string) ([]types.SignedMovement, error) {
	accounts, err := a.tokenAccounts(ctx, rpc, owner)
	if err != nil {
		return nil, err
	}

	var sigs []solanaSignature
	seen := make(map[string]bool)
	for _, acc := range accounts {
		accSigs, err := solanaSignatures(ctx, rpc, acc.Pubkey)
		if err != nil {
			return nil, err
		}
		for _, s := range accSigs {
			if !seen[s.Signature] {
				seen[s.Signature] = true
				sigs = append(sigs, s)
			}
		}
	}

	var movements []types.SignedMovement
	for _, sig := range sigs {
		tx, err := solanaTransactionBySignature(ctx, rpc, sig.Signature)
		if err != nil {
			return nil, err
		}
		if tx == nil || tx.Meta == nil {
			continue
		}
		net, err := tokenChange(tx, owner, USDCMint)
		if err != nil {
			skipRecord(ctx, types.CategoryUSDCSolana, sig.Signature, "invalid token amount")
			continue
		}
		if net.IsZero() {
			continue
		}
		ts, ok := signatureTime(sig, tx)
		if !ok {
			skipRecord(ctx, types.CategoryUSDCSolana, sig.Signature, "missing blockTime")
			continue
		}
		movements = append(movements, types.SignedMovement{
			Timestamp:    ts,
			ExternalID:   sig.Signature,
			NativeAmount: net.Shift(-types.DecimalsUSDC),
			Fee:          decimal.Zero,
		})
	}
	return movements, nil
}

// tokenChange sums post minus pre token amounts of the owner's mint
// accounts, pairing entries by account index. An account with no post
// entry was closed in the transaction and counts as drained.
func tokenChange(tx *solanaTransaction, owner, mint string) (decimal.Decimal, error) {
	pre := make(map[int]solanaTokenBalance)
	for _, b := range tx.Meta.PreTokenBalances {
		if b.Mint == mint && b.Owner == owner {
			pre[b.AccountIndex] = b
		}
	}

	parse := func(s string) (decimal.Decimal, error) {
		if s == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(s)
	}

	net := decimal.Zero
	for _, post := range tx.Meta.PostTokenBalances {
		if post.Mint != mint || post.Owner != owner {
			continue
		}
		after, err := parse(post.UITokenAmount.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		before, err := parse(pre[post.AccountIndex].UITokenAmount.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		net = net.Add(after.Sub(before))
		delete(pre, post.AccountIndex)
	}
	for _, closed := range pre {
		before, err := parse(closed.UITokenAmount.Amount)
		if err != nil {
			return decimal.Zero, err
		}
		net = net.Sub(before)
	}
	return net, nil
}

// GetBalance sums the USDC token accounts of owner
func (a *USDCSolanaAdapter) GetBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	total := decimal.Zero
	err := a.pool.Do(ctx, func(ctx context.Context, rpc *upstream.Client) error {
		accounts, err := a.tokenAccounts(ctx, rpc, owner)
		if err != nil {
			return err
		}
		total = decimal.Zero
		for _, acc := range accounts {
			raw, err := types.FromBaseUnits(acc.Account.Data.Parsed.Info.TokenAmount.Amount, types.DecimalsUSDC)
			if err != nil {
				return err
			}
			total = total.Add(raw)
		}
		return nil
	})
	return total, err
}
