package adapter

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/stream"
	"github.com/chain-ledger/internal/types"
	"github.com/chain-ledger/internal/upstream"
)

const (
	blockfrostPageSize = 100
	blockfrostMaxPages = 21474836
	assetADA           = "ADA"
	unitLovelace       = "lovelace"
)

type blockfrostAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type utxoEntry struct {
	Address    string             `json:"address"`
	Amount     []blockfrostAmount `json:"amount"`
	Collateral bool               `json:"collateral"`
	Reference  bool               `json:"reference"`
}

type txUTXOs struct {
	Hash    string      `json:"hash"`
	Inputs  []utxoEntry `json:"inputs"`
	Outputs []utxoEntry `json:"outputs"`
}

type addressTx struct {
	TxHash    string `json:"tx_hash"`
	BlockTime int64  `json:"block_time"`
}

func lovelace(amounts []blockfrostAmount) (decimal.Decimal, error) {
	for _, a := range amounts {
		if a.Unit == unitLovelace {
			return decimal.NewFromString(a.Quantity)
		}
	}
	return decimal.Zero, nil
}

// blockfrostPaged lazily walks a count/page endpoint
func blockfrostPaged[T any](client *upstream.Client, path string, query url.Values, endpoint string) stream.Iterator[T] {
	cfg := pagination.Config{
		Style:     pagination.Offset,
		PageSize:  blockfrostPageSize,
		FirstPage: 1,
		MaxPages:  blockfrostMaxPages,
		Endpoint:  endpoint,
	}
	return pagination.Iterate(cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[T], error) {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("count", strconv.Itoa(req.PageSize))
		q.Set("page", strconv.Itoa(req.Page))
		var items []T
		if err := client.GetJSON(ctx, path, q, &items); err != nil {
			return pagination.Page[T]{}, err
		}
		return pagination.Page[T]{Items: items}, nil
	})
}

// CardanoAdapter reconstructs stake account and payment address history
// from Blockfrost
type CardanoAdapter struct {
	client *upstream.Client
	prices PriceSource
}

// NewCardanoAdapter creates an ADA adapter
func NewCardanoAdapter(client *upstream.Client, prices PriceSource) *CardanoAdapter {
	return &CardanoAdapter{client: client, prices: prices}
}

func (a *CardanoAdapter) Category() types.Category { return types.CategoryADA }

func (a *CardanoAdapter) Asset() string { return assetADA }

func isStakeKey(account string) bool { return strings.HasPrefix(account, "stake") }

func isPaymentAddress(account string) bool { return strings.HasPrefix(account, "addr1") }

// Addresses resolves a stake key to its derived payment addresses. A
// payment address resolves to itself.
func (a *CardanoAdapter) Addresses(ctx context.Context, account string) ([]string, error) {
	switch {
	case isStakeKey(account):
		type accountAddress struct {
			Address string `json:"address"`
		}
		it := blockfrostPaged[accountAddress](a.client, "/accounts/"+url.PathEscape(account)+"/addresses", nil, "blockfrost/accounts/addresses")
		entries, err := stream.Collect(ctx, it)
		if err != nil {
			return nil, err
		}
		addrs := make([]string, 0, len(entries))
		for _, e := range entries {
			addrs = append(addrs, e.Address)
		}
		return addrs, nil
	case isPaymentAddress(account):
		return []string{account}, nil
	default:
		return nil, errors.NewInvalidAccountError(account, "unexpected address prefix")
	}
}

// transactions merges the per-address transaction streams newest first.
// A transaction touching several addresses appears once.
func (a *CardanoAdapter) transactions(addrs []string) stream.Iterator[addressTx] {
	inputs := make([]stream.Iterator[addressTx], 0, len(addrs))
	for _, addr := range addrs {
		inputs = append(inputs, blockfrostPaged[addressTx](a.client,
			"/addresses/"+url.PathEscape(addr)+"/transactions",
			url.Values{"order": {"desc"}},
			"blockfrost/addresses/transactions"))
	}
	merged := stream.MergeDescending(func(tx addressTx) int64 { return tx.BlockTime }, inputs...)
	return skipUnhashed(stream.DedupeWithinRun(merged,
		func(tx addressTx) int64 { return tx.BlockTime },
		func(tx addressTx) string { return tx.TxHash }))
}

// skipUnhashed drops address transactions without a tx hash
func skipUnhashed(it stream.Iterator[addressTx]) stream.Iterator[addressTx] {
	return stream.Func[addressTx](func(ctx context.Context) (addressTx, bool, error) {
		for {
			tx, ok, err := it.Next(ctx)
			if err != nil || !ok || strings.TrimSpace(tx.TxHash) != "" {
				return tx, ok, err
			}
			skipRecord(ctx, types.CategoryADA, "block_time="+strconv.FormatInt(tx.BlockTime, 10), "missing tx hash")
		}
	})
}

func (a *CardanoAdapter) utxos(ctx context.Context, hash string) (txUTXOs, error) {
	var resp txUTXOs
	err := a.client.GetJSON(ctx, "/txs/"+url.PathEscape(hash)+"/utxos", nil, &resp)
	return resp, err
}

// labelFunds splits the lovelace of entries into the part held by the
// tracked set and the rest
func labelFunds(entries []utxoEntry, set map[string]bool) (internal, external decimal.Decimal, err error) {
	internal, external = decimal.Zero, decimal.Zero
	for _, e := range entries {
		ada, err := lovelace(e.Amount)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		if set[e.Address] {
			internal = internal.Add(ada)
		} else {
			external = external.Add(ada)
		}
	}
	return internal, external, nil
}

// cardanoMovement applies the accounting convention used for ADA ledgers:
// when the wallet receives more than it spends the difference is the amount
// and no fee is charged, otherwise the amount is what external parties
// received net and the whole fee is charged.
func cardanoMovement(utxos txUTXOs, set map[string]bool) (amount, fee decimal.Decimal, err error) {
	inInt, inExt, err := labelFunds(utxos.Inputs, set)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	outInt, outExt, err := labelFunds(utxos.Outputs, set)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	total := inInt.Add(inExt).Sub(outInt).Sub(outExt)

	if outInt.GreaterThan(inInt) {
		return outInt.Sub(inInt), decimal.Zero, nil
	}
	return inExt.Sub(outExt), total.Neg(), nil
}

// GetHistory walks the merged transaction stream and prices every row at
// its exact block time
func (a *CardanoAdapter) GetHistory(ctx context.Context, account string) ([]types.SignedMovement, error) {
	addrs, err := a.Addresses(ctx, account)
	if err != nil {
		return nil, err
	}
	set := addressSet(addrs)

	var movements []types.SignedMovement
	it := a.transactions(addrs)
	for {
		tx, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		utxos, err := a.utxos(ctx, tx.TxHash)
		if err != nil {
			return nil, err
		}
		amount, fee, err := cardanoMovement(utxos, set)
		if err != nil {
			skipRecord(ctx, types.CategoryADA, tx.TxHash, "invalid lovelace quantity")
			continue
		}

		m := types.SignedMovement{
			Timestamp:    time.Unix(tx.BlockTime, 0).UTC(),
			ExternalID:   tx.TxHash,
			NativeAmount: amount.Shift(-types.DecimalsADA),
			Fee:          fee.Shift(-types.DecimalsADA),
		}
		if m.IsZero() {
			continue
		}
		p, err := a.prices.At(ctx, assetADA, m.Timestamp)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m.WithPrice(p))
	}

	return finalize(movements), nil
}

// GetBalance returns the live balance of a stake key or payment address
func (a *CardanoAdapter) GetBalance(ctx context.Context, account string) (decimal.Decimal, error) {
	var raw decimal.Decimal
	switch {
	case isStakeKey(account):
		var resp struct {
			ControlledAmount string `json:"controlled_amount"`
		}
		if err := a.client.GetJSON(ctx, "/accounts/"+url.PathEscape(account), nil, &resp); err != nil {
			return decimal.Zero, err
		}
		if resp.ControlledAmount != "" {
			d, err := decimal.NewFromString(resp.ControlledAmount)
			if err != nil {
				return decimal.Zero, errors.NewUpstreamEnvelopeError(a.client.Provider(), "accounts", "invalid controlled_amount")
			}
			raw = d
		}
	case isPaymentAddress(account):
		var resp struct {
			Amount []blockfrostAmount `json:"amount"`
		}
		if err := a.client.GetJSON(ctx, "/addresses/"+url.PathEscape(account), nil, &resp); err != nil {
			return decimal.Zero, err
		}
		d, err := lovelace(resp.Amount)
		if err != nil {
			return decimal.Zero, errors.NewUpstreamEnvelopeError(a.client.Provider(), "addresses", "invalid lovelace quantity")
		}
		raw = d
	default:
		return decimal.Zero, errors.NewInvalidAccountError(account, "unexpected address prefix")
	}
	return raw.Shift(-types.DecimalsADA), nil
}

// DailySource prepares the daily balance report inputs of account
func (a *CardanoAdapter) DailySource(ctx context.Context, account string) (*CardanoDailySource, error) {
	addrs, err := a.Addresses(ctx, account)
	if err != nil {
		return nil, err
	}
	return &CardanoDailySource{adapter: a, account: account, addrs: addrs, set: addressSet(addrs)}, nil
}

// CardanoDailySource feeds the daily snapshot generator
type CardanoDailySource struct {
	adapter *CardanoAdapter
	account string
	addrs   []string
	set     map[string]bool
}

// LiveBalance returns the balance reported by the chain right now
func (s *CardanoDailySource) LiveBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.adapter.GetBalance(ctx, s.account)
}

// CurrentPrice returns the current ADA price
func (s *CardanoDailySource) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	return s.adapter.prices.Current(ctx, assetADA)
}

// DayPrice returns the ADA price at a day boundary
func (s *CardanoDailySource) DayPrice(ctx context.Context, boundary time.Time) (decimal.Decimal, error) {
	return s.adapter.prices.Daily(ctx, assetADA, boundary)
}

// Transactions streams the account transactions newest first. The wallet
// relative delta of each is only fetched when requested.
func (s *CardanoDailySource) Transactions() stream.Iterator[types.DailyEvent] {
	return stream.Map(s.adapter.transactions(s.addrs), func(ctx context.Context, tx addressTx) (types.DailyEvent, error) {
		hash := tx.TxHash
		return types.DailyEvent{
			Time: time.Unix(tx.BlockTime, 0).UTC(),
			ID:   hash,
			Delta: func(ctx context.Context) (decimal.Decimal, error) {
				return s.delta(ctx, hash)
			},
		}, nil
	})
}

// delta returns lovelace received by the wallet minus lovelace it spent,
// in ADA. Collateral and reference inputs and collateral outputs do not
// move wallet funds and are excluded.
func (s *CardanoDailySource) delta(ctx context.Context, hash string) (decimal.Decimal, error) {
	utxos, err := s.adapter.utxos(ctx, hash)
	if err != nil {
		return decimal.Zero, err
	}

	fromWallet, toWallet := decimal.Zero, decimal.Zero
	for _, in := range utxos.Inputs {
		if in.Collateral || in.Reference || !s.set[in.Address] {
			continue
		}
		ada, err := lovelace(in.Amount)
		if err != nil {
			return decimal.Zero, errors.NewMalformedRecordError(types.CategoryADA, hash, "invalid lovelace quantity")
		}
		fromWallet = fromWallet.Add(ada)
	}
	for _, out := range utxos.Outputs {
		if out.Collateral || !s.set[out.Address] {
			continue
		}
		ada, err := lovelace(out.Amount)
		if err != nil {
			return decimal.Zero, errors.NewMalformedRecordError(types.CategoryADA, hash, "invalid lovelace quantity")
		}
		toWallet = toWallet.Add(ada)
	}
	return toWallet.Sub(fromWallet).Shift(-types.DecimalsADA), nil
}

func addressSet(addrs []string) map[string]bool {
	set := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		set[a] = true
	}
	return set
}
