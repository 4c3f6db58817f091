package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/pagination"
	"github.com/chain-ledger/internal/upstream"
)

// Etherscan v2 chain ids
const (
	ChainIDEthereum = 1
	ChainIDPolygon  = 137
)

const (
	etherscanPageSize = 1000
	etherscanMaxPages = 99999
)

// EtherscanTransaction is a normal, internal or token transfer record
type EtherscanTransaction struct {
	Hash             string `json:"hash"`
	BlockNumber      string `json:"blockNumber"`
	TimeStamp        string `json:"timeStamp"`
	TransactionIndex string `json:"transactionIndex"`
	LogIndex         string `json:"logIndex"`
	From             string `json:"from"`
	To               string `json:"to"`
	Value            string `json:"value"`
	GasPrice         string `json:"gasPrice"`
	GasUsed          string `json:"gasUsed"`
	IsError          string `json:"isError"`
	ContractAddress  string `json:"contractAddress"`
	TokenSymbol      string `json:"tokenSymbol"`
	TokenDecimal     string `json:"tokenDecimal"`
}

// etherscanResponse is the envelope of every account module call
type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// EtherscanClient calls the Etherscan v2 multichain API
type EtherscanClient struct {
	client *upstream.Client
	apiKey string
}

// NewEtherscanClient creates a new Etherscan API client
func NewEtherscanClient(client *upstream.Client, apiKey string) *EtherscanClient {
	return &EtherscanClient{client: client, apiKey: apiKey}
}

// call runs one account module action and returns the raw result.
// ok is false for the "No transactions found" envelope.
func (c *EtherscanClient) call(ctx context.Context, chainID int, action string, params url.Values) (json.RawMessage, bool, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("chainid", strconv.Itoa(chainID))
	q.Set("module", "account")
	q.Set("action", action)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}

	var resp etherscanResponse
	if err := c.client.GetJSON(ctx, "", q, &resp); err != nil {
		return nil, false, err
	}
	if resp.Status == "1" {
		return resp.Result, true, nil
	}
	if resp.Message == "No transactions found" || resp.Message == "No records found" {
		return nil, false, nil
	}

	detail := resp.Message
	var text string
	if json.Unmarshal(resp.Result, &text) == nil && text != "" {
		detail += ": " + text
	}
	return nil, false, errors.NewUpstreamEnvelopeError(c.client.Provider(), action, fmt.Sprintf("status %s %s", resp.Status, detail))
}

// FetchList pages through a list action (txlist, txlistinternal, tokentx)
// in ascending order. extra carries action specific filters.
func (c *EtherscanClient) FetchList(ctx context.Context, chainID int, action, address string, extra url.Values) ([]EtherscanTransaction, error) {
	cfg := pagination.Config{
		Style:     pagination.Offset,
		PageSize:  etherscanPageSize,
		FirstPage: 1,
		MaxPages:  etherscanMaxPages,
		Endpoint:  "etherscan/" + action,
	}
	return pagination.Collect(ctx, cfg, func(ctx context.Context, req pagination.Request) (pagination.Page[EtherscanTransaction], error) {
		q := url.Values{}
		for k, v := range extra {
			q[k] = v
		}
		q.Set("address", address)
		q.Set("page", strconv.Itoa(req.Page))
		q.Set("offset", strconv.Itoa(req.PageSize))
		q.Set("sort", "asc")

		raw, ok, err := c.call(ctx, chainID, action, q)
		if err != nil || !ok {
			return pagination.Page[EtherscanTransaction]{}, err
		}
		var items []EtherscanTransaction
		if err := json.Unmarshal(raw, &items); err != nil {
			return pagination.Page[EtherscanTransaction]{}, errors.NewUpstreamEnvelopeError(c.client.Provider(), action, fmt.Sprintf("invalid result: %v", err))
		}
		return pagination.Page[EtherscanTransaction]{Items: items}, nil
	})
}

// Balance returns the native balance of address in wei
func (c *EtherscanClient) Balance(ctx context.Context, chainID int, address string) (decimal.Decimal, error) {
	return c.balance(ctx, chainID, "balance", url.Values{"address": {address}, "tag": {"latest"}})
}

// TokenBalance returns the token balance of address in base units
func (c *EtherscanClient) TokenBalance(ctx context.Context, chainID int, contract, address string) (decimal.Decimal, error) {
	return c.balance(ctx, chainID, "tokenbalance", url.Values{
		"contractaddress": {contract},
		"address":         {address},
		"tag":             {"latest"},
	})
}

func (c *EtherscanClient) balance(ctx context.Context, chainID int, action string, q url.Values) (decimal.Decimal, error) {
	raw, ok, err := c.call(ctx, chainID, action, q)
	if err != nil || !ok {
		return decimal.Zero, err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(c.client.Provider(), action, fmt.Sprintf("invalid result: %v", err))
	}
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.NewUpstreamEnvelopeError(c.client.Provider(), action, fmt.Sprintf("invalid balance %q", s))
	}
	return d, nil
}
