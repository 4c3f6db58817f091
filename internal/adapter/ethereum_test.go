package adapter

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/types"
)

const (
	ethAddress = "0x1111111111111111111111111111111111111111"
	ethOther   = "0x2222222222222222222222222222222222222222"
)

func etherscanServer(t *testing.T, results map[string]interface{}) *EtherscanClient {
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, "key", q.Get("apikey"))
		result, ok := results[q.Get("action")]
		if !ok {
			writeJSON(w, map[string]interface{}{"status": "0", "message": "No transactions found", "result": []interface{}{}})
			return
		}
		if env, ok := result.(map[string]interface{}); ok && env["status"] != nil {
			writeJSON(w, env)
			return
		}
		writeJSON(w, map[string]interface{}{"status": "1", "message": "OK", "result": result})
	}))
	return NewEtherscanClient(newClient("etherscan", server), "key")
}

func TestEthereumHistoryOrderingAndFees(t *testing.T) {
	es := etherscanServer(t, map[string]interface{}{
		"txlist": []map[string]string{
			{"hash": "A", "timeStamp": "100", "transactionIndex": "0", "from": ethOther, "to": ethAddress, "value": "1000000000000000000", "gasUsed": "21000", "gasPrice": "1000000000"},
			{"hash": "B", "timeStamp": "200", "transactionIndex": "1", "from": ethAddress, "to": ethAddress, "value": "1000000000000000000", "gasUsed": "21000", "gasPrice": "1000000000"},
			{"hash": "D", "timeStamp": "300", "transactionIndex": "0", "from": ethAddress, "to": ethOther, "value": "5000000000000000000", "gasUsed": "21000", "gasPrice": "1000000000", "isError": "1"},
		},
		"txlistinternal": []map[string]string{
			{"hash": "B", "timeStamp": "200", "from": ethOther, "to": ethAddress, "value": "500000000000000000"},
		},
	})
	a := NewEthereumAdapter(es, newFixedPrices("ETH", "2000"))

	movs, err := a.GetHistory(context.Background(), ethAddress)
	require.NoError(t, err)
	require.Len(t, movs, 4)

	ids := make([]string, len(movs))
	for i, m := range movs {
		ids[i] = m.ExternalID
	}
	assert.Equal(t, []string{"D", "B", "B", "A"}, ids)

	// failed transaction: value ignored, gas still paid
	assert.True(t, movs[0].NativeAmount.IsZero())
	assert.Equal(t, "-0.000021", movs[0].Fee.String())

	// internal credit of B sorts after its normal row, so it comes first newest-first
	assert.Equal(t, "0.5", movs[1].NativeAmount.String())
	assert.True(t, movs[1].Fee.IsZero())

	// self-transfer stays as a fee-only row
	assert.True(t, movs[2].NativeAmount.IsZero())
	assert.Equal(t, "-0.000021", movs[2].Fee.String())

	assert.Equal(t, "1", movs[3].NativeAmount.String())
	assert.True(t, movs[3].Fee.IsZero())
	assert.Equal(t, "2000", movs[3].AmountUSD.String())
}

func TestEthereumNoTransactionsFound(t *testing.T) {
	a := NewEthereumAdapter(etherscanServer(t, nil), newFixedPrices())

	movs, err := a.GetHistory(context.Background(), ethAddress)
	require.NoError(t, err)
	assert.Empty(t, movs)
}

func TestEthereumEnvelopeError(t *testing.T) {
	es := etherscanServer(t, map[string]interface{}{
		"txlist": map[string]interface{}{"status": "0", "message": "NOTOK", "result": "Invalid API Key"},
	})
	a := NewEthereumAdapter(es, newFixedPrices())

	_, err := a.GetHistory(context.Background(), ethAddress)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestEthereumRejectsInvalidAccount(t *testing.T) {
	a := NewEthereumAdapter(etherscanServer(t, nil), newFixedPrices())

	_, err := a.GetHistory(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))
}

func TestTokenHistoryUsesReportedDecimals(t *testing.T) {
	es := etherscanServer(t, map[string]interface{}{
		"tokentx": []map[string]string{
			{"hash": "T1", "timeStamp": "100", "transactionIndex": "3", "logIndex": "1", "from": ethOther, "to": ethAddress, "value": "2500000", "tokenDecimal": "6"},
			{"hash": "T1", "timeStamp": "100", "transactionIndex": "3", "logIndex": "2", "from": ethAddress, "to": ethOther, "value": "500000", "tokenDecimal": "6"},
		},
	})
	var usdt Token
	for _, tok := range Tokens {
		if tok.Category == types.CategoryUSDT {
			usdt = tok
		}
	}
	a := NewTokenAdapter(es, usdt, newFixedPrices("USDT", "1"))

	movs, err := a.GetHistory(context.Background(), ethAddress)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, "-0.5", movs[0].NativeAmount.String())
	assert.Equal(t, "2.5", movs[1].NativeAmount.String())
	assert.True(t, movs[0].Fee.IsZero())
	assert.Equal(t, types.CategoryUSDT, a.Category())
}

func TestTokenBalance(t *testing.T) {
	es := etherscanServer(t, map[string]interface{}{"tokenbalance": "123450000"})
	a := NewTokenAdapter(es, Tokens[len(Tokens)-1], nil)

	bal, err := a.GetBalance(context.Background(), ethAddress)
	require.NoError(t, err)
	assert.Equal(t, "123.45", bal.String())
}
