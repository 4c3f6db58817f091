package adapter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/errors"
)

const xrpAddress = "rTracked"

func TestXRPHistory(t *testing.T) {
	var markers []string
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/"+xrpAddress+"/transactions", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Payment", q.Get("type"))
		assert.Equal(t, "true", q.Get("descending"))
		markers = append(markers, q.Get("marker"))

		if q.Get("marker") == "" {
			writeJSON(w, map[string]interface{}{
				"result": "success",
				"marker": "m1",
				"transactions": []interface{}{
					map[string]interface{}{"tx": map[string]interface{}{"Account": "rOther", "Destination": xrpAddress, "Amount": "25000000", "date": 0, "hash": "in"}},
					map[string]interface{}{"tx": map[string]interface{}{"Account": xrpAddress, "Destination": "rOther", "Amount": map[string]string{"currency": "USD", "value": "10"}, "date": 10, "hash": "iou"}},
				},
			})
			return
		}
		writeJSON(w, map[string]interface{}{
			"result": "success",
			"transactions": []interface{}{
				map[string]interface{}{"tx": map[string]interface{}{"Account": xrpAddress, "Destination": "rOther", "Amount": "1500000", "date": "2024-03-01T12:00:00Z", "hash": "out"}},
				map[string]interface{}{"tx": map[string]interface{}{"Account": xrpAddress, "Destination": xrpAddress, "Amount": "1", "date": 5, "hash": "self"}},
			},
		})
	}))
	a := NewXRPAdapter(newClient("xrpscan", server), nil, newFixedPrices("XRP", "0.5"))

	movs, err := a.GetHistory(context.Background(), xrpAddress)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, []string{"", "m1"}, markers)

	assert.Equal(t, "out", movs[0].ExternalID)
	assert.Equal(t, "-1.5", movs[0].NativeAmount.String())
	assert.Equal(t, time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC), movs[0].Timestamp)

	assert.Equal(t, "in", movs[1].ExternalID)
	assert.Equal(t, "25", movs[1].NativeAmount.String())
	// Ripple epoch zero
	assert.Equal(t, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), movs[1].Timestamp)
}

func TestXRPResultNotSuccess(t *testing.T) {
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"result": "error"})
	}))
	a := NewXRPAdapter(newClient("xrpscan", server), nil, newFixedPrices())

	_, err := a.GetHistory(context.Background(), xrpAddress)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryUpstream))
}

func TestXRPBalanceFromCryptoAPIs(t *testing.T) {
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blockchain-data/xrp-slice/mainnet/addresses/"+xrpAddress+"/balance", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		w.Write([]byte(`{"data":{"item":{"confirmedBalance":{"amount":"12345678","unit":"XRP"}}}}`))
	}))
	balances := NewCryptoAPIsClient(newClientWithKey("cryptoapis", server, "k"))
	a := NewXRPAdapter(nil, balances, nil)

	bal, err := a.GetBalance(context.Background(), xrpAddress)
	require.NoError(t, err)
	assert.Equal(t, "12.345678", bal.String())
}

func TestCryptoAPIsMissingAmountIsZero(t *testing.T) {
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"item":{}}}`))
	}))
	bal, err := NewCryptoAPIsClient(newClient("cryptoapis", server)).ConfirmedBalance(context.Background(), blockchainSui, "0xabc")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}
