package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopperSignature(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("secret"))
	mac.Write([]byte("1700000000000GET/platform/wallets"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, CopperSignature("secret", "1700000000000", http.MethodGet, "/platform/wallets", ""))
	assert.NotEqual(t, want, CopperSignature("other", "1700000000000", http.MethodGet, "/platform/wallets", ""))
}

func TestCopperWallets(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	server := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, copperWalletsPath, r.URL.Path)
		assert.Equal(t, "1700000000000", r.Header.Get("X-Timestamp"))
		assert.Equal(t, "ApiKey key", r.Header.Get("Authorization"))
		assert.Equal(t, CopperSignature("secret", "1700000000000", http.MethodGet, copperWalletsPath, ""), r.Header.Get("X-Signature"))
		w.Write([]byte(`{"wallets":[
			{"walletId":"w1","currency":"BTC","mainCurrency":"BTC","balance":"1.25"},
			{"walletId":"w2","currency":"USD","mainCurrency":"USD","balance":"1000"}
		]}`))
	}))
	c := NewCopperClient(newClient("copper", server), "key", "secret").WithClock(func() time.Time { return now })

	wallets, err := c.Wallets(context.Background())
	require.NoError(t, err)
	require.Len(t, wallets, 2)

	byID := WalletsByID(wallets)
	assert.Equal(t, "1.25", byID["w1"].Balance.String())
	assert.Equal(t, "USD", byID["w2"].Currency)
}
