package adapter

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/config"
	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/ratelimit"
	"github.com/chain-ledger/internal/types"
)

func TestRegistryUnknownCategory(t *testing.T) {
	r := NewRegistry()
	r.RegisterHistory(NewSolanaAdapter(nil, nil))

	_, err := r.History(types.CategorySOL)
	require.NoError(t, err)

	_, err = r.History("DOGE")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotFound))

	_, err = r.Balance(types.CategorySOL)
	assert.Error(t, err)
}

func TestDefaultRegistryCoversEveryCategory(t *testing.T) {
	cfg := &config.Config{Providers: config.ProvidersConfig{SolanaFallbackURL: "http://fallback"}}
	r := NewDefaultRegistry(NewClients(cfg, ratelimit.Unlimited()), newFixedPrices())

	want := []types.Category{
		types.CategoryADA, types.CategoryAPI3, types.CategoryBTC, types.CategoryDOT,
		types.CategoryETH, types.CategorySOL, types.CategorySUI, types.CategoryUSDC,
		types.CategoryUSDCSolana, types.CategoryUSDT, types.CategoryUSDTPolygon,
		types.CategoryXRP, types.CategoryStETH,
	}
	assert.Equal(t, want, r.HistoryCategories())

	for _, c := range want {
		_, err := r.Balance(c)
		assert.NoError(t, err, c)
	}
}

func TestFinalize(t *testing.T) {
	at := func(sec int64) time.Time { return time.Unix(sec, 0).UTC() }
	movs := []types.SignedMovement{
		{Timestamp: at(1), ExternalID: "a", NativeAmount: decimal.NewFromInt(1), Fee: decimal.Zero},
		{Timestamp: at(3), ExternalID: "b", NativeAmount: decimal.NewFromInt(2), Fee: decimal.Zero},
		{Timestamp: at(2), ExternalID: "zero", NativeAmount: decimal.NewFromInt(1), Fee: decimal.NewFromInt(-1)},
		{Timestamp: at(3), ExternalID: "c", NativeAmount: decimal.Zero, Fee: decimal.NewFromInt(-1)},
	}

	got := finalize(movs)
	ids := make([]string, len(got))
	for i, m := range got {
		ids[i] = m.ExternalID
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestPriceRouterRoutesADAToYoroi(t *testing.T) {
	yoroi := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/ADA/current", r.URL.Path)
		writeJSON(w, map[string]interface{}{"ticker": map[string]interface{}{"prices": map[string]string{"USD": "0.45"}}})
	}))
	coingecko := newServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("ids"))
		writeJSON(w, map[string]interface{}{"bitcoin": map[string]string{"usd": "65000"}})
	}))

	router := NewPriceRouter(&Clients{
		Yoroi:     newClient("yoroi", yoroi),
		CoinGecko: newClient("coingecko", coingecko),
	})

	ada, err := router.CurrentPrice(context.Background(), "ADA")
	require.NoError(t, err)
	assert.Equal(t, "0.45", ada.String())

	btc, err := router.CurrentPrice(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "65000", btc.String())
}
