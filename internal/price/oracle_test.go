package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/upstream"
)

func TestCoinGeckoHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/history", r.URL.Path)
		assert.Equal(t, "01-01-2024", r.URL.Query().Get("date"))
		assert.Equal(t, "false", r.URL.Query().Get("localization"))
		w.Write([]byte(`{"id":"bitcoin","market_data":{"current_price":{"usd":42280.23,"eur":38000}}}`))
	}))
	defer server.Close()

	cg := NewCoinGecko(upstream.New("coingecko", server.URL))
	p, err := cg.PriceAt(context.Background(), AssetBTC, time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("42280.23")))
}

func TestCoinGeckoHistoryWithoutMarketData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"sui"}`))
	}))
	defer server.Close()

	cg := NewCoinGecko(upstream.New("coingecko", server.URL))
	_, err := cg.PriceAt(context.Background(), AssetSUI, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestCoinGeckoCurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "staked-ether", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"staked-ether":{"usd":3120.5}}`))
	}))
	defer server.Close()

	cg := NewCoinGecko(upstream.New("coingecko", server.URL))
	p, err := cg.CurrentPrice(context.Background(), AssetStETH)

	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("3120.5")))

	_, err = cg.CurrentPrice(context.Background(), "DOGE")
	assert.Error(t, err)
}

func TestCryptoCompareHistorical(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/pricehistorical", r.URL.Path)
		assert.Equal(t, "SUI", r.URL.Query().Get("fsym"))
		assert.Equal(t, "1704067200", r.URL.Query().Get("ts"))
		w.Write([]byte(`{"SUI":{"USD":0.7812}}`))
	}))
	defer server.Close()

	cc := NewCryptoCompare(upstream.New("cryptocompare", server.URL))
	p, err := cc.PriceAt(context.Background(), AssetSUI, time.Unix(1704067200, 0))

	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.7812")))
}

func TestYoroi(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price/ADA/1700000000123":
			w.Write([]byte(`{"tickers":[{"timestamp":1700000000000,"prices":{"USD":0.3741,"EUR":0.35}}]}`))
		case "/price/ADA/current":
			w.Write([]byte(`{"ticker":{"prices":{"USD":0.61}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	y := NewYoroi(upstream.New("yoroi", server.URL))
	ctx := context.Background()

	p, err := y.PriceAt(ctx, AssetADA, time.UnixMilli(1700000000123))
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.3741")))

	p, err = y.CurrentPrice(ctx, AssetADA)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("0.61")))

	_, err = y.PriceAt(ctx, AssetBTC, time.Now())
	assert.Error(t, err)
}

type namedOracle struct {
	name  string
	price decimal.Decimal
}

func (n namedOracle) Name() string { return n.name }
func (n namedOracle) PriceAt(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	return n.price, nil
}
func (n namedOracle) CurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	return n.price.Neg(), nil
}

func TestRouter(t *testing.T) {
	gecko := namedOracle{"coingecko", decimal.NewFromInt(1)}
	compare := namedOracle{"cryptocompare", decimal.NewFromInt(2)}
	yoroi := namedOracle{"yoroi", decimal.NewFromInt(3)}

	r := NewRouter(gecko).
		Historical(compare, AssetDOT, AssetSUI).
		Historical(yoroi, AssetADA).
		Current(yoroi, AssetADA)
	ctx := context.Background()

	p, _ := r.PriceAt(ctx, AssetDOT, time.Now())
	assert.True(t, p.Equal(decimal.NewFromInt(2)))
	p, _ = r.PriceAt(ctx, AssetBTC, time.Now())
	assert.True(t, p.Equal(decimal.NewFromInt(1)))
	p, _ = r.CurrentPrice(ctx, AssetADA)
	assert.True(t, p.Equal(decimal.NewFromInt(-3)))
	p, _ = r.CurrentPrice(ctx, AssetDOT)
	assert.True(t, p.Equal(decimal.NewFromInt(-1)))

	_, err := NewRouter(nil).PriceAt(ctx, AssetBTC, time.Now())
	assert.Error(t, err)
}
