package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chain-ledger/internal/upstream"
)

// fixedPrices returns one price per asset and records the lookups
type fixedPrices struct {
	mu      sync.Mutex
	price   map[string]decimal.Decimal
	daily   []time.Time
	at      []time.Time
	current int
}

func newFixedPrices(kv ...interface{}) *fixedPrices {
	p := &fixedPrices{price: make(map[string]decimal.Decimal)}
	for i := 0; i+1 < len(kv); i += 2 {
		p.price[kv[i].(string)] = decimal.RequireFromString(kv[i+1].(string))
	}
	return p
}

func (p *fixedPrices) Daily(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.daily = append(p.daily, t)
	return p.price[asset], nil
}

func (p *fixedPrices) At(ctx context.Context, asset string, t time.Time) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.at = append(p.at, t)
	return p.price[asset], nil
}

func (p *fixedPrices) Current(ctx context.Context, asset string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current++
	return p.price[asset], nil
}

// rpcHandler answers JSON-RPC calls by method. A handler returns the result
// value or an rpcFailure.
type rpcHandler map[string]func(params []json.RawMessage) interface{}

type rpcFailure struct {
	Code    int
	Message string
}

func (h rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		ID     int64             `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fn, ok := h[req.Method]
	if !ok {
		http.Error(w, "unknown method "+req.Method, http.StatusNotFound)
		return
	}
	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch v := fn(req.Params).(type) {
	case rpcFailure:
		resp["error"] = map[string]interface{}{"code": v.Code, "message": v.Message}
	default:
		resp["result"] = v
	}
	json.NewEncoder(w).Encode(resp)
}

func newServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	s := httptest.NewServer(h)
	t.Cleanup(s.Close)
	return s
}

func newClient(provider string, s *httptest.Server) *upstream.Client {
	return upstream.New(provider, s.URL)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newClientWithKey(provider string, s *httptest.Server, key string) *upstream.Client {
	return upstream.New(provider, s.URL, upstream.WithHeader("X-API-Key", key))
}
