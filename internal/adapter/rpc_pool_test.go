package adapter

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chain-ledger/internal/upstream"
)

func TestIsEndpointRefused(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"solana request failed: https://x returned 403 ", true},
		{"rpc error -32052: API key is not allowed, Endpoint is disabled for this method", true},
		{"Forbidden", true},
		{"rpc error -32602: invalid param", false},
		{"returned 429 Too Many Requests", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsEndpointRefused(stderrors.New(tt.msg)), tt.msg)
	}
}

func TestEndpointPoolWithoutFallback(t *testing.T) {
	primary := upstream.New("solana", "http://primary")
	pool := NewEndpointPool(primary, nil)

	calls := 0
	err := pool.Do(context.Background(), func(ctx context.Context, c *upstream.Client) error {
		calls++
		return stderrors.New("403 forbidden")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, primary, pool.Client())
}
