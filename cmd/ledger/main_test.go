package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/types"
)

func TestWriteTSV(t *testing.T) {
	m := types.SignedMovement{
		Timestamp:    time.Date(2024, time.March, 8, 12, 0, 0, 0, time.UTC),
		ExternalID:   "tx1",
		NativeAmount: decimal.RequireFromString("-0.2"),
		Fee:          decimal.RequireFromString("-0.0001"),
	}.WithPrice(decimal.NewFromInt(100))
	rows := []types.LedgerRow{{
		SignedMovement: m,
		Balance:        decimal.RequireFromString("0.2999"),
		BalanceUSD:     decimal.RequireFromString("29.99"),
	}}

	var buf bytes.Buffer
	require.NoError(t, writeTSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 9, len(strings.Split(lines[0], "\t")))
	assert.Equal(t, "2024-03-08T12:00:00Z\ttx1\t-0.2\t-0.0001\t100\t-20.00\t-0.01\t0.2999\t29.99", lines[1])
}
