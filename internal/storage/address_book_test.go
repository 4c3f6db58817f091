package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/types"
)

const sampleBook = `[
  {"category": "BTC", "addresses": [{"address": "bc1qxyz", "entity": "EMG", "liquid": true}]},
  {"category": "copper", "addresses": [{"address": "wallet-7", "entity": "EMC", "liquid": false}]},
  {"category": "SUI", "addresses": []}
]`

func TestFileAddressBook_Load(t *testing.T) {
	book, err := NewFileAddressBook(writeAddressBook(t, sampleBook)).Load(testContext(t))
	require.NoError(t, err)

	require.Len(t, book, 3)
	assert.Equal(t, types.CategoryBTC, book[0].Category)
	assert.Equal(t, types.EntityEMG, book[0].Addresses[0].Entity)
	assert.Equal(t, types.CategoryCopper, book[1].Category)
	assert.False(t, book[1].Addresses[0].Liquid)
	assert.Empty(t, book[2].Addresses)
}

func TestFileAddressBook_Missing(t *testing.T) {
	_, err := NewFileAddressBook(filepath.Join(t.TempDir(), "nope.json")).Load(testContext(t))
	assert.Error(t, err)
}

func TestParseAddressBook_Validation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "invalid json", doc: `{`},
		{name: "duplicate category", doc: `[{"category":"BTC","addresses":[]},{"category":"BTC","addresses":[]}]`},
		{name: "unknown entity", doc: `[{"category":"BTC","addresses":[{"address":"a","entity":"ACME"}]}]`},
		{name: "empty address", doc: `[{"category":"BTC","addresses":[{"address":""}]}]`},
		{name: "empty category", doc: `[{"category":"","addresses":[]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddressBook([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.IsUserError(err))
		})
	}
}
