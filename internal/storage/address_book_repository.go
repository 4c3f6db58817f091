package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chain-ledger/internal/errors"
	"github.com/chain-ledger/internal/types"
)

// AddressBookLoader supplies the address book consumed by the portfolio
// aggregator. The engine never writes to it.
type AddressBookLoader interface {
	Load(ctx context.Context) (types.AddressBook, error)
}

// AddressBookRepository reads the address book from Postgres
type AddressBookRepository struct {
	db *PostgresDB
}

// NewAddressBookRepository creates a new address book repository
func NewAddressBookRepository(db *PostgresDB) *AddressBookRepository {
	return &AddressBookRepository{db: db}
}

// Load returns every category with its addresses, both in their stored position order
func (r *AddressBookRepository) Load(ctx context.Context) (types.AddressBook, error) {
	query := `
		SELECT c.name, a.address, a.entity, a.liquid
		FROM categories c
		LEFT JOIN addresses a ON a.category = c.name
		ORDER BY c.position, c.name, a.position, a.id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, errors.NewDatabaseError("load address book", err)
	}
	defer rows.Close()

	var book types.AddressBook
	index := make(map[types.Category]int)
	for rows.Next() {
		var (
			category string
			address  *string
			entity   *string
			liquid   *bool
		)
		if err := rows.Scan(&category, &address, &entity, &liquid); err != nil {
			return nil, errors.NewDatabaseError("scan address book row", err)
		}

		cat := types.Category(category)
		i, ok := index[cat]
		if !ok {
			i = len(book)
			index[cat] = i
			book = append(book, types.CategoryAddresses{Category: cat})
		}
		// LEFT JOIN yields one NULL row for an empty category
		if address == nil {
			continue
		}

		entry := types.AddressEntry{Address: *address}
		if entity != nil {
			entry.Entity = types.Entity(*entity)
		}
		if liquid != nil {
			entry.Liquid = *liquid
		}
		book[i].Addresses = append(book[i].Addresses, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate address book", err)
	}

	return book, nil
}

// RewardWallets returns the stake keys registered for reward reporting
func (r *AddressBookRepository) RewardWallets(ctx context.Context) ([]types.RewardWallet, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT stake_address, annotation FROM reward_wallets ORDER BY stake_address`)
	if err != nil {
		return nil, errors.NewDatabaseError("list reward wallets", err)
	}
	defer rows.Close()

	var wallets []types.RewardWallet
	for rows.Next() {
		var w types.RewardWallet
		if err := rows.Scan(&w.StakeAddress, &w.Annotation); err != nil {
			return nil, errors.NewDatabaseError("scan reward wallet", err)
		}
		wallets = append(wallets, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseError("iterate reward wallets", err)
	}
	return wallets, nil
}

// FileAddressBook reads the address book from a JSON document of the form
// [{"category": "BTC", "addresses": [{"address": "...", "entity": "EMG", "liquid": true}]}]
type FileAddressBook struct {
	path string
}

// NewFileAddressBook creates a loader for the JSON file at path
func NewFileAddressBook(path string) *FileAddressBook {
	return &FileAddressBook{path: path}
}

// Load reads and validates the file
func (f *FileAddressBook) Load(ctx context.Context) (types.AddressBook, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("failed to read address book %s", f.path), err)
	}
	return ParseAddressBook(raw)
}

// ParseAddressBook decodes and validates an address book document
func ParseAddressBook(raw []byte) (types.AddressBook, error) {
	var book types.AddressBook
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, errors.NewInvalidParameterError("addressBook", fmt.Sprintf("invalid JSON: %v", err))
	}
	if err := ValidateAddressBook(book); err != nil {
		return nil, err
	}
	return book, nil
}

// ValidateAddressBook checks that category names are unique and non-empty
// and that every entity is known
func ValidateAddressBook(book types.AddressBook) error {
	seen := make(map[types.Category]bool, len(book))
	for _, c := range book {
		if c.Category == "" {
			return errors.NewInvalidParameterError("category", "category name is required")
		}
		if seen[c.Category] {
			return errors.NewInvalidParameterError("category", fmt.Sprintf("duplicate category %s", c.Category))
		}
		seen[c.Category] = true
		for _, a := range c.Addresses {
			if a.Address == "" {
				return errors.NewInvalidParameterError("address", fmt.Sprintf("empty address in category %s", c.Category))
			}
			if !a.Entity.Valid() {
				return errors.NewInvalidParameterError("entity", fmt.Sprintf("unknown entity %q", a.Entity))
			}
		}
	}
	return nil
}
