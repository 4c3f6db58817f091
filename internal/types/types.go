// Package types provides common type definitions for the chain ledger system.
package types

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Category names a group of addresses sharing one balance/price API.
// The name selects the history normalizer and the price lookup.
type Category string

const (
	CategoryBTC         Category = "BTC"
	CategoryETH         Category = "ETH"
	CategoryADA         Category = "ADA"
	CategorySOL         Category = "SOL"
	CategoryUSDCSolana  Category = "USDC-SOL"
	CategoryXRP         Category = "XRP"
	CategoryDOT         Category = "DOT"
	CategorySUI         Category = "SUI"
	CategoryAPI3        Category = "API3"
	CategoryStETH       Category = "stETH"
	CategoryUSDT        Category = "USDT"
	CategoryUSDC        Category = "USDC"
	CategoryUSDTPolygon Category = "USDT-POLYGON"
	// CategoryCopper is the custodial wallet service. Its addresses are wallet ids.
	CategoryCopper Category = "copper"
)

// Entity is the organizational owner of an address
type Entity string

const (
	EntityEMG Entity = "EMG"
	EntityEMC Entity = "EMC"
)

// Valid reports whether the entity is empty or one of the known owners
func (e Entity) Valid() bool {
	return e == "" || e == EntityEMG || e == EntityEMC
}

// AddressEntry is one tracked address inside a category
type AddressEntry struct {
	Address string `json:"address"`
	Entity  Entity `json:"entity,omitempty"`
	Liquid  bool   `json:"liquid"`
}

// CategoryAddresses groups address entries under one category name
type CategoryAddresses struct {
	Category  Category       `json:"category"`
	Addresses []AddressEntry `json:"addresses"`
}

// AddressBook is the full read-only input supplied by the storage collaborator
type AddressBook []CategoryAddresses

// SignedMovement is the canonical per-transaction output of a history normalizer.
// NativeAmount is positive when value flowed into the tracked address set.
// Fee already carries its sign (negative when it reduces the balance).
type SignedMovement struct {
	Timestamp    time.Time       `json:"timestamp"`
	ExternalID   string          `json:"id"`
	NativeAmount decimal.Decimal `json:"amount"`
	Fee          decimal.Decimal `json:"fee"`
	PriceUSD     decimal.Decimal `json:"priceUsd"`
	AmountUSD    decimal.Decimal `json:"amountUsd"`
	FeeUSD       decimal.Decimal `json:"feeUsd"`
}

// Net returns the balance change contributed by this movement
func (m SignedMovement) Net() decimal.Decimal {
	return m.NativeAmount.Add(m.Fee)
}

// IsZero reports whether the movement leaves the tracked balance unchanged
func (m SignedMovement) IsZero() bool {
	return m.Net().IsZero()
}

// WithPrice returns a copy with the USD fields derived from price
func (m SignedMovement) WithPrice(price decimal.Decimal) SignedMovement {
	m.PriceUSD = price
	m.AmountUSD = m.NativeAmount.Mul(price)
	m.FeeUSD = m.Fee.Mul(price)
	return m
}

// LedgerRow is a SignedMovement with running balances.
// It is only meaningful inside one fully ordered ledger for one account.
type LedgerRow struct {
	SignedMovement
	Balance    decimal.Decimal `json:"balance"`
	BalanceUSD decimal.Decimal `json:"balanceUsd"`
}

// DailySnapshot is the balance and price at the end of one calendar day
type DailySnapshot struct {
	Date       string          `json:"date"`
	Balance    decimal.Decimal `json:"balance"`
	PriceUSD   decimal.Decimal `json:"priceUsd"`
	BalanceUSD decimal.Decimal `json:"usdBalance"`
}

// DailyEvent is one transaction of a daily balance walk. Delta returns the
// wallet-relative change (received minus spent) and may call upstream.
type DailyEvent struct {
	Time  time.Time
	ID    string
	Delta func(ctx context.Context) (decimal.Decimal, error)
}

// PortfolioEntry is one row of the cross-chain portfolio report
type PortfolioEntry struct {
	Category Category        `json:"category"`
	Address  string          `json:"address"`
	Entity   Entity          `json:"entity,omitempty"`
	Liquid   bool            `json:"liquid"`
	Balance  decimal.Decimal `json:"balance"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// PortfolioReport is the assembled output of one aggregation run
type PortfolioReport struct {
	ID          string           `json:"id"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Entries     []PortfolioEntry `json:"entries"`
	TotalUSD    decimal.Decimal  `json:"totalUsd"`
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// RewardWallet is a Cardano stake key whose staking rewards are reported
type RewardWallet struct {
	StakeAddress string `json:"stakeAddress"`
	Annotation   string `json:"annotation,omitempty"`
}
