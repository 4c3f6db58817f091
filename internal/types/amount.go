package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Base-unit scales of the supported native assets
const (
	DecimalsBTC  int32 = 8
	DecimalsETH  int32 = 18
	DecimalsADA  int32 = 6
	DecimalsSOL  int32 = 9
	DecimalsUSDC int32 = 6
	DecimalsXRP  int32 = 6
	DecimalsSUI  int32 = 9
)

// FromBaseUnits converts an integer base-unit string (satoshi, wei, lovelace...)
// into a decimal amount of the asset.
func FromBaseUnits(raw string, decimals int32) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-decimals), nil
}

// FormatAmount renders d with at most the given number of decimals and
// trailing zeros trimmed.
func FormatAmount(d decimal.Decimal, decimals int32) string {
	s := d.StringFixed(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}
