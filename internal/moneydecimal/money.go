// Package moneydecimal provides the fixed-scale decimal helpers shared by
// the rate book (C2) and the production/payout engine (C5). Every stored
// money value in the core is computed as a decimal.Decimal — no stored
// amount is rounded through float64 (spec §9 redesign note on the
// original's float64 bug); only the pulse snapshot reports totals as
// float64.
package moneydecimal

import "github.com/shopspring/decimal"

// COPScale is the number of decimal places Colombian peso amounts are
// rounded to for storage and payout — COP has no subunit in practice.
const COPScale = 0

// USDTScale is the number of decimal places stablecoin amounts are
// rounded to.
const USDTScale = 6

// RoundCOP rounds d to the nearest whole peso, half away from zero.
func RoundCOP(d decimal.Decimal) decimal.Decimal {
	return d.Round(COPScale)
}

// RoundUSDT rounds d to USDT's conventional 6 decimal places.
func RoundUSDT(d decimal.Decimal) decimal.Decimal {
	return d.Round(USDTScale)
}

// Zero is the canonical zero-value money amount.
var Zero = decimal.Zero

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// NonNegative clamps d to zero if it is negative. Used for rate spreads
// that must never go below zero (spec §4.5.2's (rate - spread).max(0)).
func NonNegative(d decimal.Decimal) decimal.Decimal {
	return Max(d, Zero)
}
