// Package token models raw on-chain token amounts tied to their mint.
package token

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// Amount is a raw integer amount of a specific mint.
type Amount struct {
	Mint     solana.PublicKey
	Raw      uint64
	Decimals uint8
}

// New constructs an Amount from raw units.
func New(mint solana.PublicKey, raw uint64, decimals uint8) Amount {
	return Amount{Mint: mint, Raw: raw, Decimals: decimals}
}

// Lamports is a native SOL amount denominated as WSOL.
func Lamports(raw uint64) Amount {
	return Amount{Mint: constants.WSOLMint, Raw: raw, Decimals: constants.WSOLDecimals}
}

// ParseAmount converts a UI value (e.g. "1.5") into raw units. Precision beyond
// decimals is truncated.
func ParseAmount(ui string, mint solana.PublicKey, decimals uint8) (Amount, error) {
	d, err := decimal.NewFromString(ui)
	if err != nil {
		return Amount{}, types.NewValidationError("amount", fmt.Sprintf("parse %q: %v", ui, err))
	}
	return FromDecimal(d, mint, decimals)
}

// FromDecimal converts a UI decimal into raw units, truncating extra precision.
func FromDecimal(d decimal.Decimal, mint solana.PublicKey, decimals uint8) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, types.NewValidationError("amount", "must not be negative")
	}
	raw := d.Shift(int32(decimals)).Truncate(0)
	if raw.GreaterThan(decimal.NewFromUint64(math.MaxUint64)) {
		return Amount{}, &types.ValidationError{Field: "amount", Message: d.String(), Err: types.ErrAmountOverflow}
	}
	return Amount{Mint: mint, Raw: raw.BigInt().Uint64(), Decimals: decimals}, nil
}

// Decimal returns the UI value.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromUint64(a.Raw).Shift(-int32(a.Decimals))
}

// String renders the UI value with the mint's full precision.
func (a Amount) String() string {
	return a.Decimal().StringFixed(int32(a.Decimals))
}

// IsZero reports whether the raw amount is zero.
func (a Amount) IsZero() bool {
	return a.Raw == 0
}

// IsNative reports whether the amount is denominated in WSOL.
func (a Amount) IsNative() bool {
	return a.Mint.Equals(constants.WSOLMint)
}

// SameToken reports whether both amounts denominate the same mint.
func (a Amount) SameToken(b Amount) bool {
	return a.Mint.Equals(b.Mint) && a.Decimals == b.Decimals
}

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	if !a.SameToken(b) {
		return Amount{}, fmt.Errorf("add %s and %s: %w", a.Mint, b.Mint, types.ErrMixedTokens)
	}
	if a.Raw > math.MaxUint64-b.Raw {
		return Amount{}, types.ErrAmountOverflow
	}
	return Amount{Mint: a.Mint, Raw: a.Raw + b.Raw, Decimals: a.Decimals}, nil
}

// Sub returns a-b, failing when b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	if !a.SameToken(b) {
		return Amount{}, fmt.Errorf("sub %s and %s: %w", a.Mint, b.Mint, types.ErrMixedTokens)
	}
	if b.Raw > a.Raw {
		return Amount{}, fmt.Errorf("sub %d from %d: underflow", b.Raw, a.Raw)
	}
	return Amount{Mint: a.Mint, Raw: a.Raw - b.Raw, Decimals: a.Decimals}, nil
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) (int, error) {
	if !a.SameToken(b) {
		return 0, fmt.Errorf("compare %s and %s: %w", a.Mint, b.Mint, types.ErrMixedTokens)
	}
	switch {
	case a.Raw < b.Raw:
		return -1, nil
	case a.Raw > b.Raw:
		return 1, nil
	default:
		return 0, nil
	}
}
