package types

import (
	"github.com/gagliardetto/solana-go"
)

// ValidateAmount validates an amount is non-zero.
func ValidateAmount(field string, amount uint64) error {
	if amount == 0 {
		return &ValidationError{Field: field, Message: "must be greater than 0", Err: ErrZeroAmount}
	}
	return nil
}

// ValidateSlippageBps validates slippage basis points lie in [0, 10000).
func ValidateSlippageBps(slippageBps uint64) error {
	if slippageBps >= 10000 {
		return &ValidationError{Field: "slippageBps", Message: "must be < 10000 (100%)", Err: ErrInvalidSlippage}
	}
	return nil
}

// ValidatePublicKey validates a public key is not zero.
func ValidatePublicKey(name string, key solana.PublicKey) error {
	if key.IsZero() {
		return &ValidationError{Field: name, Message: "cannot be zero", Err: ErrInvalidPublicKey}
	}
	return nil
}

// ValidatePublicKeys validates multiple public keys.
func ValidatePublicKeys(keys map[string]solana.PublicKey) error {
	for name, key := range keys {
		if err := ValidatePublicKey(name, key); err != nil {
			return err
		}
	}
	return nil
}
