package txbuilder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
)

var (
	// ErrItemTooLarge means a single item does not fit in an empty transaction.
	ErrItemTooLarge = errors.New("item does not fit in a single transaction")
	// ErrBudgetExceeded means packing needs more transactions than allowed.
	ErrBudgetExceeded = errors.New("items do not fit in transaction budget")
)

// Item is a group of instructions that must land in the same transaction.
type Item struct {
	Instructions []solana.Instruction
}

// Budget bounds a packing run. Zero fields are unbounded, except MaxBytes
// which defaults to the network packet limit.
type Budget struct {
	MaxTransactions int
	MaxInstructions int
	MaxBytes        int
}

// Packer groups items into as few transactions as possible.
type Packer struct {
	FeePayer solana.PublicKey
	// Prefix is prepended to every transaction (compute budget etc.) and counts against the budget.
	Prefix []solana.Instruction
}

// Pack places items first-fit into transactions. Items never split, and items
// that share a transaction keep their relative order.
func (p Packer) Pack(items []Item, budget Budget) ([][]solana.Instruction, error) {
	if budget.MaxBytes <= 0 {
		budget.MaxBytes = constants.MaxTransactionSize
	}
	if p.FeePayer.IsZero() {
		return nil, fmt.Errorf("fee payer is required to measure transactions")
	}

	var bins [][]solana.Instruction
	for i, item := range items {
		if len(item.Instructions) == 0 {
			continue
		}
		placed := false
		for b := range bins {
			candidate := append(append([]solana.Instruction{}, bins[b]...), item.Instructions...)
			ok, err := p.fits(candidate, budget)
			if err != nil {
				return nil, err
			}
			if ok {
				bins[b] = candidate
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		fresh := append([]solana.Instruction{}, item.Instructions...)
		ok, err := p.fits(fresh, budget)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("item %d: %w", i, ErrItemTooLarge)
		}
		bins = append(bins, fresh)
		if budget.MaxTransactions > 0 && len(bins) > budget.MaxTransactions {
			return nil, fmt.Errorf("need more than %d transactions: %w", budget.MaxTransactions, ErrBudgetExceeded)
		}
	}

	out := make([][]solana.Instruction, len(bins))
	for i, b := range bins {
		out[i] = append(append([]solana.Instruction{}, p.Prefix...), b...)
	}
	return out, nil
}

func (p Packer) fits(body []solana.Instruction, budget Budget) (bool, error) {
	total := len(p.Prefix) + len(body)
	if budget.MaxInstructions > 0 && total > budget.MaxInstructions {
		return false, nil
	}
	all := append(append([]solana.Instruction{}, p.Prefix...), body...)
	size, err := Size(p.FeePayer, all...)
	if err != nil {
		return false, err
	}
	return size <= budget.MaxBytes, nil
}

// Size returns the serialized size in bytes of a fully signed transaction
// carrying instructions.
func Size(feePayer solana.PublicKey, instructions ...solana.Instruction) (int, error) {
	// Any non-zero hash; the blockhash is fixed width.
	tx, err := Build(feePayer, solana.Hash{1}, instructions...)
	if err != nil {
		return 0, err
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	sigs := int(tx.Message.Header.NumRequiredSignatures)
	return compactLen(sigs) + sigs*solana.SignatureLength + len(msg), nil
}

// SizeOf returns the serialized size of an already built transaction.
func SizeOf(tx *solana.Transaction) (int, error) {
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	sigs := int(tx.Message.Header.NumRequiredSignatures)
	return compactLen(sigs) + sigs*solana.SignatureLength + len(msg), nil
}

// compactLen is the width of a compact-u16 length prefix.
func compactLen(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	default:
		return 3
	}
}
