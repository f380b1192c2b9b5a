// Package bundle assembles Jito bundles and waits for their outcome.
package bundle

import (
	"github.com/gagliardetto/solana-go"
)

// Bundle is an ordered, signed set of transactions that lands atomically.
// The tip transfer is always last. A Bundle is immutable once built.
type Bundle struct {
	txs         []*solana.Transaction
	tipAccount  solana.PublicKey
	tipLamports uint64
}

// Transactions returns the transactions in submission order, tip last.
func (b *Bundle) Transactions() []*solana.Transaction {
	return append([]*solana.Transaction(nil), b.txs...)
}

// Len is the number of transactions including the tip.
func (b *Bundle) Len() int {
	return len(b.txs)
}

// TipAccount is the account the tip is paid to.
func (b *Bundle) TipAccount() solana.PublicKey {
	return b.tipAccount
}

// TipLamports is the tip amount.
func (b *Bundle) TipLamports() uint64 {
	return b.tipLamports
}

// Signatures returns each transaction's first signature, in order.
func (b *Bundle) Signatures() []solana.Signature {
	out := make([]solana.Signature, 0, len(b.txs))
	for _, tx := range b.txs {
		if len(tx.Signatures) > 0 {
			out = append(out, tx.Signatures[0])
		}
	}
	return out
}

// Blockhash is the blockhash the bundle is anchored on.
func (b *Bundle) Blockhash() solana.Hash {
	if len(b.txs) == 0 {
		return solana.Hash{}
	}
	return b.txs[len(b.txs)-1].Message.RecentBlockhash
}
