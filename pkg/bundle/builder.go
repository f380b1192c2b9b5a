package bundle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

// TipAccountProvider hands out tip accounts in rotation.
type TipAccountProvider interface {
	Next(ctx context.Context) (solana.PublicKey, error)
}

// Builder appends a tip transfer to signed transactions and freezes them into a Bundle.
type Builder struct {
	tips            TipAccountProvider
	tipLamports     uint64
	maxTransactions int
	log             zerolog.Logger
}

// NewBuilder creates a builder. maxTransactions counts the tip transaction and
// is capped at the block engine limit.
func NewBuilder(tips TipAccountProvider, tipLamports uint64, maxTransactions int, log zerolog.Logger) *Builder {
	if maxTransactions <= 0 || maxTransactions > constants.MaxBundleTransactions {
		maxTransactions = constants.MaxBundleTransactions
	}
	return &Builder{
		tips:            tips,
		tipLamports:     tipLamports,
		maxTransactions: maxTransactions,
		log:             log,
	}
}

// MaxTransactions is the bundle size limit including the tip.
func (b *Builder) MaxTransactions() int {
	return b.maxTransactions
}

// Build returns txs followed by a tip transfer signed by tipPayer and
// anchored on the last transaction's blockhash.
func (b *Builder) Build(ctx context.Context, tipPayer wallet.Signer, txs ...*solana.Transaction) (*Bundle, error) {
	bundle, err := b.build(ctx, tipPayer, txs)
	if err != nil {
		return nil, &types.ConstructionError{Step: "build bundle", Err: err}
	}
	return bundle, nil
}

func (b *Builder) build(ctx context.Context, tipPayer wallet.Signer, txs []*solana.Transaction) (*Bundle, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("bundle needs at least one transaction")
	}
	if len(txs)+1 > b.maxTransactions {
		return nil, fmt.Errorf("%d transactions plus tip exceed %d: %w", len(txs), b.maxTransactions, types.ErrBundleTooLarge)
	}
	if tipPayer == nil {
		return nil, types.ErrNilSigner
	}
	for i, tx := range txs {
		if tx == nil || len(tx.Signatures) == 0 {
			return nil, fmt.Errorf("transaction %d is not signed", i)
		}
	}
	if b.tips == nil {
		return nil, types.ErrNoTipAccountAvailable
	}

	tipAccount, err := b.tips.Next(ctx)
	if err != nil {
		return nil, err
	}

	blockhash := txs[len(txs)-1].Message.RecentBlockhash
	tipTx, err := txbuilder.Build(tipPayer.PublicKey(), blockhash,
		txbuilder.Transfer(tipPayer.PublicKey(), tipAccount, b.tipLamports))
	if err != nil {
		return nil, err
	}
	if err := txbuilder.SignTransaction(ctx, tipTx, tipPayer); err != nil {
		return nil, err
	}

	all := make([]*solana.Transaction, 0, len(txs)+1)
	all = append(all, txs...)
	all = append(all, tipTx)

	b.log.Debug().
		Int("txs", len(all)).
		Str("tip_account", tipAccount.String()).
		Uint64("tip_lamports", b.tipLamports).
		Msg("bundle built")

	return &Bundle{txs: all, tipAccount: tipAccount, tipLamports: b.tipLamports}, nil
}
