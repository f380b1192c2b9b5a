package txbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

// BlockhashSource returns a recent blockhash.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (*solanarpc.GetLatestBlockhashResult, error)
}

// Template is everything needed to anchor and sign one transaction.
type Template struct {
	Instructions []solana.Instruction
	FeePayer     solana.PublicKey
	Signers      []wallet.Signer
	Blockhash    solana.Hash
}

// Assembler anchors instructions on a blockhash and signs them.
// It does not decide transaction content.
type Assembler struct {
	blockhashes BlockhashSource
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewAssembler constructs an assembler. retryDelay is waited once before
// retrying a failed blockhash fetch.
func NewAssembler(blockhashes BlockhashSource, retryDelay time.Duration, log zerolog.Logger) *Assembler {
	return &Assembler{blockhashes: blockhashes, retryDelay: retryDelay, log: log}
}

// FetchBlockhash fetches a fresh blockhash, retrying once after the configured delay.
func (a *Assembler) FetchBlockhash(ctx context.Context) (solana.Hash, error) {
	if a.blockhashes == nil {
		return solana.Hash{}, types.ErrNilRPC
	}
	hash, err := a.fetchOnce(ctx)
	if err == nil {
		return hash, nil
	}
	a.log.Warn().Err(err).Dur("retry_in", a.retryDelay).Msg("blockhash fetch failed")

	select {
	case <-ctx.Done():
		return solana.Hash{}, ctx.Err()
	case <-time.After(a.retryDelay):
	}

	hash, err = a.fetchOnce(ctx)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash (after retry): %w", err)
	}
	return hash, nil
}

func (a *Assembler) fetchOnce(ctx context.Context) (solana.Hash, error) {
	latest, err := a.blockhashes.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Hash{}, err
	}
	if latest == nil || latest.Value == nil || latest.Value.Blockhash.IsZero() {
		return solana.Hash{}, fmt.Errorf("empty blockhash response")
	}
	return latest.Value.Blockhash, nil
}

// Assemble builds and signs a transaction from tmpl.
func (a *Assembler) Assemble(ctx context.Context, tmpl Template) (*solana.Transaction, error) {
	tx, err := Build(tmpl.FeePayer, tmpl.Blockhash, tmpl.Instructions...)
	if err != nil {
		return nil, err
	}
	if err := SignTransaction(ctx, tx, wallet.Dedup(tmpl.Signers...)...); err != nil {
		return nil, err
	}
	return tx, nil
}

// Build creates an unsigned transaction anchored on blockhash.
func Build(feePayer solana.PublicKey, blockhash solana.Hash, instructions ...solana.Instruction) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, types.ErrNoInstructions
	}
	if feePayer.IsZero() {
		return nil, types.NewValidationError("feePayer", "cannot be zero")
	}
	if blockhash.IsZero() {
		return nil, fmt.Errorf("blockhash is required")
	}

	builder := solana.NewTransactionBuilder().
		SetRecentBlockHash(blockhash).
		SetFeePayer(feePayer)

	for _, ix := range instructions {
		builder.AddInstruction(ix)
	}

	tx, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}

// SignTransaction signs using the provided signers in account-key order.
func SignTransaction(ctx context.Context, tx *solana.Transaction, signers ...wallet.Signer) error {
	if tx == nil {
		return fmt.Errorf("transaction is nil")
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 {
		return nil
	}
	if len(tx.Message.AccountKeys) < required {
		return fmt.Errorf("not enough account keys for required signatures")
	}

	signerMap := make(map[solana.PublicKey]wallet.Signer, len(signers))
	for _, s := range signers {
		if s == nil {
			continue
		}
		signerMap[s.PublicKey()] = s
	}

	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	tx.Signatures = make([]solana.Signature, required)
	for i := 0; i < required; i++ {
		pk := tx.Message.AccountKeys[i]
		signer, ok := signerMap[pk]
		if !ok {
			return fmt.Errorf("missing signer for %s", pk.String())
		}
		sig, err := signer.SignMessage(ctx, messageBytes)
		if err != nil {
			return fmt.Errorf("sign message for %s: %w", pk.String(), err)
		}
		tx.Signatures[i] = sig
	}
	return nil
}

// Signature returns the fee payer signature of a signed transaction.
func Signature(tx *solana.Transaction) solana.Signature {
	if tx == nil || len(tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return tx.Signatures[0]
}

// Blockhash returns the blockhash a transaction is anchored on.
func Blockhash(tx *solana.Transaction) solana.Hash {
	if tx == nil {
		return solana.Hash{}
	}
	return tx.Message.RecentBlockhash
}
