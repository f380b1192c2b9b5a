// Package airdrop sends a token to many wallets, packing as many transfers
// into each transaction as the packet limit allows.
package airdrop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	tokenamount "github.com/ninja0404/raydium-launch-sdk/pkg/token"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

// DefaultPerTransaction caps recipients per transaction before the size limit applies.
const DefaultPerTransaction = 10

// Recipient is one wallet and its UI amount.
type Recipient struct {
	Wallet solana.PublicKey `json:"wallet"`
	Amount decimal.Decimal  `json:"amount"`
}

// ParseRecipients reads a JSON list of [wallet, amount] pairs or
// {"wallet": ..., "amount": ...} objects.
func ParseRecipients(r io.Reader) ([]Recipient, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	out := make([]Recipient, 0, len(raw))
	for i, entry := range raw {
		var rec Recipient
		var pair []json.RawMessage
		if err := json.Unmarshal(entry, &pair); err == nil {
			if len(pair) != 2 {
				return nil, fmt.Errorf("recipient %d: want [wallet, amount], got %d fields", i, len(pair))
			}
			if err := json.Unmarshal(pair[0], &rec.Wallet); err != nil {
				return nil, fmt.Errorf("recipient %d wallet: %w", i, err)
			}
			if err := json.Unmarshal(pair[1], &rec.Amount); err != nil {
				return nil, fmt.Errorf("recipient %d amount: %w", i, err)
			}
		} else if err := json.Unmarshal(entry, &rec); err != nil {
			return nil, fmt.Errorf("recipient %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// AccountsFetcher fetches accounts index-aligned with keys; missing accounts are nil.
type AccountsFetcher interface {
	GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([]*solanarpc.Account, error)
}

// Sender sends and confirms one transaction.
type Sender interface {
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Config tunes batching.
type Config struct {
	PerTransaction   int
	ComputeUnitPrice uint64
}

// Batch is one sent transaction and the recipients it carried.
type Batch struct {
	Recipients []Recipient
	Signature  solana.Signature
	Err        error
}

// Report lists every batch of a distribution.
type Report struct {
	Mint    solana.PublicKey
	Total   tokenamount.Amount
	Batches []Batch
}

// Delivered counts recipients in confirmed batches.
func (r *Report) Delivered() int {
	n := 0
	for _, b := range r.Batches {
		if b.Err == nil {
			n += len(b.Recipients)
		}
	}
	return n
}

// Distributor transfers from the payer's associated token account.
type Distributor struct {
	accounts  AccountsFetcher
	assembler *txbuilder.Assembler
	sender    Sender
	payer     wallet.Signer
	cfg       Config
	log       zerolog.Logger
}

// NewDistributor constructs a Distributor.
func NewDistributor(accounts AccountsFetcher, assembler *txbuilder.Assembler, sender Sender, payer wallet.Signer, cfg Config, log zerolog.Logger) *Distributor {
	if cfg.PerTransaction <= 0 {
		cfg.PerTransaction = DefaultPerTransaction
	}
	return &Distributor{accounts: accounts, assembler: assembler, sender: sender, payer: payer, cfg: cfg, log: log}
}

// Distribute sends every recipient its amount of mint. A failed batch does not
// stop later ones; all batch errors are returned joined alongside the report.
func (d *Distributor) Distribute(ctx context.Context, mint solana.PublicKey, recipients []Recipient) (*Report, error) {
	if d.accounts == nil {
		return nil, types.ErrNilRPC
	}
	if d.payer == nil {
		return nil, types.ErrNilSigner
	}
	if err := types.ValidatePublicKey("mint", mint); err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, types.NewValidationError("recipients", "list is empty")
	}
	payer := d.payer.PublicKey()

	decimals, tokenProgram, err := d.mintInfo(ctx, mint)
	if err != nil {
		return nil, err
	}
	source, err := txbuilder.FindATA(payer, mint, tokenProgram)
	if err != nil {
		return nil, &types.ConstructionError{Step: "derive source account", Err: err}
	}

	total := tokenamount.New(mint, 0, decimals)
	items := make([]txbuilder.Item, 0, len(recipients))
	owners := make(map[solana.Instruction]int, len(recipients))
	for i, r := range recipients {
		if err := types.ValidatePublicKey(fmt.Sprintf("recipients[%d].wallet", i), r.Wallet); err != nil {
			return nil, err
		}
		amt, err := tokenamount.FromDecimal(r.Amount, mint, decimals)
		if err != nil {
			return nil, err
		}
		if err := types.ValidateAmount(fmt.Sprintf("recipients[%d].amount", i), amt.Raw); err != nil {
			return nil, err
		}
		if total, err = total.Add(amt); err != nil {
			return nil, err
		}

		ata, create, err := txbuilder.CreateATAIdempotent(payer, r.Wallet, mint, tokenProgram)
		if err != nil {
			return nil, &types.ConstructionError{Step: "derive recipient account", Err: err}
		}
		transfer, err := transferChecked(tokenProgram, amt, source, ata, payer)
		if err != nil {
			return nil, &types.ConstructionError{Step: "transfer instruction", Err: err}
		}
		owners[transfer] = i
		items = append(items, txbuilder.Item{Instructions: []solana.Instruction{create, transfer}})
	}

	held, err := d.balance(ctx, source)
	if err != nil {
		return nil, err
	}
	if held < total.Raw {
		return nil, types.NewValidationError("source", fmt.Sprintf("%s holds %s, airdrop needs %s",
			source, tokenamount.New(mint, held, decimals), total))
	}

	prefix := txbuilder.ComputeBudget(d.cfg.ComputeUnitPrice, 0)
	packer := txbuilder.Packer{FeePayer: payer, Prefix: prefix}
	batches, err := packer.Pack(items, txbuilder.Budget{MaxInstructions: len(prefix) + 2*d.cfg.PerTransaction})
	if err != nil {
		return nil, &types.ConstructionError{Step: "pack airdrop", Err: err}
	}
	d.log.Info().
		Str("mint", mint.String()).
		Int("recipients", len(recipients)).
		Int("transactions", len(batches)).
		Str("total", total.String()).
		Msg("airdrop planned")

	report := &Report{Mint: mint, Total: total}
	var errs []error
	for i, ixs := range batches {
		batch := Batch{}
		for _, ix := range ixs {
			if idx, ok := owners[ix]; ok {
				batch.Recipients = append(batch.Recipients, recipients[idx])
			}
		}
		batch.Signature, batch.Err = d.send(ctx, ixs)
		if batch.Err != nil {
			d.log.Warn().Err(batch.Err).Int("batch", i).Int("recipients", len(batch.Recipients)).Msg("airdrop batch failed")
			errs = append(errs, fmt.Errorf("batch %d: %w", i, batch.Err))
		} else {
			d.log.Info().Int("batch", i).Str("signature", batch.Signature.String()).Msg("airdrop batch confirmed")
		}
		report.Batches = append(report.Batches, batch)
	}
	return report, errors.Join(errs...)
}

func (d *Distributor) send(ctx context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	hash, err := d.assembler.FetchBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, err
	}
	tx, err := d.assembler.Assemble(ctx, txbuilder.Template{
		Instructions: ixs,
		FeePayer:     d.payer.PublicKey(),
		Signers:      []wallet.Signer{d.payer},
		Blockhash:    hash,
	})
	if err != nil {
		return solana.Signature{}, err
	}
	return d.sender.SendAndConfirm(ctx, tx)
}

// mintInfo returns the mint's decimals and owning token program.
func (d *Distributor) mintInfo(ctx context.Context, mint solana.PublicKey) (uint8, solana.PublicKey, error) {
	accs, err := d.accounts.GetMultipleAccounts(ctx, mint)
	if err != nil {
		return 0, solana.PublicKey{}, types.RPCError{Op: "fetch mint", Err: err}
	}
	if len(accs) != 1 || accs[0] == nil || accs[0].Data == nil {
		return 0, solana.PublicKey{}, types.WrapValidation("mint", types.ErrMintNotFound, "%s", mint)
	}
	owner := accs[0].Owner
	if !owner.Equals(constants.TokenProgramID) && !owner.Equals(constants.Token2022ProgramID) {
		return 0, solana.PublicKey{}, types.NewValidationError("mint", fmt.Sprintf("%s is owned by %s, not a token program", mint, owner))
	}
	var m token.Mint
	if err := bin.NewBinDecoder(accs[0].Data.GetBinary()).Decode(&m); err != nil {
		return 0, solana.PublicKey{}, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	return m.Decimals, owner, nil
}

// balance reads a token account amount; a missing account holds nothing.
func (d *Distributor) balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	accs, err := d.accounts.GetMultipleAccounts(ctx, account)
	if err != nil {
		return 0, types.RPCError{Op: "fetch source account", Err: err}
	}
	if len(accs) != 1 || accs[0] == nil || accs[0].Data == nil {
		return 0, nil
	}
	var ta token.Account
	if err := bin.NewBinDecoder(accs[0].Data.GetBinary()).Decode(&ta); err != nil {
		return 0, fmt.Errorf("decode token account %s: %w", account, err)
	}
	return ta.Amount, nil
}

// transferChecked re-targets the SPL TransferChecked encoding at tokenProgram;
// Token-2022 shares the layout.
func transferChecked(tokenProgram solana.PublicKey, amt tokenamount.Amount, source, destination, owner solana.PublicKey) (solana.Instruction, error) {
	ix := token.NewTransferCheckedInstruction(amt.Raw, amt.Decimals, source, amt.Mint, destination, owner, nil).Build()
	data, err := ix.Data()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(tokenProgram, ix.Accounts(), data), nil
}
