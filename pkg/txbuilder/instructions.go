package txbuilder

import (
	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
)

// ComputeBudget returns CU limit/price instructions. Zero values are omitted.
func ComputeBudget(microLamports uint64, units uint32) []solana.Instruction {
	var out []solana.Instruction
	if units > 0 {
		out = append(out, computebudget.NewSetComputeUnitLimitInstructionBuilder().
			SetUnits(units).
			Build())
	}
	if microLamports > 0 {
		out = append(out, computebudget.NewSetComputeUnitPriceInstructionBuilder().
			SetMicroLamports(microLamports).
			Build())
	}
	return out
}

// FindATA derives the associated token account for wallet and mint under tokenProgram.
func FindATA(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	if tokenProgram.IsZero() {
		tokenProgram = constants.TokenProgramID
	}
	ata, _, err := solana.FindProgramAddress([][]byte{
		wallet[:],
		tokenProgram[:],
		mint[:],
	}, constants.AssociatedTokenProgramID)
	return ata, err
}

// CreateATAIdempotent returns the ATA and an instruction that creates it unless it exists.
func CreateATAIdempotent(payer, wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	if tokenProgram.IsZero() {
		tokenProgram = constants.TokenProgramID
	}
	ata, err := FindATA(wallet, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(payer, true, true),
		solana.NewAccountMeta(ata, true, false),
		solana.NewAccountMeta(wallet, false, false),
		solana.NewAccountMeta(mint, false, false),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
		solana.NewAccountMeta(tokenProgram, false, false),
	}
	// CreateIdempotent discriminator = 1
	return ata, solana.NewInstruction(constants.AssociatedTokenProgramID, metas, []byte{1}), nil
}

// WrapSOL moves lamports into a WSOL token account and syncs its balance.
func WrapSOL(payer, wsolATA solana.PublicKey, lamports uint64) []solana.Instruction {
	if lamports == 0 {
		return nil
	}
	return []solana.Instruction{
		system.NewTransferInstruction(
			lamports,
			payer,
			wsolATA,
		).Build(),
		token.NewSyncNativeInstruction(wsolATA).Build(),
	}
}

// CloseAccount constructs a CloseAccount instruction for any Token Program (SPL or Token-2022).
func CloseAccount(account, destination, owner, tokenProgram solana.PublicKey) solana.Instruction {
	if tokenProgram.IsZero() {
		tokenProgram = constants.TokenProgramID
	}
	// CloseAccount instruction discriminator = 9
	data := []byte{9}
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(account, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(owner, false, true),
	}
	return solana.NewInstruction(tokenProgram, metas, data)
}

// Transfer returns a system transfer of lamports.
func Transfer(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}
