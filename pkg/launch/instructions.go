package launch

import (
	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/quote"
	"github.com/ninja0404/raydium-launch-sdk/pkg/raydium"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
)

// userAccounts creates owner's base and quote token accounts when missing.
func userAccounts(owner solana.PublicKey, keys raydium.PoolKeys) (solana.PublicKey, solana.PublicKey, []solana.Instruction, error) {
	baseATA, baseIx, err := txbuilder.CreateATAIdempotent(owner, owner, keys.BaseMint, constants.TokenProgramID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, nil, err
	}
	quoteATA, quoteIx, err := txbuilder.CreateATAIdempotent(owner, owner, keys.QuoteMint, constants.TokenProgramID)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, nil, err
	}
	return baseATA, quoteATA, []solana.Instruction{baseIx, quoteIx}, nil
}

// unwrap closes the owner's WSOL account, returning its lamports.
func unwrap(owner solana.PublicKey, keys raydium.PoolKeys, baseATA, quoteATA solana.PublicKey) []solana.Instruction {
	switch {
	case keys.BaseMint.Equals(constants.WSOLMint):
		return []solana.Instruction{txbuilder.CloseAccount(baseATA, owner, owner, constants.TokenProgramID)}
	case keys.QuoteMint.Equals(constants.WSOLMint):
		return []solana.Instruction{txbuilder.CloseAccount(quoteATA, owner, owner, constants.TokenProgramID)}
	default:
		return nil
	}
}

// createPoolInstructions seeds the pool from the funding wallet.
func (o *Orchestrator) createPoolInstructions(p *launchPlan) ([]solana.Instruction, error) {
	owner := o.wallets.Funding.PublicKey()
	ixs := txbuilder.ComputeBudget(o.cfg.Bundle.ComputeUnitPrice, o.cfg.Bundle.ComputeUnitLimit)

	baseATA, quoteATA, ataIxs, err := userAccounts(owner, p.keys)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, ataIxs...)

	switch {
	case p.base.IsNative():
		ixs = append(ixs, txbuilder.WrapSOL(owner, baseATA, p.base.Raw)...)
	case p.quote.IsNative():
		ixs = append(ixs, txbuilder.WrapSOL(owner, quoteATA, p.quote.Raw)...)
	}

	lpATA, err := txbuilder.FindATA(owner, p.keys.LPMint, constants.TokenProgramID)
	if err != nil {
		return nil, err
	}
	initIx, err := raydium.Initialize2(raydium.Initialize2Params{
		Keys:        p.keys,
		Owner:       owner,
		OwnerBase:   baseATA,
		OwnerQuote:  quoteATA,
		OwnerLP:     lpATA,
		OpenTime:    p.openTime,
		BaseAmount:  p.base.Raw,
		QuoteAmount: p.quote.Raw,
	})
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, initIx)
	return append(ixs, unwrap(owner, p.keys, baseATA, quoteATA)...), nil
}

// buyInstructions spends q.AmountIn from the buyer with q.MinOut as the floor.
func (o *Orchestrator) buyInstructions(p *launchPlan, q quote.Quote) ([]solana.Instruction, error) {
	owner := o.wallets.Buyer.PublicKey()
	ixs := txbuilder.ComputeBudget(o.cfg.Bundle.ComputeUnitPrice, o.cfg.Bundle.ComputeUnitLimit)

	baseATA, quoteATA, ataIxs, err := userAccounts(owner, p.keys)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, ataIxs...)

	src, dst := quoteATA, baseATA
	if q.Direction == quote.BaseIn {
		src, dst = baseATA, quoteATA
	}
	if q.AmountIn.IsNative() {
		ixs = append(ixs, txbuilder.WrapSOL(owner, src, q.AmountIn.Raw)...)
	}

	swap, err := raydium.SwapBaseIn(raydium.SwapParams{
		Keys:         p.keys,
		Owner:        owner,
		Source:       src,
		Destination:  dst,
		AmountIn:     q.AmountIn.Raw,
		MinAmountOut: q.MinOut.Raw,
	})
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, swap)
	return append(ixs, unwrap(owner, p.keys, baseATA, quoteATA)...), nil
}

// withdrawInstructions burns lpAmount of owner's LP tokens.
func (o *Orchestrator) withdrawInstructions(owner solana.PublicKey, keys raydium.PoolKeys, lpATA solana.PublicKey, lpAmount uint64) ([]solana.Instruction, error) {
	ixs := txbuilder.ComputeBudget(o.cfg.Bundle.ComputeUnitPrice, o.cfg.Bundle.ComputeUnitLimit)

	baseATA, quoteATA, ataIxs, err := userAccounts(owner, keys)
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, ataIxs...)

	withdraw, err := raydium.Withdraw(raydium.WithdrawParams{
		Keys:       keys,
		Owner:      owner,
		OwnerLP:    lpATA,
		OwnerBase:  baseATA,
		OwnerQuote: quoteATA,
		Amount:     lpAmount,
	})
	if err != nil {
		return nil, err
	}
	ixs = append(ixs, withdraw)
	return append(ixs, unwrap(owner, keys, baseATA, quoteATA)...), nil
}
