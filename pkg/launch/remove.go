package launch

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/raydium"
	tokenamount "github.com/ninja0404/raydium-launch-sdk/pkg/token"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// RemoveRequest withdraws liquidity from a pool the funding wallet holds LP tokens of.
type RemoveRequest struct {
	PoolID solana.PublicKey
	// Amount is a UI LP amount. Ignored when All is set.
	Amount decimal.Decimal
	All    bool
}

// RemoveResult is a confirmed withdrawal.
type RemoveResult struct {
	Signature solana.Signature
	LPAmount  tokenamount.Amount
}

// RemoveLiquidity burns LP tokens of the funding wallet and sends the
// withdrawal as a standalone transaction.
func (o *Orchestrator) RemoveLiquidity(ctx context.Context, req RemoveRequest) (*RemoveResult, error) {
	if o.deps.Sender == nil {
		return nil, errors.New("remove liquidity needs a transaction sender")
	}
	if err := types.ValidatePublicKey("pool", req.PoolID); err != nil {
		return nil, err
	}
	owner := o.wallets.Funding.PublicKey()
	log := o.log.With().Str("op", "remove_liquidity").Str("pool", req.PoolID.String()).Logger()

	keys, err := o.loadPool(ctx, req.PoolID)
	if err != nil {
		return nil, err
	}
	lpATA, err := txbuilder.FindATA(owner, keys.LPMint, constants.TokenProgramID)
	if err != nil {
		return nil, &types.ConstructionError{Step: "derive lp account", Err: err}
	}

	var lp tokenamount.Amount
	if req.All {
		held, err := o.tokenBalance(ctx, lpATA)
		if err != nil {
			return nil, err
		}
		lp = tokenamount.New(keys.LPMint, held, keys.LPDecimals)
	} else {
		if lp, err = tokenamount.FromDecimal(req.Amount, keys.LPMint, keys.LPDecimals); err != nil {
			return nil, err
		}
	}
	if err := types.ValidateAmount("lpAmount", lp.Raw); err != nil {
		return nil, err
	}

	ixs, err := o.withdrawInstructions(owner, keys, lpATA, lp.Raw)
	if err != nil {
		return nil, &types.ConstructionError{Step: "withdraw instructions", Err: err}
	}
	tx, err := o.assemble(ctx, o.wallets.Funding, ixs)
	if err != nil {
		return nil, &types.ConstructionError{Step: "assemble withdraw", Err: err}
	}

	sig, err := o.deps.Sender.SendAndConfirm(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send withdraw: %w", err)
	}
	log.Info().Str("lp_amount", lp.String()).Str("tx", o.explorerURL(sig)).Msg("liquidity removed")
	return &RemoveResult{Signature: sig, LPAmount: lp}, nil
}

// loadPool reads an existing pool and its market.
func (o *Orchestrator) loadPool(ctx context.Context, poolID solana.PublicKey) (raydium.PoolKeys, error) {
	acc, err := o.fetchOne(ctx, "fetch pool", poolID)
	if err != nil {
		return raydium.PoolKeys{}, err
	}
	if acc == nil || acc.Data == nil {
		return raydium.PoolKeys{}, types.WrapValidation("pool", types.ErrPoolNotFound, "%s", poolID)
	}
	if !acc.Owner.Equals(o.cfg.Programs.AmmV4) {
		return raydium.PoolKeys{}, types.WrapValidation("pool", types.ErrPoolNotFound,
			"%s is owned by %s, not the AMM v4 program", poolID, acc.Owner)
	}
	st, err := raydium.DecodePoolState(acc.Data.GetBinary())
	if err != nil {
		return raydium.PoolKeys{}, fmt.Errorf("pool %s: %w", poolID, err)
	}
	info, err := o.resolver.Resolve(ctx, st.MarketID)
	if err != nil {
		return raydium.PoolKeys{}, fmt.Errorf("resolve pool market: %w", err)
	}
	return raydium.KeysFromState(acc.Owner, poolID, st, info)
}

// tokenBalance returns the amount held by a token account; a missing account holds nothing.
func (o *Orchestrator) tokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	acc, err := o.fetchOne(ctx, "fetch token account", account)
	if err != nil {
		return 0, err
	}
	if acc == nil || acc.Data == nil {
		return 0, nil
	}
	var ta token.Account
	if err := bin.NewBinDecoder(acc.Data.GetBinary()).Decode(&ta); err != nil {
		return 0, fmt.Errorf("decode token account %s: %w", account, err)
	}
	return ta.Amount, nil
}

func (o *Orchestrator) fetchOne(ctx context.Context, op string, key solana.PublicKey) (*solanarpc.Account, error) {
	accs, err := o.deps.Accounts.GetMultipleAccounts(ctx, key)
	if err != nil {
		return nil, types.RPCError{Op: op, Err: err}
	}
	if len(accs) != 1 {
		return nil, types.RPCError{Op: op, Err: fmt.Errorf("expected 1 account, got %d", len(accs))}
	}
	return accs[0], nil
}
