// Package preflight checks wallet balances before anything is built or sent.
package preflight

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/token"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// AccountsFetcher fetches accounts index-aligned with the requested keys; missing accounts are nil.
type AccountsFetcher interface {
	GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([]*solanarpc.Account, error)
}

// Requirements are native (lamport) minimums for the two wallets of a launch.
type Requirements struct {
	Funding         solana.PublicKey
	FundingRequired uint64
	Buyer           solana.PublicKey
	BuyerRequired   uint64
}

// Balances is what the validator observed.
type Balances struct {
	Funding uint64
	Buyer   uint64
}

// Validator runs the balance preflight.
type Validator struct {
	accounts AccountsFetcher
	log      zerolog.Logger
}

// NewValidator constructs a Validator.
func NewValidator(accounts AccountsFetcher, log zerolog.Logger) *Validator {
	return &Validator{accounts: accounts, log: log}
}

// Check reads both balances in one call and fails when either is below its requirement.
// A balance equal to the requirement passes. When both wallets are the same account
// the requirements are summed.
func (v *Validator) Check(ctx context.Context, req Requirements) (Balances, error) {
	if v.accounts == nil {
		return Balances{}, types.ErrNilRPC
	}
	if err := types.ValidatePublicKeys(map[string]solana.PublicKey{"funding": req.Funding, "buyer": req.Buyer}); err != nil {
		return Balances{}, err
	}

	accounts, err := v.accounts.GetMultipleAccounts(ctx, req.Funding, req.Buyer)
	if err != nil {
		return Balances{}, types.RPCError{Op: "fetch wallet balances", Err: err}
	}
	if len(accounts) != 2 {
		return Balances{}, types.RPCError{Op: "fetch wallet balances", Err: fmt.Errorf("expected 2 accounts, got %d", len(accounts))}
	}

	bal := Balances{Funding: lamports(accounts[0]), Buyer: lamports(accounts[1])}
	v.log.Debug().
		Str("funding", req.Funding.String()).
		Uint64("funding_balance", bal.Funding).
		Uint64("funding_required", req.FundingRequired).
		Str("buyer", req.Buyer.String()).
		Uint64("buyer_balance", bal.Buyer).
		Uint64("buyer_required", req.BuyerRequired).
		Msg("preflight balances")

	if req.Funding.Equals(req.Buyer) {
		total, err := token.Lamports(req.FundingRequired).Add(token.Lamports(req.BuyerRequired))
		if err != nil {
			return bal, err
		}
		if bal.Funding < total.Raw {
			return bal, types.WrapValidation("funding", types.ErrInsufficientFundingBalance,
				"%s holds %s SOL, pool funding and buy need %s SOL", req.Funding, token.Lamports(bal.Funding), total)
		}
		return bal, nil
	}

	if bal.Funding < req.FundingRequired {
		return bal, types.WrapValidation("funding", types.ErrInsufficientFundingBalance,
			"%s holds %s SOL, pool funding needs %s SOL", req.Funding, token.Lamports(bal.Funding), token.Lamports(req.FundingRequired))
	}
	if bal.Buyer < req.BuyerRequired {
		return bal, types.WrapValidation("buyer", types.ErrInsufficientBuyerBalance,
			"%s holds %s SOL, buy needs %s SOL", req.Buyer, token.Lamports(bal.Buyer), token.Lamports(req.BuyerRequired))
	}
	return bal, nil
}

// lamports treats a missing account as an empty one.
func lamports(acc *solanarpc.Account) uint64 {
	if acc == nil {
		return 0
	}
	return acc.Lamports
}
