// Package raydium holds the Raydium AMM v4 account derivations, pool state
// layout and instruction encoders.
package raydium

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/market"
)

// LPDecimals follows the base mint's decimals, as the program does.
func LPDecimals(baseDecimals uint8) uint8 { return baseDecimals }

// PoolKeys is every account a v4 pool instruction touches.
type PoolKeys struct {
	ProgramID      solana.PublicKey
	ID             solana.PublicKey
	Authority      solana.PublicKey
	AuthorityNonce uint8
	OpenOrders     solana.PublicKey
	TargetOrders   solana.PublicKey
	LPMint         solana.PublicKey
	BaseVault      solana.PublicKey
	QuoteVault     solana.PublicKey
	WithdrawQueue  solana.PublicKey
	LPVault        solana.PublicKey
	Config         solana.PublicKey
	FeeDestination solana.PublicKey

	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8
	LPDecimals    uint8

	MarketProgramID  solana.PublicKey
	MarketID         solana.PublicKey
	MarketAuthority  solana.PublicKey
	MarketBaseVault  solana.PublicKey
	MarketQuoteVault solana.PublicKey
	MarketBids       solana.PublicKey
	MarketAsks       solana.PublicKey
	MarketEventQueue solana.PublicKey
}

// associated derives the PDA [program, market, seed] under program.
func associated(program, marketID solana.PublicKey, seed string) (solana.PublicKey, error) {
	pda, _, err := solana.FindProgramAddress([][]byte{program[:], marketID[:], []byte(seed)}, program)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive %s: %w", seed, err)
	}
	return pda, nil
}

// DerivePoolKeys computes the deterministic pool accounts for a market.
func DerivePoolKeys(programs constants.Programs, m *market.Info) (PoolKeys, error) {
	if m == nil {
		return PoolKeys{}, fmt.Errorf("market info is required")
	}
	program := programs.AmmV4
	k := PoolKeys{
		ProgramID:      program,
		FeeDestination: programs.CreateFeeDestination,

		BaseMint:      m.State.BaseMint,
		QuoteMint:     m.State.QuoteMint,
		BaseDecimals:  m.BaseDecimals,
		QuoteDecimals: m.QuoteDecimals,
		LPDecimals:    LPDecimals(m.BaseDecimals),

		MarketProgramID:  m.ProgramID,
		MarketID:         m.ID,
		MarketAuthority:  m.VaultSigner,
		MarketBaseVault:  m.State.BaseVault,
		MarketQuoteVault: m.State.QuoteVault,
		MarketBids:       m.State.Bids,
		MarketAsks:       m.State.Asks,
		MarketEventQueue: m.State.EventQueue,
	}

	var err error
	derive := []struct {
		dst  *solana.PublicKey
		seed string
	}{
		{&k.ID, constants.SeedAmmAssociated},
		{&k.BaseVault, constants.SeedCoinVault},
		{&k.QuoteVault, constants.SeedPcVault},
		{&k.LPMint, constants.SeedLPMint},
		{&k.OpenOrders, constants.SeedOpenOrders},
		{&k.TargetOrders, constants.SeedTargetOrders},
		{&k.WithdrawQueue, constants.SeedWithdrawQueue},
		{&k.LPVault, constants.SeedTempLPToken},
	}
	for _, d := range derive {
		if *d.dst, err = associated(program, m.ID, d.seed); err != nil {
			return PoolKeys{}, err
		}
	}

	k.Authority, k.AuthorityNonce, err = solana.FindProgramAddress([][]byte{[]byte(constants.SeedAmmAuthority)}, program)
	if err != nil {
		return PoolKeys{}, fmt.Errorf("derive authority: %w", err)
	}
	k.Config, _, err = solana.FindProgramAddress([][]byte{[]byte(constants.SeedAmmConfigAccount)}, program)
	if err != nil {
		return PoolKeys{}, fmt.Errorf("derive config: %w", err)
	}
	return k, nil
}

// KeysFromState rebuilds the keys of an existing pool from its account.
// programID is the account owner.
func KeysFromState(programID, poolID solana.PublicKey, st PoolState, m *market.Info) (PoolKeys, error) {
	if m == nil {
		return PoolKeys{}, fmt.Errorf("market info is required")
	}
	if !m.ID.Equals(st.MarketID) {
		return PoolKeys{}, fmt.Errorf("pool %s references market %s, got %s", poolID, st.MarketID, m.ID)
	}
	authority, nonce, err := solana.FindProgramAddress([][]byte{[]byte(constants.SeedAmmAuthority)}, programID)
	if err != nil {
		return PoolKeys{}, fmt.Errorf("derive authority: %w", err)
	}
	return PoolKeys{
		ProgramID:      programID,
		ID:             poolID,
		Authority:      authority,
		AuthorityNonce: nonce,
		OpenOrders:     st.OpenOrders,
		TargetOrders:   st.TargetOrders,
		LPMint:         st.LPMint,
		BaseVault:      st.BaseVault,
		QuoteVault:     st.QuoteVault,
		WithdrawQueue:  st.WithdrawQueue,
		LPVault:        st.LPVault,

		BaseMint:      st.BaseMint,
		QuoteMint:     st.QuoteMint,
		BaseDecimals:  uint8(st.BaseDecimal),
		QuoteDecimals: uint8(st.QuoteDecimal),
		LPDecimals:    LPDecimals(uint8(st.BaseDecimal)),

		MarketProgramID:  st.MarketProgramID,
		MarketID:         st.MarketID,
		MarketAuthority:  m.VaultSigner,
		MarketBaseVault:  m.State.BaseVault,
		MarketQuoteVault: m.State.QuoteVault,
		MarketBids:       m.State.Bids,
		MarketAsks:       m.State.Asks,
		MarketEventQueue: m.State.EventQueue,
	}, nil
}
