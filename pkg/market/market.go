// Package market reads OpenBook (Serum v3) market accounts, which a Raydium
// AMM v4 pool is created against.
package market

import (
	"context"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// StateSize is the serialized size of a v3 market account.
const StateSize = 388

const (
	flagInitialized = 1 << 0
	flagMarket      = 1 << 1
)

// State is the MarketStateV3 account layout.
type State struct {
	Padding                [5]byte
	AccountFlags           uint64
	OwnAddress             solana.PublicKey
	VaultSignerNonce       uint64
	BaseMint               solana.PublicKey
	QuoteMint              solana.PublicKey
	BaseVault              solana.PublicKey
	BaseDepositsTotal      uint64
	BaseFeesAccrued        uint64
	QuoteVault             solana.PublicKey
	QuoteDepositsTotal     uint64
	QuoteFeesAccrued       uint64
	QuoteDustThreshold     uint64
	RequestQueue           solana.PublicKey
	EventQueue             solana.PublicKey
	Bids                   solana.PublicKey
	Asks                   solana.PublicKey
	BaseLotSize            uint64
	QuoteLotSize           uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
	Tail                   [7]byte
}

// Decode parses a market account.
func Decode(data []byte) (State, error) {
	var st State
	if len(data) < StateSize {
		return st, fmt.Errorf("market account is %d bytes, want %d", len(data), StateSize)
	}
	if err := bin.NewBinDecoder(data[:StateSize]).Decode(&st); err != nil {
		return st, fmt.Errorf("decode market: %w", err)
	}
	if st.AccountFlags&(flagInitialized|flagMarket) != flagInitialized|flagMarket {
		return st, fmt.Errorf("account flags %#x do not describe an initialized market", st.AccountFlags)
	}
	return st, nil
}

// VaultSigner derives the market's vault signer from its nonce.
func VaultSigner(marketID, programID solana.PublicKey, nonce uint64) (solana.PublicKey, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], nonce)
	return solana.CreateProgramAddress([][]byte{marketID[:], le[:]}, programID)
}

// Info is a resolved market with the mint details needed to price and build against it.
type Info struct {
	ID          solana.PublicKey
	ProgramID   solana.PublicKey
	State       State
	VaultSigner solana.PublicKey

	BaseDecimals      uint8
	QuoteDecimals     uint8
	BaseTokenProgram  solana.PublicKey
	QuoteTokenProgram solana.PublicKey
}

// AccountsFetcher fetches accounts index-aligned with keys; missing accounts are nil.
type AccountsFetcher interface {
	GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([]*solanarpc.Account, error)
}

// Resolver loads markets and their mints.
type Resolver struct {
	accounts AccountsFetcher
	log      zerolog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(accounts AccountsFetcher, log zerolog.Logger) *Resolver {
	return &Resolver{accounts: accounts, log: log}
}

// Resolve loads marketID, checks it is owned by a market program, and reads both mints.
func (r *Resolver) Resolve(ctx context.Context, marketID solana.PublicKey) (*Info, error) {
	if r.accounts == nil {
		return nil, types.ErrNilRPC
	}
	if err := types.ValidatePublicKey("market", marketID); err != nil {
		return nil, err
	}

	accs, err := r.accounts.GetMultipleAccounts(ctx, marketID)
	if err != nil {
		return nil, types.RPCError{Op: "fetch market", Err: err}
	}
	if len(accs) != 1 || accs[0] == nil || accs[0].Data == nil {
		return nil, fmt.Errorf("%s: %w", marketID, types.ErrMarketNotFound)
	}
	st, err := Decode(accs[0].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", marketID, err)
	}
	if !st.OwnAddress.Equals(marketID) {
		return nil, fmt.Errorf("market %s records own address %s", marketID, st.OwnAddress)
	}

	info := &Info{ID: marketID, ProgramID: accs[0].Owner, State: st}
	info.VaultSigner, err = VaultSigner(marketID, info.ProgramID, st.VaultSignerNonce)
	if err != nil {
		return nil, fmt.Errorf("derive vault signer: %w", err)
	}

	mints, err := r.accounts.GetMultipleAccounts(ctx, st.BaseMint, st.QuoteMint)
	if err != nil {
		return nil, types.RPCError{Op: "fetch market mints", Err: err}
	}
	if len(mints) != 2 {
		return nil, types.RPCError{Op: "fetch market mints", Err: fmt.Errorf("expected 2 accounts, got %d", len(mints))}
	}
	var base, quote token.Mint
	if info.BaseTokenProgram, err = decodeMint(mints[0], st.BaseMint, &base); err != nil {
		return nil, err
	}
	if info.QuoteTokenProgram, err = decodeMint(mints[1], st.QuoteMint, &quote); err != nil {
		return nil, err
	}
	info.BaseDecimals = base.Decimals
	info.QuoteDecimals = quote.Decimals

	r.log.Debug().
		Str("market", marketID.String()).
		Str("base_mint", st.BaseMint.String()).
		Str("quote_mint", st.QuoteMint.String()).
		Uint8("base_decimals", info.BaseDecimals).
		Uint8("quote_decimals", info.QuoteDecimals).
		Msg("market resolved")
	return info, nil
}

// decodeMint returns the mint's owning token program.
func decodeMint(acc *solanarpc.Account, key solana.PublicKey, out *token.Mint) (solana.PublicKey, error) {
	if acc == nil || acc.Data == nil {
		return solana.PublicKey{}, fmt.Errorf("%s: %w", key, types.ErrMintNotFound)
	}
	if err := bin.NewBinDecoder(acc.Data.GetBinary()).Decode(out); err != nil {
		return solana.PublicKey{}, fmt.Errorf("decode mint %s: %w", key, err)
	}
	if !out.IsInitialized {
		return solana.PublicKey{}, fmt.Errorf("mint %s is not initialized", key)
	}
	return acc.Owner, nil
}
