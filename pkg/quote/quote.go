// Package quote prices swaps against a Raydium AMM v4 constant-product pool.
//
// All arithmetic is integer (math/big); there is no floating point anywhere on
// the path from reserves to the minimum acceptable output.
//
// Example usage:
//
//	snap := quote.PoolSnapshot{BaseMint: mint, QuoteMint: solana.WrappedSol, ...}
//	q, err := quote.DefaultEngine().Quote(snap, token.Lamports(1e9), quote.SlippageFromBps(100))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Expected tokens: %d, min: %d\n", q.ExpectedOut.Raw, q.MinOut.Raw)
package quote

import (
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/raydium-launch-sdk/pkg/token"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// PoolSnapshot is a point-in-time view of a pool. Build a new one per quote.
type PoolSnapshot struct {
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8
	BaseReserve   uint64
	QuoteReserve  uint64
	LPDecimals    uint8
	LPSupply      uint64
}

// Direction is the side the caller deposits.
type Direction int

const (
	// BaseIn sells base for quote.
	BaseIn Direction = iota
	// QuoteIn buys base with quote.
	QuoteIn
)

func (d Direction) String() string {
	if d == BaseIn {
		return "base_in"
	}
	return "quote_in"
}

// Slippage is a tolerance expressed as Numerator/Denominator.
type Slippage struct {
	Numerator   uint64
	Denominator uint64
}

// SlippageFromBps returns bps/10000.
func SlippageFromBps(bps uint64) Slippage {
	return Slippage{Numerator: bps, Denominator: 10_000}
}

// SlippageFromPercent returns pct/100.
func SlippageFromPercent(pct uint64) Slippage {
	return Slippage{Numerator: pct, Denominator: 100}
}

// Validate enforces 0 <= s < 1.
func (s Slippage) Validate() error {
	if s.Denominator == 0 {
		return &types.ValidationError{Field: "slippage", Message: "zero denominator", Err: types.ErrInvalidSlippage}
	}
	if s.Numerator >= s.Denominator {
		return &types.ValidationError{
			Field:   "slippage",
			Message: fmt.Sprintf("%d/%d is not below 1", s.Numerator, s.Denominator),
			Err:     types.ErrInvalidSlippage,
		}
	}
	return nil
}

func (s Slippage) String() string {
	return fmt.Sprintf("%d/%d", s.Numerator, s.Denominator)
}

// Quote is the priced result of a swap.
type Quote struct {
	Direction   Direction
	AmountIn    token.Amount
	Fee         token.Amount
	ExpectedOut token.Amount
	MinOut      token.Amount
	// PriceImpactBps compares the execution price with the pre-trade spot price.
	PriceImpactBps uint64
}

// Engine holds the protocol fee charged on the input side.
type Engine struct {
	FeeNumerator   uint64
	FeeDenominator uint64
}

// DefaultEngine uses Raydium AMM v4's 0.25% trade fee.
func DefaultEngine() Engine {
	return Engine{FeeNumerator: 25, FeeDenominator: 10_000}
}

// Quote prices amountIn against the snapshot. The input mint selects the direction.
func (e Engine) Quote(snap PoolSnapshot, amountIn token.Amount, slippage Slippage) (Quote, error) {
	if err := slippage.Validate(); err != nil {
		return Quote{}, err
	}
	if err := e.validate(); err != nil {
		return Quote{}, err
	}
	dir, reserveIn, reserveOut, outMint, outDecimals, err := snap.orient(amountIn.Mint)
	if err != nil {
		return Quote{}, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return Quote{}, fmt.Errorf("quote %s: %w", dir, types.ErrInsufficientLiquidity)
	}

	in := new(big.Int).SetUint64(amountIn.Raw)
	fee := e.fee(in)
	out := constantProductOut(new(big.Int).Sub(in, fee), reserveIn, reserveOut)

	// minOut = floor(out * (den - num) / den)
	minOut := new(big.Int).Mul(out, new(big.Int).SetUint64(slippage.Denominator-slippage.Numerator))
	minOut.Quo(minOut, new(big.Int).SetUint64(slippage.Denominator))

	return Quote{
		Direction:      dir,
		AmountIn:       amountIn,
		Fee:            token.New(amountIn.Mint, fee.Uint64(), amountIn.Decimals),
		ExpectedOut:    token.New(outMint, out.Uint64(), outDecimals),
		MinOut:         token.New(outMint, minOut.Uint64(), outDecimals),
		PriceImpactBps: priceImpactBps(in, out, reserveIn, reserveOut),
	}, nil
}

// AmountIn returns the smallest input of the opposite token whose output is at least desiredOut.
func (e Engine) AmountIn(snap PoolSnapshot, desiredOut token.Amount) (token.Amount, error) {
	if err := e.validate(); err != nil {
		return token.Amount{}, err
	}
	// Orient on the output mint, then swap roles.
	dir, reserveOut, reserveIn, inMint, inDecimals, err := snap.orient(desiredOut.Mint)
	if err != nil {
		return token.Amount{}, err
	}
	if desiredOut.Raw >= reserveOut {
		return token.Amount{}, fmt.Errorf("want %d of %d reserve (%s): %w", desiredOut.Raw, reserveOut, dir, types.ErrInsufficientLiquidity)
	}
	if desiredOut.Raw == 0 {
		return token.New(inMint, 0, inDecimals), nil
	}

	out := new(big.Int).SetUint64(desiredOut.Raw)
	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)

	// net input after fee: ceil(rIn*out / (rOut-out))
	net := ceilDiv(new(big.Int).Mul(rIn, out), new(big.Int).Sub(rOut, out))

	// gross input: ceil(net*den / (den-num))
	den := new(big.Int).SetUint64(e.FeeDenominator)
	gross := ceilDiv(new(big.Int).Mul(net, den), new(big.Int).Sub(den, new(big.Int).SetUint64(e.FeeNumerator)))
	if !gross.IsUint64() {
		return token.Amount{}, types.ErrAmountOverflow
	}
	return token.New(inMint, gross.Uint64(), inDecimals), nil
}

// SpotPrice returns quote per base scaled by 1e9, in raw units.
func (s PoolSnapshot) SpotPrice() uint64 {
	if s.BaseReserve == 0 {
		return 0
	}
	price := new(big.Int).SetUint64(s.QuoteReserve)
	price.Mul(price, big.NewInt(1e9))
	price.Quo(price, new(big.Int).SetUint64(s.BaseReserve))
	if !price.IsUint64() {
		return 0
	}
	return price.Uint64()
}

// orient returns the direction and reserves when mint is deposited.
func (s PoolSnapshot) orient(mint solana.PublicKey) (Direction, uint64, uint64, solana.PublicKey, uint8, error) {
	switch {
	case mint.Equals(s.BaseMint):
		return BaseIn, s.BaseReserve, s.QuoteReserve, s.QuoteMint, s.QuoteDecimals, nil
	case mint.Equals(s.QuoteMint):
		return QuoteIn, s.QuoteReserve, s.BaseReserve, s.BaseMint, s.BaseDecimals, nil
	default:
		return 0, 0, 0, solana.PublicKey{}, 0, fmt.Errorf("mint %s is not in pool %s/%s: %w", mint, s.BaseMint, s.QuoteMint, types.ErrMixedTokens)
	}
}

func (e Engine) validate() error {
	if e.FeeDenominator == 0 || e.FeeNumerator >= e.FeeDenominator {
		return fmt.Errorf("invalid fee %d/%d", e.FeeNumerator, e.FeeDenominator)
	}
	return nil
}

// fee = ceil(in * num / den)
func (e Engine) fee(in *big.Int) *big.Int {
	return ceilDiv(new(big.Int).Mul(in, new(big.Int).SetUint64(e.FeeNumerator)), new(big.Int).SetUint64(e.FeeDenominator))
}

// constantProductOut computes reserveOut - reserveIn*reserveOut/(reserveIn+in),
// rounded down in the pool's favor.
func constantProductOut(in *big.Int, reserveIn, reserveOut uint64) *big.Int {
	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)
	num := new(big.Int).Mul(rOut, in)
	den := new(big.Int).Add(rIn, in)
	return num.Quo(num, den)
}

// priceImpactBps = (spot - exec) / spot * 10000 with prices expressed as out per in.
func priceImpactBps(in, out *big.Int, reserveIn, reserveOut uint64) uint64 {
	if in.Sign() == 0 || reserveIn == 0 {
		return 0
	}
	// spot = rOut/rIn, exec = out/in; impact = 1 - (out*rIn)/(in*rOut)
	execScaled := new(big.Int).Mul(out, new(big.Int).SetUint64(reserveIn))
	execScaled.Mul(execScaled, big.NewInt(10_000))
	spotScaled := new(big.Int).Mul(in, new(big.Int).SetUint64(reserveOut))
	ratio := execScaled.Quo(execScaled, spotScaled)
	if ratio.Cmp(big.NewInt(10_000)) >= 0 {
		return 0
	}
	return 10_000 - ratio.Uint64()
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
