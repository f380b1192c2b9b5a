package quote

import (
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/raydium-launch-sdk/pkg/token"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

var baseMint = solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")

func launchSnapshot() PoolSnapshot {
	// 1,000,000 tokens (6 decimals) against 10 SOL.
	return PoolSnapshot{
		BaseMint:      baseMint,
		QuoteMint:     solana.WrappedSol,
		BaseDecimals:  6,
		QuoteDecimals: 9,
		BaseReserve:   1_000_000_000_000,
		QuoteReserve:  10_000_000_000,
		LPDecimals:    6,
	}
}

func TestQuoteKnownValue(t *testing.T) {
	snap := launchSnapshot()
	// 1 SOL in: fee 2_500_000, net 997_500_000.
	// out = 1e12 * 997_500_000 / (1e10 + 997_500_000) = 90_702_432_370 (floor)
	q, err := DefaultEngine().Quote(snap, token.Lamports(1_000_000_000), SlippageFromBps(100))
	require.NoError(t, err)

	assert.Equal(t, QuoteIn, q.Direction)
	assert.Equal(t, uint64(2_500_000), q.Fee.Raw)
	assert.Equal(t, uint64(90_702_432_370), q.ExpectedOut.Raw)
	assert.Equal(t, baseMint, q.ExpectedOut.Mint)
	assert.Equal(t, uint8(6), q.ExpectedOut.Decimals)
	// 99% of expected, floored.
	assert.Equal(t, uint64(89_795_408_046), q.MinOut.Raw)
	assert.Greater(t, q.PriceImpactBps, uint64(0))
}

func TestQuoteDirectionFollowsInputMint(t *testing.T) {
	snap := launchSnapshot()
	q, err := DefaultEngine().Quote(snap, token.New(baseMint, 1_000_000, 6), SlippageFromBps(0))
	require.NoError(t, err)
	assert.Equal(t, BaseIn, q.Direction)
	assert.True(t, q.ExpectedOut.IsNative())
	assert.Equal(t, q.ExpectedOut.Raw, q.MinOut.Raw)

	other := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	_, err = DefaultEngine().Quote(snap, token.New(other, 1, 6), SlippageFromBps(0))
	assert.ErrorIs(t, err, types.ErrMixedTokens)
}

func TestQuoteRejectsInvalidSlippage(t *testing.T) {
	snap := launchSnapshot()
	for _, s := range []Slippage{{1, 1}, {2, 1}, {1, 0}, SlippageFromBps(10_000), SlippageFromPercent(100)} {
		_, err := DefaultEngine().Quote(snap, token.Lamports(1), s)
		assert.ErrorIs(t, err, types.ErrInvalidSlippage, "slippage %s", s)
	}
	_, err := DefaultEngine().Quote(snap, token.Lamports(1), SlippageFromBps(9_999))
	assert.NoError(t, err)
	assert.Equal(t, "500/10000", SlippageFromBps(500).String())
	assert.NoError(t, SlippageFromPercent(5).Validate())
}

func TestQuoteEmptyPool(t *testing.T) {
	snap := launchSnapshot()
	snap.BaseReserve = 0
	_, err := DefaultEngine().Quote(snap, token.Lamports(1), SlippageFromBps(0))
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestMinOutDecreasesWithSlippage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	engine := DefaultEngine()

	for i := 0; i < 200; i++ {
		snap := launchSnapshot()
		snap.BaseReserve = 1 + uint64(rng.Int63n(1e15))
		snap.QuoteReserve = 1 + uint64(rng.Int63n(1e13))
		in := token.Lamports(1 + uint64(rng.Int63n(1e11)))

		prev := ^uint64(0)
		for bps := uint64(0); bps < 10_000; bps += 250 {
			q, err := engine.Quote(snap, in, SlippageFromBps(bps))
			require.NoError(t, err)
			assert.LessOrEqual(t, q.MinOut.Raw, q.ExpectedOut.Raw)
			assert.LessOrEqual(t, q.MinOut.Raw, prev)
			prev = q.MinOut.Raw
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	engine := DefaultEngine()

	for i := 0; i < 500; i++ {
		snap := launchSnapshot()
		snap.BaseReserve = 1_000 + uint64(rng.Int63n(1e15))
		snap.QuoteReserve = 1_000 + uint64(rng.Int63n(1e13))
		in := token.Lamports(1 + uint64(rng.Int63n(1e12)))

		q, err := engine.Quote(snap, in, SlippageFromBps(0))
		require.NoError(t, err)

		back, err := engine.AmountIn(snap, q.ExpectedOut)
		require.NoError(t, err)
		assert.True(t, back.IsNative())
		// The recovered input never exceeds the original and still buys the same output.
		assert.LessOrEqual(t, back.Raw, in.Raw)

		again, err := engine.Quote(snap, back, SlippageFromBps(0))
		require.NoError(t, err)
		assert.Equal(t, q.ExpectedOut.Raw, again.ExpectedOut.Raw)
	}
}

func TestAmountInExceedsReserve(t *testing.T) {
	snap := launchSnapshot()
	_, err := DefaultEngine().AmountIn(snap, token.New(baseMint, snap.BaseReserve, 6))
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestSpotPrice(t *testing.T) {
	// 10 SOL / 1e6 tokens in raw units: 1e10 * 1e9 / 1e12 = 1e7
	assert.Equal(t, uint64(10_000_000), launchSnapshot().SpotPrice())
}
