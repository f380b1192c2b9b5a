package raydium

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/raydium-launch-sdk/pkg/quote"
)

// PoolStateSize is the serialized size of a v4 pool account.
const PoolStateSize = 752

// PoolState is the AMM v4 pool account (LIQUIDITY_STATE_LAYOUT_V4).
// u128 counters are kept as raw little-endian bytes.
type PoolState struct {
	Status                 uint64
	Nonce                  uint64
	MaxOrder               uint64
	Depth                  uint64
	BaseDecimal            uint64
	QuoteDecimal           uint64
	State                  uint64
	ResetFlag              uint64
	MinSize                uint64
	VolMaxCutRatio         uint64
	AmountWaveRatio        uint64
	BaseLotSize            uint64
	QuoteLotSize           uint64
	MinPriceMultiplier     uint64
	MaxPriceMultiplier     uint64
	SystemDecimalValue     uint64
	MinSeparateNumerator   uint64
	MinSeparateDenominator uint64
	TradeFeeNumerator      uint64
	TradeFeeDenominator    uint64
	PnlNumerator           uint64
	PnlDenominator         uint64
	SwapFeeNumerator       uint64
	SwapFeeDenominator     uint64
	BaseNeedTakePnl        uint64
	QuoteNeedTakePnl       uint64
	QuoteTotalPnl          uint64
	BaseTotalPnl           uint64
	PoolOpenTime           uint64
	PunishPcAmount         uint64
	PunishCoinAmount       uint64
	OrderbookToInitTime    uint64

	SwapBaseInAmount   [16]byte
	SwapQuoteOutAmount [16]byte
	SwapBase2QuoteFee  uint64
	SwapQuoteInAmount  [16]byte
	SwapBaseOutAmount  [16]byte
	SwapQuote2BaseFee  uint64

	BaseVault       solana.PublicKey
	QuoteVault      solana.PublicKey
	BaseMint        solana.PublicKey
	QuoteMint       solana.PublicKey
	LPMint          solana.PublicKey
	OpenOrders      solana.PublicKey
	MarketID        solana.PublicKey
	MarketProgramID solana.PublicKey
	TargetOrders    solana.PublicKey
	WithdrawQueue   solana.PublicKey
	LPVault         solana.PublicKey
	Owner           solana.PublicKey

	LPReserve uint64
	Padding   [3]uint64
}

// DecodePoolState parses a v4 pool account.
func DecodePoolState(data []byte) (PoolState, error) {
	var st PoolState
	if len(data) < PoolStateSize {
		return st, fmt.Errorf("pool account is %d bytes, want %d", len(data), PoolStateSize)
	}
	if err := bin.NewBinDecoder(data[:PoolStateSize]).Decode(&st); err != nil {
		return st, fmt.Errorf("decode pool: %w", err)
	}
	return st, nil
}

// Engine returns a quote engine charging this pool's swap fee.
func (s PoolState) Engine() quote.Engine {
	if s.SwapFeeDenominator == 0 {
		return quote.DefaultEngine()
	}
	return quote.Engine{FeeNumerator: s.SwapFeeNumerator, FeeDenominator: s.SwapFeeDenominator}
}

// Snapshot turns vault balances into tradable reserves. Fees owed to the
// protocol (need-take pnl) are excluded.
func (s PoolState) Snapshot(baseVaultAmount, quoteVaultAmount, lpSupply uint64) quote.PoolSnapshot {
	return quote.PoolSnapshot{
		BaseMint:      s.BaseMint,
		QuoteMint:     s.QuoteMint,
		BaseDecimals:  uint8(s.BaseDecimal),
		QuoteDecimals: uint8(s.QuoteDecimal),
		BaseReserve:   saturatingSub(baseVaultAmount, s.BaseNeedTakePnl),
		QuoteReserve:  saturatingSub(quoteVaultAmount, s.QuoteNeedTakePnl),
		LPDecimals:    LPDecimals(uint8(s.BaseDecimal)),
		LPSupply:      lpSupply,
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
