package raydium

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// Instruction tags.
const (
	TagInitialize2 uint8 = 1
	TagWithdraw    uint8 = 4
	TagSwapBaseIn  uint8 = 9
)

type initialize2Data struct {
	Tag            uint8
	Nonce          uint8
	OpenTime       uint64
	InitPcAmount   uint64
	InitCoinAmount uint64
}

type swapBaseInData struct {
	Tag          uint8
	AmountIn     uint64
	MinAmountOut uint64
}

type withdrawData struct {
	Tag    uint8
	Amount uint64
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Initialize2Params creates a pool and seeds it with both tokens.
type Initialize2Params struct {
	Keys        PoolKeys
	Owner       solana.PublicKey
	OwnerBase   solana.PublicKey
	OwnerQuote  solana.PublicKey
	OwnerLP     solana.PublicKey
	OpenTime    uint64
	BaseAmount  uint64
	QuoteAmount uint64
}

// Initialize2 builds the pool creation instruction.
func Initialize2(p Initialize2Params) (solana.Instruction, error) {
	if err := types.ValidateAmount("baseAmount", p.BaseAmount); err != nil {
		return nil, err
	}
	if err := types.ValidateAmount("quoteAmount", p.QuoteAmount); err != nil {
		return nil, err
	}
	data, err := encode(initialize2Data{
		Tag:            TagInitialize2,
		Nonce:          p.Keys.AuthorityNonce,
		OpenTime:       p.OpenTime,
		InitPcAmount:   p.QuoteAmount,
		InitCoinAmount: p.BaseAmount,
	})
	if err != nil {
		return nil, fmt.Errorf("encode initialize2: %w", err)
	}
	k := p.Keys
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(constants.TokenProgramID, false, false),
		solana.NewAccountMeta(constants.AssociatedTokenProgramID, false, false),
		solana.NewAccountMeta(constants.SystemProgramID, false, false),
		solana.NewAccountMeta(constants.SysvarRentProgramID, false, false),
		solana.NewAccountMeta(k.ID, true, false),
		solana.NewAccountMeta(k.Authority, false, false),
		solana.NewAccountMeta(k.OpenOrders, true, false),
		solana.NewAccountMeta(k.LPMint, true, false),
		solana.NewAccountMeta(k.BaseMint, false, false),
		solana.NewAccountMeta(k.QuoteMint, false, false),
		solana.NewAccountMeta(k.BaseVault, true, false),
		solana.NewAccountMeta(k.QuoteVault, true, false),
		solana.NewAccountMeta(k.TargetOrders, true, false),
		solana.NewAccountMeta(k.Config, false, false),
		solana.NewAccountMeta(k.FeeDestination, true, false),
		solana.NewAccountMeta(k.MarketProgramID, false, false),
		solana.NewAccountMeta(k.MarketID, false, false),
		solana.NewAccountMeta(p.Owner, true, true),
		solana.NewAccountMeta(p.OwnerBase, true, false),
		solana.NewAccountMeta(p.OwnerQuote, true, false),
		solana.NewAccountMeta(p.OwnerLP, true, false),
	}
	return solana.NewInstruction(k.ProgramID, metas, data), nil
}

// SwapParams swaps an exact input for at least MinAmountOut.
type SwapParams struct {
	Keys         PoolKeys
	Owner        solana.PublicKey
	Source       solana.PublicKey
	Destination  solana.PublicKey
	AmountIn     uint64
	MinAmountOut uint64
}

// SwapBaseIn builds an exact-input swap. The direction follows the source account's mint.
func SwapBaseIn(p SwapParams) (solana.Instruction, error) {
	if err := types.ValidateAmount("amountIn", p.AmountIn); err != nil {
		return nil, err
	}
	data, err := encode(swapBaseInData{Tag: TagSwapBaseIn, AmountIn: p.AmountIn, MinAmountOut: p.MinAmountOut})
	if err != nil {
		return nil, fmt.Errorf("encode swap: %w", err)
	}
	k := p.Keys
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(constants.TokenProgramID, false, false),
		solana.NewAccountMeta(k.ID, true, false),
		solana.NewAccountMeta(k.Authority, false, false),
		solana.NewAccountMeta(k.OpenOrders, true, false),
		solana.NewAccountMeta(k.TargetOrders, true, false),
		solana.NewAccountMeta(k.BaseVault, true, false),
		solana.NewAccountMeta(k.QuoteVault, true, false),
		solana.NewAccountMeta(k.MarketProgramID, false, false),
		solana.NewAccountMeta(k.MarketID, true, false),
		solana.NewAccountMeta(k.MarketBids, true, false),
		solana.NewAccountMeta(k.MarketAsks, true, false),
		solana.NewAccountMeta(k.MarketEventQueue, true, false),
		solana.NewAccountMeta(k.MarketBaseVault, true, false),
		solana.NewAccountMeta(k.MarketQuoteVault, true, false),
		solana.NewAccountMeta(k.MarketAuthority, false, false),
		solana.NewAccountMeta(p.Source, true, false),
		solana.NewAccountMeta(p.Destination, true, false),
		solana.NewAccountMeta(p.Owner, false, true),
	}
	return solana.NewInstruction(k.ProgramID, metas, data), nil
}

// WithdrawParams burns LP tokens for both pool tokens.
type WithdrawParams struct {
	Keys       PoolKeys
	Owner      solana.PublicKey
	OwnerLP    solana.PublicKey
	OwnerBase  solana.PublicKey
	OwnerQuote solana.PublicKey
	Amount     uint64
}

// Withdraw builds the remove-liquidity instruction.
func Withdraw(p WithdrawParams) (solana.Instruction, error) {
	if err := types.ValidateAmount("amount", p.Amount); err != nil {
		return nil, err
	}
	data, err := encode(withdrawData{Tag: TagWithdraw, Amount: p.Amount})
	if err != nil {
		return nil, fmt.Errorf("encode withdraw: %w", err)
	}
	k := p.Keys
	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(constants.TokenProgramID, false, false),
		solana.NewAccountMeta(k.ID, true, false),
		solana.NewAccountMeta(k.Authority, false, false),
		solana.NewAccountMeta(k.OpenOrders, true, false),
		solana.NewAccountMeta(k.TargetOrders, true, false),
		solana.NewAccountMeta(k.LPMint, true, false),
		solana.NewAccountMeta(k.BaseVault, true, false),
		solana.NewAccountMeta(k.QuoteVault, true, false),
		solana.NewAccountMeta(k.WithdrawQueue, true, false),
		solana.NewAccountMeta(k.LPVault, true, false),
		solana.NewAccountMeta(k.MarketProgramID, false, false),
		solana.NewAccountMeta(k.MarketID, true, false),
		solana.NewAccountMeta(k.MarketBaseVault, true, false),
		solana.NewAccountMeta(k.MarketQuoteVault, true, false),
		solana.NewAccountMeta(k.MarketAuthority, false, false),
		solana.NewAccountMeta(p.OwnerLP, true, false),
		solana.NewAccountMeta(p.OwnerBase, true, false),
		solana.NewAccountMeta(p.OwnerQuote, true, false),
		solana.NewAccountMeta(p.Owner, false, true),
		solana.NewAccountMeta(k.MarketEventQueue, true, false),
		solana.NewAccountMeta(k.MarketBids, true, false),
		solana.NewAccountMeta(k.MarketAsks, true, false),
	}
	return solana.NewInstruction(k.ProgramID, metas, data), nil
}
