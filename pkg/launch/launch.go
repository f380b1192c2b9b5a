// Package launch creates a Raydium AMM v4 pool and buys from it in the same
// relay bundle, so nobody can trade against the pool before the buyer does.
//
// Example usage:
//
//	orch, err := launch.New(launch.Deps{
//	    Accounts:    rpcClient,
//	    Blockhashes: rpcClient,
//	    Relay:       jitoClient,
//	    Listener:    listener,
//	    Tips:        tipCache,
//	}, launch.Wallets{Funding: funding, Buyer: buyer}, launch.DefaultConfig(), logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := orch.CreateAndBuy(ctx, launch.Request{
//	    MarketID:    marketID,
//	    BaseAmount:  decimal.NewFromInt(800_000_000),
//	    QuoteAmount: decimal.NewFromInt(10),
//	    BuyAmount:   decimal.NewFromInt(1),
//	})
package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/raydium-launch-sdk/pkg/bundle"
	"github.com/ninja0404/raydium-launch-sdk/pkg/config"
	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
	"github.com/ninja0404/raydium-launch-sdk/pkg/market"
	"github.com/ninja0404/raydium-launch-sdk/pkg/preflight"
	"github.com/ninja0404/raydium-launch-sdk/pkg/quote"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

// Accounts reads chain accounts index-aligned with keys; missing accounts are nil.
type Accounts interface {
	GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) ([]*solanarpc.Account, error)
}

// Relay submits bundles.
type Relay interface {
	SendBundle(ctx context.Context, txs []*solana.Transaction) (string, error)
}

// Awaiter waits for a bundle's settlement verdict.
type Awaiter interface {
	Await(ctx context.Context, bundleID string, timeout time.Duration) (bundle.Verdict, error)
}

// Simulator dry-runs a transaction.
type Simulator interface {
	Simulate(ctx context.Context, tx *solana.Transaction) (*solanarpc.SimulateTransactionResult, error)
}

// TransactionSender sends a single transaction outside of a bundle.
type TransactionSender interface {
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// InflightSource reports relay-side bundle statuses.
type InflightSource interface {
	GetInflightBundleStatuses(ctx context.Context, bundleIDs []string) ([]jito.InflightStatus, error)
}

// BundleStatusSource reports bundles the relay has seen land.
type BundleStatusSource interface {
	LandedBundles(ctx context.Context, bundleIDs []string) ([]jito.BundleStatus, error)
}

// SignatureSource reports chain-side transaction statuses.
type SignatureSource interface {
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*solanarpc.SignatureStatusesResult, error)
}

// Deps are the collaborators of an Orchestrator. Accounts, Blockhashes,
// Relay, Listener and Tips are required; the rest enable optional operations.
type Deps struct {
	Accounts    Accounts
	Blockhashes txbuilder.BlockhashSource
	Relay       Relay
	Listener    Awaiter
	Tips        bundle.TipAccountProvider

	Simulator  Simulator
	Sender     TransactionSender
	Inflight   InflightSource
	Bundles    BundleStatusSource
	Signatures SignatureSource
}

// Wallets sign the launch. FeePayer pays the relay tip and defaults to Funding.
type Wallets struct {
	Funding  wallet.Signer
	Buyer    wallet.Signer
	FeePayer wallet.Signer
}

// Config holds the launch knobs.
type Config struct {
	Network  config.Network
	Programs constants.Programs
	Bundle   config.BundleConfig
}

// DefaultConfig targets mainnet with the default bundle settings.
func DefaultConfig() Config {
	return Config{
		Network:  config.NetworkMainnet,
		Programs: constants.MainnetPrograms,
		Bundle:   config.DefaultBundleConfig(),
	}
}

// BuySide selects which pool token the buyer spends.
type BuySide int

const (
	// BuyWithQuote spends the quote token (usually WSOL) for base.
	BuyWithQuote BuySide = iota
	// BuyWithBase spends the base token for quote.
	BuyWithBase
)

// Request describes one pool launch. Amounts are UI values.
type Request struct {
	MarketID    solana.PublicKey
	BaseAmount  decimal.Decimal
	QuoteAmount decimal.Decimal
	BuyAmount   decimal.Decimal
	BuyWith     BuySide
	// OpenTime delays trading; zero opens the pool immediately.
	OpenTime time.Time
}

func (r Request) validate() error {
	if err := types.ValidatePublicKey("market", r.MarketID); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{{"baseAmount", r.BaseAmount}, {"quoteAmount", r.QuoteAmount}, {"buyAmount", r.BuyAmount}} {
		if !f.v.IsPositive() {
			return &types.ValidationError{Field: f.name, Message: "must be greater than 0", Err: types.ErrZeroAmount}
		}
	}
	if r.BuyWith != BuyWithQuote && r.BuyWith != BuyWithBase {
		return types.NewValidationError("buyWith", fmt.Sprintf("unknown side %d", r.BuyWith))
	}
	return nil
}

// Result is a launch whose bundle landed.
type Result struct {
	OpID                string
	PoolID              solana.PublicKey
	LPMint              solana.PublicKey
	BundleID            string
	CreatePoolSignature solana.Signature
	BuySignature        solana.Signature
	TipSignature        solana.Signature
	Slot                uint64
	Quote               quote.Quote
}

// Orchestrator runs launches. It is safe for concurrent use.
type Orchestrator struct {
	deps    Deps
	wallets Wallets
	cfg     Config

	validator *preflight.Validator
	resolver  *market.Resolver
	assembler *txbuilder.Assembler
	builder   *bundle.Builder
	engine    quote.Engine
	slippage  quote.Slippage
	log       zerolog.Logger
}

// New validates deps and wallets and wires the pipeline.
func New(deps Deps, wallets Wallets, cfg Config, log zerolog.Logger) (*Orchestrator, error) {
	switch {
	case deps.Accounts == nil || deps.Blockhashes == nil:
		return nil, types.ErrNilRPC
	case deps.Relay == nil:
		return nil, errors.New("relay is required")
	case deps.Listener == nil:
		return nil, errors.New("result listener is required")
	case deps.Tips == nil:
		return nil, errors.New("tip account provider is required")
	case wallets.Funding == nil || wallets.Buyer == nil:
		return nil, types.ErrNilSigner
	}
	if wallets.FeePayer == nil {
		wallets.FeePayer = wallets.Funding
	}
	if cfg.Programs.AmmV4.IsZero() {
		cfg.Programs = cfg.Network.Programs()
	}
	if cfg.Bundle.ResultTimeout <= 0 {
		cfg.Bundle.ResultTimeout = config.DefaultBundleConfig().ResultTimeout
	}

	slippage := quote.SlippageFromBps(cfg.Bundle.SlippageBps)
	if err := slippage.Validate(); err != nil {
		return nil, err
	}
	engine := quote.DefaultEngine()
	if cfg.Bundle.FeeDenominator != 0 {
		engine = quote.Engine{FeeNumerator: cfg.Bundle.FeeNumerator, FeeDenominator: cfg.Bundle.FeeDenominator}
	}

	return &Orchestrator{
		deps:      deps,
		wallets:   wallets,
		cfg:       cfg,
		validator: preflight.NewValidator(deps.Accounts, log),
		resolver:  market.NewResolver(deps.Accounts, log),
		assembler: txbuilder.NewAssembler(deps.Blockhashes, cfg.Bundle.BlockhashRetryDelay, log),
		builder:   bundle.NewBuilder(deps.Tips, cfg.Bundle.TipLamports, cfg.Bundle.MaxTransactions, log),
		engine:    engine,
		slippage:  slippage,
		log:       log,
	}, nil
}

// explorerURL links a signature on solscan for the configured cluster.
func (o *Orchestrator) explorerURL(sig solana.Signature) string {
	if o.cfg.Network == config.NetworkDevnet {
		return fmt.Sprintf("https://solscan.io/tx/%s?cluster=devnet", sig)
	}
	return fmt.Sprintf("https://solscan.io/tx/%s", sig)
}
