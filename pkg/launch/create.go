package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ninja0404/raydium-launch-sdk/pkg/bundle"
	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/market"
	"github.com/ninja0404/raydium-launch-sdk/pkg/preflight"
	"github.com/ninja0404/raydium-launch-sdk/pkg/quote"
	"github.com/ninja0404/raydium-launch-sdk/pkg/raydium"
	"github.com/ninja0404/raydium-launch-sdk/pkg/token"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

// launchPlan is everything derived from a request before any transaction exists.
type launchPlan struct {
	market *market.Info
	keys   raydium.PoolKeys

	base     token.Amount
	quote    token.Amount
	amountIn token.Amount
	openTime uint64
}

func (p *launchPlan) snapshot() quote.PoolSnapshot {
	return quote.PoolSnapshot{
		BaseMint:      p.keys.BaseMint,
		QuoteMint:     p.keys.QuoteMint,
		BaseDecimals:  p.keys.BaseDecimals,
		QuoteDecimals: p.keys.QuoteDecimals,
		BaseReserve:   p.base.Raw,
		QuoteReserve:  p.quote.Raw,
		LPDecimals:    p.keys.LPDecimals,
	}
}

// nativeDeposit is the lamports the funding wallet wraps for the pool.
func (p *launchPlan) nativeDeposit() uint64 {
	switch {
	case p.base.IsNative():
		return p.base.Raw
	case p.quote.IsNative():
		return p.quote.Raw
	default:
		return 0
	}
}

// CreateAndBuy creates the pool for req.MarketID, buys from it, and submits
// both as one tipped bundle. It returns once the relay settles the bundle or
// the result timeout expires.
//
// A *types.RejectedError means nothing landed. A *types.AmbiguousSettlementError
// means the bundle may still land; reconcile before retrying.
func (o *Orchestrator) CreateAndBuy(ctx context.Context, req Request) (*Result, error) {
	opID := uuid.NewString()
	log := o.log.With().Str("op", "create_and_buy").Str("op_id", opID).Logger()
	start := time.Now()

	if err := req.validate(); err != nil {
		return nil, err
	}

	plan, err := o.plan(ctx, req)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("pool", plan.keys.ID.String()).Str("market", plan.keys.MarketID.String()).Logger()

	if _, err := o.validator.Check(ctx, o.requirements(plan)); err != nil {
		return nil, err
	}

	createTx, buyTx, q, err := o.assembleLaunch(ctx, plan)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("amount_in", q.AmountIn.String()).
		Str("expected_out", q.ExpectedOut.String()).
		Str("min_out", q.MinOut.String()).
		Uint64("price_impact_bps", q.PriceImpactBps).
		Msg("buy quoted")

	if o.cfg.Bundle.SimulateCreatePool && o.deps.Simulator != nil {
		o.simulate(ctx, log, createTx)
	}

	b, err := o.builder.Build(ctx, o.wallets.FeePayer, createTx, buyTx)
	if err != nil {
		return nil, err
	}

	bundleID, err := o.submit(ctx, b)
	if err != nil {
		return nil, err
	}
	sigs := b.Signatures()
	log = log.With().Str("bundle_id", bundleID).Logger()
	log.Info().
		Str("create_pool_tx", o.explorerURL(sigs[0])).
		Str("buy_tx", o.explorerURL(sigs[1])).
		Msg("bundle submitted")

	verdict, err := o.deps.Listener.Await(ctx, bundleID, o.cfg.Bundle.ResultTimeout)
	if err != nil {
		log.Warn().Err(err).Msg("could not await bundle result")
		return nil, &types.AmbiguousSettlementError{BundleID: bundleID, PoolID: plan.keys.ID.String(), Reason: err.Error(), Signatures: sigs}
	}

	switch verdict.State {
	case bundle.StateAccepted:
		log.Info().Uint64("slot", verdict.Slot).Dur("elapsed", time.Since(start)).Msg("bundle landed")
		return &Result{
			OpID:                opID,
			PoolID:              plan.keys.ID,
			LPMint:              plan.keys.LPMint,
			BundleID:            bundleID,
			CreatePoolSignature: sigs[0],
			BuySignature:        sigs[1],
			TipSignature:        sigs[len(sigs)-1],
			Slot:                verdict.Slot,
			Quote:               q,
		}, nil
	case bundle.StateRejected:
		log.Warn().Str("reason", verdict.Reason).Msg("bundle rejected")
		return nil, &types.RejectedError{BundleID: bundleID, PoolID: plan.keys.ID.String(), Reason: verdict.Reason, Signatures: sigs}
	default:
		reason := verdict.Reason
		if reason == "" {
			reason = verdict.State.String()
		}
		log.Warn().Str("state", verdict.State.String()).Str("reason", reason).Msg("bundle outcome unknown")
		return nil, &types.AmbiguousSettlementError{BundleID: bundleID, PoolID: plan.keys.ID.String(), Reason: reason, Signatures: sigs}
	}
}

// plan resolves the market, derives the pool and converts amounts.
func (o *Orchestrator) plan(ctx context.Context, req Request) (*launchPlan, error) {
	info, err := o.resolver.Resolve(ctx, req.MarketID)
	if err != nil {
		if errors.Is(err, types.ErrMarketNotFound) {
			return nil, types.WrapValidation("market", types.ErrMarketNotFound, "%v", err)
		}
		return nil, fmt.Errorf("resolve market: %w", err)
	}
	if !info.ProgramID.Equals(o.cfg.Programs.OpenBook) {
		return nil, types.WrapValidation("market", types.ErrMarketNotFound,
			"%s is owned by %s, not the OpenBook program", req.MarketID, info.ProgramID)
	}
	for _, p := range []solana.PublicKey{info.BaseTokenProgram, info.QuoteTokenProgram} {
		if !p.Equals(constants.TokenProgramID) {
			return nil, types.NewValidationError("market", fmt.Sprintf("mint owned by %s; AMM v4 pools hold SPL Token mints only", p))
		}
	}

	keys, err := raydium.DerivePoolKeys(o.cfg.Programs, info)
	if err != nil {
		return nil, &types.ConstructionError{Step: "derive pool keys", Err: err}
	}

	plan := &launchPlan{market: info, keys: keys}
	if plan.base, err = token.FromDecimal(req.BaseAmount, keys.BaseMint, keys.BaseDecimals); err != nil {
		return nil, err
	}
	if plan.quote, err = token.FromDecimal(req.QuoteAmount, keys.QuoteMint, keys.QuoteDecimals); err != nil {
		return nil, err
	}
	if req.BuyWith == BuyWithBase {
		plan.amountIn, err = token.FromDecimal(req.BuyAmount, keys.BaseMint, keys.BaseDecimals)
	} else {
		plan.amountIn, err = token.FromDecimal(req.BuyAmount, keys.QuoteMint, keys.QuoteDecimals)
	}
	if err != nil {
		return nil, err
	}
	for _, a := range []struct {
		name string
		v    token.Amount
	}{{"baseAmount", plan.base}, {"quoteAmount", plan.quote}, {"buyAmount", plan.amountIn}} {
		if err := types.ValidateAmount(a.name, a.v.Raw); err != nil {
			return nil, err
		}
	}
	if !req.OpenTime.IsZero() {
		plan.openTime = uint64(req.OpenTime.Unix())
	}
	return plan, nil
}

// requirements adds the tip to whichever launch wallet pays it.
func (o *Orchestrator) requirements(p *launchPlan) preflight.Requirements {
	funding := o.wallets.Funding.PublicKey()
	buyer := o.wallets.Buyer.PublicKey()
	tipPayer := o.wallets.FeePayer.PublicKey()

	req := preflight.Requirements{
		Funding:         funding,
		FundingRequired: saturatingAdd(p.nativeDeposit(), o.cfg.Bundle.FundingReserveLamports),
		Buyer:           buyer,
		BuyerRequired:   o.cfg.Bundle.BuyerReserveLamports,
	}
	if p.amountIn.IsNative() {
		req.BuyerRequired = saturatingAdd(req.BuyerRequired, p.amountIn.Raw)
	}
	switch {
	case tipPayer.Equals(funding):
		req.FundingRequired = saturatingAdd(req.FundingRequired, o.cfg.Bundle.TipLamports)
	case tipPayer.Equals(buyer):
		req.BuyerRequired = saturatingAdd(req.BuyerRequired, o.cfg.Bundle.TipLamports)
	}
	return req
}

// assembleLaunch builds both transactions concurrently, each on its own fresh blockhash.
func (o *Orchestrator) assembleLaunch(ctx context.Context, p *launchPlan) (*solana.Transaction, *solana.Transaction, quote.Quote, error) {
	var (
		createTx, buyTx *solana.Transaction
		q               quote.Quote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ixs, err := o.createPoolInstructions(p)
		if err != nil {
			return &types.ConstructionError{Step: "create pool instructions", Err: err}
		}
		tx, err := o.assemble(gctx, o.wallets.Funding, ixs)
		if err != nil {
			return &types.ConstructionError{Step: "assemble create pool", Err: err}
		}
		createTx = tx
		return nil
	})
	g.Go(func() error {
		quoted, err := o.engine.Quote(p.snapshot(), p.amountIn, o.slippage)
		if err != nil {
			return &types.ConstructionError{Step: "quote buy", Err: err}
		}
		ixs, err := o.buyInstructions(p, quoted)
		if err != nil {
			return &types.ConstructionError{Step: "buy instructions", Err: err}
		}
		tx, err := o.assemble(gctx, o.wallets.Buyer, ixs)
		if err != nil {
			return &types.ConstructionError{Step: "assemble buy", Err: err}
		}
		buyTx, q = tx, quoted
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, quote.Quote{}, err
	}
	return createTx, buyTx, q, nil
}

// assemble anchors ixs on a fresh blockhash, signs with signer and checks the packet limit.
func (o *Orchestrator) assemble(ctx context.Context, signer wallet.Signer, ixs []solana.Instruction) (*solana.Transaction, error) {
	hash, err := o.assembler.FetchBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := o.assembler.Assemble(ctx, txbuilder.Template{
		Instructions: ixs,
		FeePayer:     signer.PublicKey(),
		Signers:      []wallet.Signer{signer},
		Blockhash:    hash,
	})
	if err != nil {
		return nil, err
	}
	size, err := txbuilder.SizeOf(tx)
	if err != nil {
		return nil, err
	}
	if size > constants.MaxTransactionSize {
		return nil, fmt.Errorf("transaction is %d bytes, limit %d", size, constants.MaxTransactionSize)
	}
	return tx, nil
}

func (o *Orchestrator) simulate(ctx context.Context, log zerolog.Logger, tx *solana.Transaction) {
	res, err := o.deps.Simulator.Simulate(ctx, tx)
	if err != nil {
		log.Warn().Err(err).Msg("create pool simulation failed")
		return
	}
	lines := 0
	if res != nil {
		lines = len(res.Logs)
	}
	log.Debug().Int("log_lines", lines).Msg("create pool simulation ok")
}

// submit sends the bundle. A stale blockhash is a construction failure: the
// whole launch must be rebuilt.
func (o *Orchestrator) submit(ctx context.Context, b *bundle.Bundle) (string, error) {
	id, err := o.deps.Relay.SendBundle(ctx, b.Transactions())
	if err == nil {
		return id, nil
	}
	if errors.Is(err, types.ErrStaleBlockhash) {
		return "", &types.ConstructionError{Step: "submit bundle", Err: err}
	}
	var sub *types.SubmissionError
	if errors.As(err, &sub) {
		return "", err
	}
	return "", &types.SubmissionError{Step: "submit bundle", Err: err}
}

func saturatingAdd(a, b uint64) uint64 {
	if a > ^uint64(0)-b {
		return ^uint64(0)
	}
	return a + b
}
