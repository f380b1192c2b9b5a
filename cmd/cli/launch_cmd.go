package main

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	sdkconfig "github.com/ninja0404/raydium-launch-sdk/pkg/config"
	"github.com/ninja0404/raydium-launch-sdk/pkg/launch"
)

func newPoolSnipeCmd(opts *globalOpts) *cobra.Command {
	var (
		marketStr   string
		tokenAmount string
		solAmount   string
		openDelay   time.Duration
		buyBase     bool
		simulate    bool
	)

	cmd := &cobra.Command{
		Use:   "pool-snipe",
		Short: "Create a Raydium pool on an OpenBook market and buy in the same bundle",
		Long: `Creates an AMM v4 pool seeded with --tokenamount of the market's base token and
--solamount of WSOL from PRIVATE_KEY, then buys BUY_AMT from the BUYER wallet.
Both transactions and the relay tip go out as one all-or-nothing Jito bundle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			log := settings.RPC.Logger

			req, err := snipeRequest(marketStr, tokenAmount, solAmount, settings.BuyAmount)
			if err != nil {
				return report(cmd, log, "pool-snipe", err)
			}
			if openDelay > 0 {
				req.OpenTime = time.Now().Add(openDelay)
			}
			if buyBase {
				req.BuyWith = launch.BuyWithBase
			}
			settings.Bundle.SimulateCreatePool = simulate

			deps, err := newRuntime(cmd, settings)
			if err != nil {
				return report(cmd, log, "pool-snipe", err)
			}
			defer deps.close()

			orch, err := deps.orchestrator()
			if err != nil {
				return report(cmd, log, "pool-snipe", err)
			}
			res, err := orch.CreateAndBuy(cmd.Context(), req)
			if err != nil {
				return report(cmd, log, "pool-snipe", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pool: %s\nlp mint: %s\nbundle: %s (slot %d)\n", res.PoolID, res.LPMint, res.BundleID, res.Slot)
			fmt.Fprintf(out, "bought: %s -> %s (min %s)\n", res.Quote.AmountIn, res.Quote.ExpectedOut, res.Quote.MinOut)
			for _, s := range []struct {
				name string
				sig  solana.Signature
			}{
				{"create pool", res.CreatePoolSignature},
				{"buy", res.BuySignature},
				{"tip", res.TipSignature},
			} {
				fmt.Fprintf(out, "%s: %s\n", s.name, explorerURL(settings.RPC.Network, s.sig))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&marketStr, "openmarket", "o", "", "OpenBook market id")
	cmd.Flags().StringVar(&tokenAmount, "tokenamount", "", "base token amount to seed the pool with")
	cmd.Flags().StringVar(&solAmount, "solamount", "", "SOL amount to seed the pool with")
	cmd.Flags().String(sdkconfig.KeyBuyAmount, "", "amount to spend on the buy (overrides BUY_AMT)")
	cmd.Flags().String(sdkconfig.KeyPrivateKey, "", "funding wallet secret (overrides PRIVATE_KEY)")
	cmd.Flags().String(sdkconfig.KeyBuyer, "", "buyer wallet secret (overrides BUYER)")
	cmd.Flags().DurationVar(&openDelay, "open-delay", 0, "delay before the pool opens for trading")
	cmd.Flags().BoolVar(&buyBase, "buy-with-base", false, "spend the base token instead of SOL")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "simulate the create-pool transaction before submitting")
	_ = cmd.MarkFlagRequired("openmarket")
	_ = cmd.MarkFlagRequired("tokenamount")
	_ = cmd.MarkFlagRequired("solamount")
	return cmd
}

func snipeRequest(marketStr, tokenAmount, solAmount, buyAmount string) (launch.Request, error) {
	marketID, err := parsePubkey("openmarket", marketStr)
	if err != nil {
		return launch.Request{}, err
	}
	base, err := parseDecimal("tokenamount", tokenAmount)
	if err != nil {
		return launch.Request{}, err
	}
	quote, err := parseDecimal("solamount", solAmount)
	if err != nil {
		return launch.Request{}, err
	}
	buy, err := parseDecimal(sdkconfig.EnvName(sdkconfig.KeyBuyAmount), buyAmount)
	if err != nil {
		return launch.Request{}, err
	}
	return launch.Request{MarketID: marketID, BaseAmount: base, QuoteAmount: quote, BuyAmount: buy}, nil
}

func newRemoveCmd(opts *globalOpts) *cobra.Command {
	var (
		poolStr   string
		amountStr string
	)

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Withdraw liquidity from a pool with the funding wallet's LP tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			log := settings.RPC.Logger

			poolID, err := parsePubkey("address", poolStr)
			if err != nil {
				return report(cmd, log, "remove", err)
			}
			req := launch.RemoveRequest{PoolID: poolID}
			if amountStr == "-1" {
				req.All = true
			} else if req.Amount, err = parseDecimal("amount", amountStr); err != nil {
				return report(cmd, log, "remove", err)
			}

			deps, err := newRuntime(cmd, settings)
			if err != nil {
				return report(cmd, log, "remove", err)
			}
			defer deps.close()

			orch, err := deps.orchestrator()
			if err != nil {
				return report(cmd, log, "remove", err)
			}
			res, err := orch.RemoveLiquidity(cmd.Context(), req)
			if err != nil {
				return report(cmd, log, "remove", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "withdrew %s LP: %s\n", res.LPAmount, explorerURL(settings.RPC.Network, res.Signature))
			return nil
		},
	}

	cmd.Flags().StringVarP(&poolStr, "address", "p", "", "AMM pool id")
	cmd.Flags().StringVarP(&amountStr, "amount", "a", "-1", "LP amount to withdraw, -1 for the whole balance")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func newReconcileCmd(opts *globalOpts) *cobra.Command {
	var (
		bundleID string
		sigStrs  []string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Look up what happened to a bundle whose outcome was not reported",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			log := settings.RPC.Logger

			sigs := make([]solana.Signature, 0, len(sigStrs))
			for _, s := range sigStrs {
				sig, err := solana.SignatureFromBase58(s)
				if err != nil {
					return report(cmd, log, "reconcile", fmt.Errorf("signature %q: %w", s, err))
				}
				sigs = append(sigs, sig)
			}

			deps, err := newRuntime(cmd, settings)
			if err != nil {
				return report(cmd, log, "reconcile", err)
			}
			defer deps.close()

			orch, err := deps.orchestrator()
			if err != nil {
				return report(cmd, log, "reconcile", err)
			}
			rec, err := orch.Reconcile(cmd.Context(), bundleID, sigs...)
			if err != nil {
				return report(cmd, log, "reconcile", err)
			}

			out := cmd.OutOrStdout()
			verdict := "pending"
			switch {
			case rec.Landed():
				verdict = "landed"
			case rec.Failed():
				verdict = "failed"
			}
			fmt.Fprintf(out, "bundle %s: relay=%q verdict=%s", rec.BundleID, rec.RelayStatus, verdict)
			if rec.LandedSlot > 0 {
				fmt.Fprintf(out, " slot=%d", rec.LandedSlot)
			}
			fmt.Fprintln(out)
			for _, s := range rec.Signatures {
				if !s.Found {
					fmt.Fprintf(out, "  %s: not found\n", s.Signature)
					continue
				}
				fmt.Fprintf(out, "  %s: %s slot=%d err=%v\n", s.Signature, s.Status, s.Slot, s.Err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bundleID, "bundle", "", "bundle id returned by the relay")
	cmd.Flags().StringSliceVar(&sigStrs, "sig", nil, "transaction signatures of the bundle (repeatable)")
	return cmd
}

func parseDecimal(label, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", label)
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", label, err)
	}
	return d, nil
}
