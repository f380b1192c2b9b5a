package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ninja0404/raydium-launch-sdk/pkg/airdrop"
	sdkconfig "github.com/ninja0404/raydium-launch-sdk/pkg/config"
)

func newAirdropCmd(opts *globalOpts) *cobra.Command {
	var (
		mintStr  string
		listPath string
		perTx    int
	)

	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Send a token from the buyer wallet to a recipient list",
		Long: `Reads recipients from --list or the AIRDROP variable, a JSON array of
[wallet, amount] pairs, and transfers from the BUYER wallet's token account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			log := settings.RPC.Logger

			mint, err := parsePubkey("address", mintStr)
			if err != nil {
				return report(cmd, log, "airdrop", err)
			}
			recipients, err := loadRecipients(listPath, settings.Airdrop)
			if err != nil {
				return report(cmd, log, "airdrop", err)
			}

			deps, err := newRuntime(cmd, settings)
			if err != nil {
				return report(cmd, log, "airdrop", err)
			}
			defer deps.close()

			dist := airdrop.NewDistributor(deps.rpc, deps.assembler, deps.sender, deps.wallets.Buyer, airdrop.Config{
				PerTransaction:   perTx,
				ComputeUnitPrice: settings.Bundle.ComputeUnitPrice,
			}, log)
			rep, err := dist.Distribute(cmd.Context(), mint, recipients)
			if rep != nil {
				out := cmd.OutOrStdout()
				for i, b := range rep.Batches {
					if b.Err != nil {
						fmt.Fprintf(out, "batch %d (%d recipients): failed: %v\n", i, len(b.Recipients), b.Err)
						continue
					}
					fmt.Fprintf(out, "batch %d (%d recipients): %s\n", i, len(b.Recipients), explorerURL(settings.RPC.Network, b.Signature))
				}
				fmt.Fprintf(out, "delivered to %d of %d recipients\n", rep.Delivered(), len(recipients))
			}
			return report(cmd, log, "airdrop", err)
		},
	}

	cmd.Flags().StringVarP(&mintStr, "address", "m", "", "token mint to airdrop")
	cmd.Flags().StringVar(&listPath, "list", "", "recipient list JSON file (defaults to AIRDROP)")
	cmd.Flags().IntVar(&perTx, "per-tx", airdrop.DefaultPerTransaction, "max recipients per transaction")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func loadRecipients(path, inline string) ([]airdrop.Recipient, error) {
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open recipient list: %w", err)
		}
		defer f.Close()
		return airdrop.ParseRecipients(f)
	}
	if strings.TrimSpace(inline) == "" {
		return nil, fmt.Errorf("no recipients: set %s or pass --list", sdkconfig.EnvName(sdkconfig.KeyAirdrop))
	}
	return airdrop.ParseRecipients(strings.NewReader(inline))
}
