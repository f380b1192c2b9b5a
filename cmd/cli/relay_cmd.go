package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
)

func newTipAccountsCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "tip-accounts",
		Short: "List the block engine's current tip accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			log := settings.RPC.Logger

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			client := jito.NewClient(settings.BlockEngineURL, settings.RelayAuth).WithLogger(log)
			accounts, err := client.GetTipAccounts(ctx)
			if err != nil {
				return report(cmd, log, "tip-accounts", err)
			}
			for _, a := range accounts {
				fmt.Fprintln(cmd.OutOrStdout(), a)
			}
			return nil
		},
	}
}
