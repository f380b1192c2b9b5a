package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	sdkconfig "github.com/ninja0404/raydium-launch-sdk/pkg/config"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOpts struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}

	root := &cobra.Command{
		Use:           "launchcli",
		Short:         "Raydium AMM v4 pool launch tool (create pool + buy through a Jito bundle)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default ./launch.{yaml,json,toml} if present)")
	pf.String(sdkconfig.KeyRPCEndpoint, "", "RPC endpoint")
	pf.String(sdkconfig.KeyRPCWSEndpoint, "", "RPC websocket endpoint (derived from the RPC endpoint if empty)")
	pf.String(sdkconfig.KeyBlockEngineURL, "", "Jito block engine URL")
	pf.String(sdkconfig.KeyNetwork, string(sdkconfig.NetworkMainnet), "cluster (mainnet|devnet)")
	pf.String(sdkconfig.KeyCommitmentLevel, "", "RPC commitment level")
	pf.String(sdkconfig.KeyLogLevel, "info", "log level (debug|info|warn|error)")

	root.AddCommand(
		newConfigCmd(opts),
		newPoolSnipeCmd(opts),
		newRemoveCmd(opts),
		newReconcileCmd(opts),
		newAirdropCmd(opts),
		newTipAccountsCmd(opts),
		newUnsupportedCmd("create_token", "Create a token mint"),
		newUnsupportedCmd("update_metadata", "Update token metadata"),
		newUnsupportedCmd("create-openbook", "Create an OpenBook market"),
	)
	return root
}

func newConfigCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved config with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, opts)
			if err != nil {
				return err
			}
			red := settings.Redacted()
			keys := make([]string, 0, len(red))
			for k := range red {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", sdkconfig.EnvName(k), red[k])
			}
			return nil
		},
	}
}

func newUnsupportedCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short + " (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: mint, metadata and market creation are not part of launchcli; create them with the Solana token tooling and pass the market id to pool-snipe\n", use)
			return nil
		},
	}
}

// loadSettings reads configuration. Its error is the only one that makes the
// process exit non-zero.
func loadSettings(cmd *cobra.Command, opts *globalOpts) (sdkconfig.Settings, error) {
	settings, err := sdkconfig.Load(opts.configFile, cmd.Flags())
	if err != nil {
		return sdkconfig.Settings{}, err
	}
	settings.RPC.Logger = newLogger(cmd, settings.LogLevel)
	return settings, nil
}

// report prints an operation failure and swallows it so the command exits 0.
func report(cmd *cobra.Command, log zerolog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	kind := types.Kind(err)
	log.Error().Err(err).Str("op", op).Str("kind", kind.String()).Msg("operation failed")

	var amb *types.AmbiguousSettlementError
	if errors.As(err, &amb) {
		hint := "launchcli reconcile --bundle " + amb.BundleID
		for _, sig := range amb.Signatures {
			hint += " --sig " + sig.String()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: outcome unknown for bundle %s; run `%s` before relaunching\n", op, amb.BundleID, hint)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s failed (%s): %v\n", op, kind, err)
	return nil
}

func newLogger(cmd *cobra.Command, level string) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).
		Level(parseLogLevel(level)).
		With().Timestamp().Logger()
}

func parseLogLevel(lvl string) zerolog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
