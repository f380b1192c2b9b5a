package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ninja0404/raydium-launch-sdk/pkg/bundle"
	sdkconfig "github.com/ninja0404/raydium-launch-sdk/pkg/config"
	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
	"github.com/ninja0404/raydium-launch-sdk/pkg/launch"
	sdkrpc "github.com/ninja0404/raydium-launch-sdk/pkg/rpc"
	"github.com/ninja0404/raydium-launch-sdk/pkg/txbuilder"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

// runtimeDeps is the process-wide wiring shared by every command.
type runtimeDeps struct {
	settings  sdkconfig.Settings
	log       zerolog.Logger
	rpc       *sdkrpc.Client
	relay     *jito.Client
	tips      *jito.TipAccountCache
	stream    *jito.ResultStream
	listener  *bundle.Listener
	sender    *txbuilder.Sender
	assembler *txbuilder.Assembler
	wallets   launch.Wallets

	wsClient *ws.Client
	group    *errgroup.Group
	cancel   context.CancelFunc
}

// newRuntime builds clients and wallets from settings and starts the relay
// workers (tip refresh, result stream, listener). Call close when done.
func newRuntime(cmd *cobra.Command, settings sdkconfig.Settings) (*runtimeDeps, error) {
	log := settings.RPC.Logger
	deps := &runtimeDeps{settings: settings, log: log}

	funding, err := wallet.NewLocalFromSecret(settings.FundingKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sdkconfig.EnvName(sdkconfig.KeyPrivateKey), err)
	}
	buyer, err := wallet.NewLocalFromSecret(settings.BuyerKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sdkconfig.EnvName(sdkconfig.KeyBuyer), err)
	}
	deps.wallets = launch.Wallets{Funding: funding, Buyer: buyer}
	if settings.FeeWalletKey != "" {
		fee, err := wallet.NewLocalFromSecret(settings.FeeWalletKey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sdkconfig.EnvName(sdkconfig.KeyFeeWallet), err)
		}
		deps.wallets.FeePayer = fee
	}

	deps.rpc = sdkrpc.NewClient(settings.RPC)
	deps.relay = jito.NewClient(settings.BlockEngineURL, settings.RelayAuth).WithLogger(log)
	var seed []solana.PublicKey
	if settings.RPC.Network == sdkconfig.NetworkMainnet {
		seed = jito.MainnetTipAccounts
	}
	deps.tips = jito.NewTipAccountCache(deps.relay, settings.Bundle.TipRefreshInterval, log, seed...)

	streamCfg := jito.DefaultStreamConfig()
	if settings.Bundle.PollInterval > 0 {
		streamCfg.PollInterval = settings.Bundle.PollInterval
	}
	deps.stream = jito.NewResultStream(deps.relay, streamCfg, log)
	deps.listener = bundle.NewListener(deps.stream, log)
	deps.assembler = txbuilder.NewAssembler(deps.rpc, settings.Bundle.BlockhashRetryDelay, log)

	level := txbuilder.ConfirmationLevel(settings.RPC.Commitment)
	deps.sender = txbuilder.NewSender(deps.rpc, level, settings.Bundle.ResultTimeout, log)

	ctx, cancel := context.WithCancel(cmd.Context())
	deps.cancel = cancel

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	defer dialCancel()
	if wsClient, err := ws.Connect(dialCtx, settings.RPC.ResolveWSURL()); err != nil {
		log.Warn().Err(err).Msg("websocket unavailable, confirming by polling")
	} else {
		deps.wsClient = wsClient
		deps.sender.WithWebsocket(deps.rpc.Raw(), wsClient)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return deps.tips.Run(gctx) })
	group.Go(func() error { return deps.stream.Run(gctx) })
	group.Go(func() error { return deps.listener.Run(gctx) })
	deps.group = group
	return deps, nil
}

// orchestrator wires a launch.Orchestrator over the shared runtime.
func (d *runtimeDeps) orchestrator() (*launch.Orchestrator, error) {
	cfg := launch.Config{
		Network: d.settings.RPC.Network,
		Bundle:  d.settings.Bundle,
	}
	return launch.New(launch.Deps{
		Accounts:    d.rpc,
		Blockhashes: d.rpc,
		Relay:       d.relay,
		Listener:    d.listener,
		Tips:        d.tips,
		Simulator:   d.sender,
		Sender:      d.sender,
		Inflight:    d.relay,
		Bundles:     d.relay,
		Signatures:  d.rpc,
	}, d.wallets, cfg, d.log)
}

func (d *runtimeDeps) close() {
	d.cancel()
	if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Debug().Err(err).Msg("workers stopped")
	}
	if d.wsClient != nil {
		d.wsClient.Close()
	}
}

// parsePubkey converts base58 string to PublicKey.
func parsePubkey(label, v string) (solana.PublicKey, error) {
	if v == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", label)
	}
	pk, err := solana.PublicKeyFromBase58(v)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s invalid pubkey: %w", label, err)
	}
	return pk, nil
}

// explorerURL links a signature on solscan for the configured cluster.
func explorerURL(network sdkconfig.Network, sig solana.Signature) string {
	if network == sdkconfig.NetworkDevnet {
		return fmt.Sprintf("https://solscan.io/tx/%s?cluster=devnet", sig)
	}
	return fmt.Sprintf("https://solscan.io/tx/%s", sig)
}
