package config

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
)

// Network defines the target Solana cluster.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkDevnet  Network = "devnet"
	NetworkCustom  Network = "custom"
)

// DefaultRPCURL returns the standard RPC endpoint for a known network.
func DefaultRPCURL(network Network) string {
	switch network {
	case NetworkMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkDevnet:
		return "https://api.devnet.solana.com"
	default:
		return ""
	}
}

// Programs returns the Raydium/OpenBook deployment for the network.
func (n Network) Programs() constants.Programs {
	if n == NetworkDevnet {
		return constants.DevnetPrograms
	}
	return constants.MainnetPrograms
}

// RetryConfig controls RPC retry behavior.
type RetryConfig struct {
	Enabled        bool
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Jitter         bool
}

// RateLimitConfig throttles outbound RPC calls.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// RPCConfig aggregates runtime settings for RPC usage.
type RPCConfig struct {
	Network    Network
	RPCURL     string
	WSURL      string
	Commitment string
	Timeout    time.Duration
	Retry      RetryConfig
	RateLimit  RateLimitConfig
	Logger     zerolog.Logger
}

// DefaultRPCConfig yields production-safe defaults (mainnet, confirmed commitment).
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		Network:    NetworkMainnet,
		RPCURL:     DefaultRPCURL(NetworkMainnet),
		Commitment: "confirmed",
		Timeout:    20 * time.Second,
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 150 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Jitter:         true,
		},
		RateLimit: RateLimitConfig{
			RPS:   8,
			Burst: 16,
		},
		Logger: zerolog.New(io.Discard),
	}
}

// ResolveRPCURL returns RPCURL if set, otherwise falls back to network defaults.
func (c RPCConfig) ResolveRPCURL() string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return DefaultRPCURL(c.Network)
}

// ResolveWSURL returns WSURL if set, otherwise derives it from the RPC URL.
func (c RPCConfig) ResolveWSURL() string {
	if c.WSURL != "" {
		return c.WSURL
	}
	u := c.ResolveRPCURL()
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// BundleConfig holds the knobs of a bundled create-and-buy.
type BundleConfig struct {
	// TipLamports is paid to a relay tip account by the last bundle transaction.
	TipLamports uint64
	// MaxTransactions is the relay's per-bundle cap, tip transaction included.
	MaxTransactions int
	// ResultTimeout bounds the wait for a settlement verdict.
	ResultTimeout time.Duration

	ComputeUnitPrice uint64 // micro-lamports per CU
	ComputeUnitLimit uint32

	SlippageBps uint64
	// Raydium AMM v4 trade fee, skimmed from the input.
	FeeNumerator   uint64
	FeeDenominator uint64

	// BlockhashRetryDelay is waited once before retrying a failed blockhash fetch.
	BlockhashRetryDelay time.Duration
	TipRefreshInterval  time.Duration
	PollInterval        time.Duration

	// Added to the funding wallet requirement to cover rent and the pool creation fee.
	FundingReserveLamports uint64
	// Added to the buyer requirement to cover ATA rent and fees.
	BuyerReserveLamports uint64

	SimulateCreatePool bool
}

// DefaultBundleConfig mirrors the values the launch tool has been running with.
func DefaultBundleConfig() BundleConfig {
	return BundleConfig{
		TipLamports:         10_000_000,
		MaxTransactions:     3,
		ResultTimeout:       30 * time.Second,
		ComputeUnitPrice:    12_500_000,
		ComputeUnitLimit:    300_000,
		SlippageBps:         100,
		FeeNumerator:        25,
		FeeDenominator:      10_000,
		BlockhashRetryDelay: 2 * time.Second,
		TipRefreshInterval:  time.Minute,
		PollInterval:        500 * time.Millisecond,

		// 0.4 SOL pool creation fee plus account rent.
		FundingReserveLamports: 450_000_000,
		BuyerReserveLamports:   5_000_000,
	}
}
