package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// Config keys. Environment variables are the upper-cased key with '-' replaced by '_'.
const (
	KeyRPCEndpoint      = "rpc-endpoint"
	KeyRPCWSEndpoint    = "rpc-websocket-endpoint"
	KeyBlockEngineURL   = "block-engine-url"
	KeyJitoAuthUUID     = "jito-auth-uuid"
	KeyPrivateKey       = "private-key"
	KeyBuyer            = "buyer"
	KeyFeeWallet        = "fee-wallet"
	KeyQuoteMint        = "quote-mint"
	KeyCommitmentLevel  = "commitment-level"
	KeyNetwork          = "network"
	KeyBuyAmount        = "buy-amt"
	KeyTipLamports      = "tip-lamports"
	KeyComputeUnitPrice = "compute-unit-price"
	KeyComputeUnitLimit = "compute-unit-limit"
	KeySlippageBps      = "slippage-bps"
	KeyBundleMaxTxs     = "bundle-max-txs"
	KeyResultTimeout    = "result-timeout"
	KeyAirdrop          = "airdrop"
	KeyLogLevel         = "log-level"
)

var requiredKeys = []string{
	KeyRPCEndpoint,
	KeyBlockEngineURL,
	KeyJitoAuthUUID,
	KeyPrivateKey,
	KeyBuyer,
	KeyQuoteMint,
	KeyCommitmentLevel,
}

// SupportedQuote is the only quote currency selector the launcher accepts.
const SupportedQuote = "WSOL"

var (
	ErrMissingConfig    = errors.New("missing required configuration")
	ErrUnsupportedQuote = errors.New("unsupported quote mint")
)

// MissingError lists every required key that had no value.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	envs := make([]string, 0, len(e.Keys))
	for _, k := range e.Keys {
		envs = append(envs, EnvName(k))
	}
	return fmt.Sprintf("%v: %s", ErrMissingConfig, strings.Join(envs, ", "))
}

func (e *MissingError) Unwrap() error {
	return ErrMissingConfig
}

// EnvName returns the environment variable a key is read from.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Settings is the full runtime configuration of the launcher.
type Settings struct {
	RPC    RPCConfig
	Bundle BundleConfig

	BlockEngineURL string
	RelayAuth      string

	// Base58 secrets. Never log them; use Redacted.
	FundingKey   string
	BuyerKey     string
	FeeWalletKey string

	QuoteMint string
	BuyAmount string
	Airdrop   string
	LogLevel  string
}

// Load merges an optional config file, environment variables, and flags into Settings.
func Load(cfgFile string, flags *pflag.FlagSet) (Settings, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rpcDefaults := DefaultRPCConfig()
	bundleDefaults := DefaultBundleConfig()
	v.SetDefault(KeyNetwork, string(NetworkMainnet))
	v.SetDefault(KeyTipLamports, bundleDefaults.TipLamports)
	v.SetDefault(KeyComputeUnitPrice, bundleDefaults.ComputeUnitPrice)
	v.SetDefault(KeyComputeUnitLimit, bundleDefaults.ComputeUnitLimit)
	v.SetDefault(KeySlippageBps, bundleDefaults.SlippageBps)
	v.SetDefault(KeyBundleMaxTxs, bundleDefaults.MaxTransactions)
	v.SetDefault(KeyResultTimeout, bundleDefaults.ResultTimeout)
	v.SetDefault(KeyLogLevel, "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Settings{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("launch")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Settings{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var missing []string
	for _, k := range requiredKeys {
		if strings.TrimSpace(v.GetString(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Settings{}, &MissingError{Keys: missing}
	}

	quote := strings.ToUpper(strings.TrimSpace(v.GetString(KeyQuoteMint)))
	if quote != SupportedQuote {
		return Settings{}, fmt.Errorf("%w: %q (only %s)", ErrUnsupportedQuote, quote, SupportedQuote)
	}

	rpcCfg := rpcDefaults
	rpcCfg.Network = Network(strings.ToLower(v.GetString(KeyNetwork)))
	rpcCfg.RPCURL = v.GetString(KeyRPCEndpoint)
	rpcCfg.WSURL = v.GetString(KeyRPCWSEndpoint)
	rpcCfg.Commitment = strings.ToLower(v.GetString(KeyCommitmentLevel))

	bundleCfg := bundleDefaults
	bundleCfg.TipLamports = v.GetUint64(KeyTipLamports)
	bundleCfg.ComputeUnitPrice = v.GetUint64(KeyComputeUnitPrice)
	bundleCfg.ComputeUnitLimit = v.GetUint32(KeyComputeUnitLimit)
	bundleCfg.SlippageBps = v.GetUint64(KeySlippageBps)
	bundleCfg.MaxTransactions = v.GetInt(KeyBundleMaxTxs)
	bundleCfg.ResultTimeout = v.GetDuration(KeyResultTimeout)
	if bundleCfg.ResultTimeout <= 0 {
		return Settings{}, types.NewValidationError(KeyResultTimeout, "must be a positive duration")
	}
	if err := types.ValidateSlippageBps(bundleCfg.SlippageBps); err != nil {
		return Settings{}, err
	}

	return Settings{
		RPC:            rpcCfg,
		Bundle:         bundleCfg,
		BlockEngineURL: v.GetString(KeyBlockEngineURL),
		RelayAuth:      v.GetString(KeyJitoAuthUUID),
		FundingKey:     v.GetString(KeyPrivateKey),
		BuyerKey:       v.GetString(KeyBuyer),
		FeeWalletKey:   v.GetString(KeyFeeWallet),
		QuoteMint:      quote,
		BuyAmount:      v.GetString(KeyBuyAmount),
		Airdrop:        v.GetString(KeyAirdrop),
		LogLevel:       v.GetString(KeyLogLevel),
	}, nil
}

// Redacted returns a printable view of the settings with secrets masked.
func (s Settings) Redacted() map[string]string {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "***"
	}
	return map[string]string{
		KeyNetwork:          string(s.RPC.Network),
		KeyRPCEndpoint:      s.RPC.ResolveRPCURL(),
		KeyRPCWSEndpoint:    s.RPC.ResolveWSURL(),
		KeyCommitmentLevel:  s.RPC.Commitment,
		KeyBlockEngineURL:   s.BlockEngineURL,
		KeyJitoAuthUUID:     mask(s.RelayAuth),
		KeyPrivateKey:       mask(s.FundingKey),
		KeyBuyer:            mask(s.BuyerKey),
		KeyFeeWallet:        mask(s.FeeWalletKey),
		KeyQuoteMint:        s.QuoteMint,
		KeyBuyAmount:        s.BuyAmount,
		KeyTipLamports:      fmt.Sprint(s.Bundle.TipLamports),
		KeyComputeUnitPrice: fmt.Sprint(s.Bundle.ComputeUnitPrice),
		KeyComputeUnitLimit: fmt.Sprint(s.Bundle.ComputeUnitLimit),
		KeySlippageBps:      fmt.Sprint(s.Bundle.SlippageBps),
		KeyBundleMaxTxs:     fmt.Sprint(s.Bundle.MaxTransactions),
		KeyResultTimeout:    s.Bundle.ResultTimeout.String(),
	}
}
