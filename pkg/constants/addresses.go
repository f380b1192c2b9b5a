package constants

import "github.com/gagliardetto/solana-go"

// Well-known program IDs
var (
	// SPL Programs
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = solana.TokenProgramID
	Token2022ProgramID       = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
	SysvarRentProgramID      = solana.SysVarRentPubkey
	ComputeBudgetProgramID   = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

	// Raydium AMM v4. The fee destination receives the pool creation fee charged by initialize2.
	RaydiumAmmV4ProgramID       = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	RaydiumCreateFeeDestination = solana.MustPublicKeyFromBase58("7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5")

	// OpenBook (serum v3 fork) market program
	OpenBookProgramID = solana.MustPublicKeyFromBase58("srmqPvymJeFKQ4zGQed1GFppgkRHL9kaELCbyksJtPX")
)

// Devnet deployments of the same programs.
var (
	RaydiumAmmV4DevnetProgramID       = solana.MustPublicKeyFromBase58("HWy1jotHpo6UqeQxx49dpYYdQB8wj9Qk9MdxwjLvDHB8")
	RaydiumCreateFeeDestinationDevnet = solana.MustPublicKeyFromBase58("3XMrhbv989VxAMi3DErLV9eJht1pHppW5LbKxe9fkEFR")
	OpenBookDevnetProgramID           = solana.MustPublicKeyFromBase58("EoTcMgcDRTJVZDMZWBoU6rhYHZfkNTVEAfz3uUJRcYGj")
)

// Mainnet well-known accounts
var (
	// WSOL (Native Mint)
	WSOLMint = solana.WrappedSol
)

// WSOLDecimals is the decimals of the native mint.
const WSOLDecimals = 9

// PDA seeds used by Raydium AMM v4.
const (
	SeedAmmAuthority     = "amm authority"
	SeedAmmAssociated    = "amm_associated_seed"
	SeedLPMint           = "lp_mint_associated_seed"
	SeedCoinVault        = "coin_vault_associated_seed"
	SeedPcVault          = "pc_vault_associated_seed"
	SeedTargetOrders     = "target_associated_seed"
	SeedOpenOrders       = "open_order_associated_seed"
	SeedWithdrawQueue    = "withdraw_associated_seed"
	SeedTempLPToken      = "temp_lp_token_associated_seed"
	SeedAmmConfigAccount = "amm_config_account_seed"
)

// Network limits.
const (
	// MaxTransactionSize is the packet limit for a serialized transaction.
	MaxTransactionSize = 1232

	// MaxBundleTransactions is the block engine's bundle cap.
	MaxBundleTransactions = 5
)

// Programs groups the program ids one cluster deployment uses.
type Programs struct {
	AmmV4                solana.PublicKey
	CreateFeeDestination solana.PublicKey
	OpenBook             solana.PublicKey
}

var (
	MainnetPrograms = Programs{
		AmmV4:                RaydiumAmmV4ProgramID,
		CreateFeeDestination: RaydiumCreateFeeDestination,
		OpenBook:             OpenBookProgramID,
	}
	DevnetPrograms = Programs{
		AmmV4:                RaydiumAmmV4DevnetProgramID,
		CreateFeeDestination: RaydiumCreateFeeDestinationDevnet,
		OpenBook:             OpenBookDevnetProgramID,
	}
)
