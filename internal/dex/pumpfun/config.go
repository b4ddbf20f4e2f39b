// =============================
// File: internal/dex/pumpfun/config.go
// =============================
package pumpfun

import (
	"github.com/gagliardetto/solana-go"
)

// Known PumpFun protocol addresses
var (
	// Program ID for Pump.fun protocol
	PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Fee program that owns the fee config account
	PumpFeeProgramID = solana.MustPublicKeyFromBase58("pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ")

	// Default protocol fee recipient (one of the addresses listed in the global account)
	DefaultFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")

	// AssociatedTokenProgramID is the SPL associated token account program
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID
)

// Instruction discriminators (first 8 bytes of sha256("global:<name>"))
var (
	BuyDiscriminator    = [8]byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	SellDiscriminator   = [8]byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
	CreateDiscriminator = [8]byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
)

// Account discriminators
var (
	BondingCurveAccountDiscriminator = [8]byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}
)

const (
	// TokenDecimals is the mint precision of every Pump.fun token
	TokenDecimals = 6

	// LamportsPerSol is the number of lamports in one SOL
	LamportsPerSol = 1_000_000_000

	// FallbackTokensPerSol is the amount of token base units a 1 SOL buy
	// receives on a freshly created curve with 30 SOL and 1.073B token virtual
	// reserves: 1.073e15 * 1/(30+1), rounded down.
	FallbackTokensPerSol uint64 = 34_612_903_225_806

	// DefaultBuySlippageBps is the default tolerance added to the maximum SOL cost
	DefaultBuySlippageBps = 500

	// BuyTokenBufferBps is the safety buffer subtracted from the computed token amount
	BuyTokenBufferBps = 500

	// SellFallbackFraction of the original buy size is used as minimum SOL
	// output when curve state cannot be read.
	SellFallbackFraction = 0.30
)

// Config holds the protocol accounts the encoder needs that are not derived
// per token.
type Config struct {
	ProgramID      solana.PublicKey
	FeeProgramID   solana.PublicKey
	Global         solana.PublicKey
	FeeRecipient   solana.PublicKey
	EventAuthority solana.PublicKey
}

// GetDefaultConfig creates a default configuration for the Pump.fun program
func GetDefaultConfig() *Config {
	return &Config{
		ProgramID:      PumpFunProgramID,
		FeeProgramID:   PumpFeeProgramID,
		Global:         DeriveGlobal(PumpFunProgramID),
		FeeRecipient:   DefaultFeeRecipient,
		EventAuthority: DeriveEventAuthority(PumpFunProgramID),
	}
}
