// =============================
// File: internal/dex/pumpfun/pda.go
// =============================
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seeds used by the Pump.fun program
var (
	seedGlobal                  = []byte("global")
	seedBondingCurve            = []byte("bonding-curve")
	seedCreatorVault            = []byte("creator-vault")
	seedEventAuthority          = []byte("__event_authority")
	seedGlobalVolumeAccumulator = []byte("global_volume_accumulator")
	seedUserVolumeAccumulator   = []byte("user_volume_accumulator")
	seedFeeConfig               = []byte("fee_config")
)

// mustFindPDA derives a program address. FindProgramAddress only fails for
// malformed seeds (too long or too many), which is a caller bug.
func mustFindPDA(seeds [][]byte, programID solana.PublicKey) solana.PublicKey {
	addr, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		panic(fmt.Sprintf("pumpfun: derive PDA under %s: %v", programID, err))
	}
	return addr
}

// DeriveGlobal returns the global config account of the program.
func DeriveGlobal(programID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedGlobal}, programID)
}

// DeriveEventAuthority returns the event authority used for self-CPI logging.
func DeriveEventAuthority(programID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedEventAuthority}, programID)
}

// DeriveBondingCurve returns the bonding curve account for a mint.
func DeriveBondingCurve(mint, programID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedBondingCurve, mint.Bytes()}, programID)
}

// DeriveAssociatedBondingCurve returns the token account holding the curve's
// token reserves (the ATA of the bonding curve for the mint).
func DeriveAssociatedBondingCurve(bondingCurve, mint solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{
		bondingCurve.Bytes(),
		solana.TokenProgramID.Bytes(),
		mint.Bytes(),
	}, AssociatedTokenProgramID)
}

// DeriveCreatorVault returns the creator fee vault.
func DeriveCreatorVault(creator, programID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedCreatorVault, creator.Bytes()}, programID)
}

// DeriveGlobalVolumeAccumulator returns the global volume accumulator.
func DeriveGlobalVolumeAccumulator(programID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedGlobalVolumeAccumulator}, programID)
}

// DeriveUserVolumeAccumulator returns the per-user volume accumulator.
func DeriveUserVolumeAccumulator(user, programID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedUserVolumeAccumulator, user.Bytes()}, programID)
}

// DeriveFeeConfig returns the fee config account. It lives under the fee
// program and is seeded by the Pump.fun program id.
func DeriveFeeConfig(programID, feeProgramID solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{seedFeeConfig, programID.Bytes()}, feeProgramID)
}

// DeriveUserTokenAccount returns the owner's associated token account for mint.
func DeriveUserTokenAccount(owner, mint solana.PublicKey) solana.PublicKey {
	return mustFindPDA([][]byte{
		owner.Bytes(),
		solana.TokenProgramID.Bytes(),
		mint.Bytes(),
	}, AssociatedTokenProgramID)
}

// TradeAccounts is the full set of per-token accounts used by buy and sell.
type TradeAccounts struct {
	Global                  solana.PublicKey
	FeeRecipient            solana.PublicKey
	Mint                    solana.PublicKey
	BondingCurve            solana.PublicKey
	AssociatedBondingCurve  solana.PublicKey
	UserTokenAccount        solana.PublicKey
	User                    solana.PublicKey
	CreatorVault            solana.PublicKey
	EventAuthority          solana.PublicKey
	Program                 solana.PublicKey
	GlobalVolumeAccumulator solana.PublicKey
	UserVolumeAccumulator   solana.PublicKey
	FeeConfig               solana.PublicKey
	FeeProgram              solana.PublicKey
}

// DeriveTradeAccounts computes every account a trade on mint needs.
func (c *Config) DeriveTradeAccounts(mint, creator, user solana.PublicKey) TradeAccounts {
	bondingCurve := DeriveBondingCurve(mint, c.ProgramID)
	return TradeAccounts{
		Global:                  c.Global,
		FeeRecipient:            c.FeeRecipient,
		Mint:                    mint,
		BondingCurve:            bondingCurve,
		AssociatedBondingCurve:  DeriveAssociatedBondingCurve(bondingCurve, mint),
		UserTokenAccount:        DeriveUserTokenAccount(user, mint),
		User:                    user,
		CreatorVault:            DeriveCreatorVault(creator, c.ProgramID),
		EventAuthority:          c.EventAuthority,
		Program:                 c.ProgramID,
		GlobalVolumeAccumulator: DeriveGlobalVolumeAccumulator(c.ProgramID),
		UserVolumeAccumulator:   DeriveUserVolumeAccumulator(user, c.ProgramID),
		FeeConfig:               DeriveFeeConfig(c.ProgramID, c.FeeProgramID),
		FeeProgram:              c.FeeProgramID,
	}
}
