// ==============================================
// File: internal/dex/pumpfun/instructions.go
// ==============================================
package pumpfun

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// encodeTradeData lays out discriminator + two little-endian u64 arguments.
func encodeTradeData(discriminator [8]byte, amount, solLimit uint64) []byte {
	data := make([]byte, 24)
	copy(data[:8], discriminator[:])
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], solLimit)
	return data
}

// BuyAccountMetas returns the 16 accounts of the buy instruction in program order.
func BuyAccountMetas(a TradeAccounts) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: a.Global, IsSigner: false, IsWritable: false},
		{PublicKey: a.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: a.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: a.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: a.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: a.User, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: a.CreatorVault, IsSigner: false, IsWritable: true},
		{PublicKey: a.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: a.Program, IsSigner: false, IsWritable: false},
		{PublicKey: a.GlobalVolumeAccumulator, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserVolumeAccumulator, IsSigner: false, IsWritable: true},
		{PublicKey: a.FeeConfig, IsSigner: false, IsWritable: false},
		{PublicKey: a.FeeProgram, IsSigner: false, IsWritable: false},
	}
}

// SellAccountMetas returns the 14 accounts of the sell instruction. Unlike buy,
// the creator vault comes before the token program and there are no volume
// accumulators.
func SellAccountMetas(a TradeAccounts) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: a.Global, IsSigner: false, IsWritable: false},
		{PublicKey: a.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: a.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: a.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: a.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserTokenAccount, IsSigner: false, IsWritable: true},
		{PublicKey: a.User, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: a.CreatorVault, IsSigner: false, IsWritable: true},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: a.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: a.Program, IsSigner: false, IsWritable: false},
		{PublicKey: a.FeeConfig, IsSigner: false, IsWritable: false},
		{PublicKey: a.FeeProgram, IsSigner: false, IsWritable: false},
	}
}

// BuildBuyInstruction builds a buy instruction for Pump.fun protocol
func BuildBuyInstruction(a TradeAccounts, amount, maxSolCost uint64) solana.Instruction {
	return solana.NewInstruction(a.Program, BuyAccountMetas(a), encodeTradeData(BuyDiscriminator, amount, maxSolCost))
}

// BuildSellInstruction builds a sell instruction for Pump.fun protocol
func BuildSellInstruction(a TradeAccounts, amount, minSolOutput uint64) solana.Instruction {
	return solana.NewInstruction(a.Program, SellAccountMetas(a), encodeTradeData(SellDiscriminator, amount, minSolOutput))
}
