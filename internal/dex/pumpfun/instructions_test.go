package pumpfun

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounts() TradeAccounts {
	return GetDefaultConfig().DeriveTradeAccounts(testMint, testCreator, testUser)
}

func TestBuyInstructionData(t *testing.T) {
	ix := BuildBuyInstruction(testAccounts(), 1_000_000, 0x0102030405060708)

	data, err := ix.Data()
	require.NoError(t, err)

	want := []byte{
		0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea, // discriminator
		0x40, 0x42, 0x0f, 0x00, 0x00, 0x00, 0x00, 0x00, // 1_000_000 LE
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, // max sol cost LE
	}
	assert.Equal(t, want, data)
	assert.Equal(t, PumpFunProgramID, ix.ProgramID())
}

func TestSellInstructionData(t *testing.T) {
	ix := BuildSellInstruction(testAccounts(), 0xff, 2)

	data, err := ix.Data()
	require.NoError(t, err)

	want := []byte{
		0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad,
		0xff, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	assert.Equal(t, want, data)
}

func TestBuyAccountOrder(t *testing.T) {
	a := testAccounts()
	metas := BuildBuyInstruction(a, 1, 1).Accounts()
	require.Len(t, metas, 16)

	want := []solana.PublicKey{
		a.Global, a.FeeRecipient, a.Mint, a.BondingCurve, a.AssociatedBondingCurve,
		a.UserTokenAccount, a.User, solana.SystemProgramID, solana.TokenProgramID,
		a.CreatorVault, a.EventAuthority, a.Program, a.GlobalVolumeAccumulator,
		a.UserVolumeAccumulator, a.FeeConfig, a.FeeProgram,
	}
	for i, m := range metas {
		assert.Equal(t, want[i], m.PublicKey, "account %d", i)
	}

	assert.True(t, metas[6].IsSigner)
	assert.True(t, metas[1].IsWritable)
	assert.False(t, metas[0].IsWritable)
}

func TestSellAccountOrderPutsCreatorVaultBeforeTokenProgram(t *testing.T) {
	a := testAccounts()
	metas := BuildSellInstruction(a, 1, 1).Accounts()
	require.Len(t, metas, 14)

	want := []solana.PublicKey{
		a.Global, a.FeeRecipient, a.Mint, a.BondingCurve, a.AssociatedBondingCurve,
		a.UserTokenAccount, a.User, solana.SystemProgramID, a.CreatorVault,
		solana.TokenProgramID, a.EventAuthority, a.Program, a.FeeConfig, a.FeeProgram,
	}
	for i, m := range metas {
		assert.Equal(t, want[i], m.PublicKey, "account %d", i)
	}

	// buy has the opposite relative order
	buy := BuildBuyInstruction(a, 1, 1).Accounts()
	assert.Equal(t, solana.TokenProgramID, buy[8].PublicKey)
	assert.Equal(t, a.CreatorVault, buy[9].PublicKey)
	assert.Equal(t, a.CreatorVault, metas[8].PublicKey)
	assert.Equal(t, solana.TokenProgramID, metas[9].PublicKey)
}
