package pumpfun

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMint    = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	testCreator = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	testUser    = solana.MustPublicKeyFromBase58("11111111111111111111111111111112")
)

func TestDeriveKnownProgramAccounts(t *testing.T) {
	// Известные адреса из IDL программы
	assert.Equal(t, "4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf", DeriveGlobal(PumpFunProgramID).String())
	assert.Equal(t, "Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1", DeriveEventAuthority(PumpFunProgramID).String())
}

// Addresses for a mainnet token: mint DmigFW...pump, the fee recipient as
// creator and the mint authority as trader.
func TestDeriveGoldenAddresses(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("DmigFWPu6xFSntkBqWAm5MqTFiJj8ir74pump")
	creator := solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	user := solana.MustPublicKeyFromBase58("TSLvdd1pWpHVjahSpsvCXUbgwsL3JAcvokwaKt1eokM")

	a := GetDefaultConfig().DeriveTradeAccounts(mint, creator, user)

	tests := []struct {
		name string
		got  solana.PublicKey
		want string
	}{
		{"global", a.Global, "4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf"},
		{"event authority", a.EventAuthority, "Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1"},
		{"bonding curve", a.BondingCurve, "BM3dHFwdd5i42pA14zcmM4KDczQmtkS9AKR9L3Pq8rLX"},
		{"associated bonding curve", a.AssociatedBondingCurve, "4PwSE95s9zhvL3e87kj8omAock1LH9zN3nuAkNH4jT5M"},
		{"creator vault", a.CreatorVault, "Ab79eFyx9rVxZaAzzkQvFtRGZMxXQrRwubeRAhVYQ5cW"},
		{"global volume accumulator", a.GlobalVolumeAccumulator, "Hq2wp8uJ9jCPsYgNHex8RtqdvMPfVGoYwjvF1ATiwn2Y"},
		{"user volume accumulator", a.UserVolumeAccumulator, "CkHTWcqDe4HFSBWP7FN7tqvE119tVmBWSLVCmmtxTrLx"},
		{"fee config", a.FeeConfig, "8Wf5TiAheLUqBrKXeYg2JtAFFMWtKdG2BSFgqUcPVwTt"},
		{"user token account", a.UserTokenAccount, "e7hKUQyK45KQpiNsPXFaDv4MCbAqZt6f9VXKjuxSHu1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.String())
		})
	}
}

func TestDerivationIsDeterministic(t *testing.T) {
	a := DeriveBondingCurve(testMint, PumpFunProgramID)
	b := DeriveBondingCurve(testMint, PumpFunProgramID)
	assert.Equal(t, a, b)

	assert.Equal(t,
		DeriveCreatorVault(testCreator, PumpFunProgramID),
		DeriveCreatorVault(testCreator, PumpFunProgramID))
	assert.Equal(t,
		DeriveUserVolumeAccumulator(testUser, PumpFunProgramID),
		DeriveUserVolumeAccumulator(testUser, PumpFunProgramID))

	// different seeds give different addresses
	assert.NotEqual(t, DeriveCreatorVault(testCreator, PumpFunProgramID), DeriveCreatorVault(testUser, PumpFunProgramID))
	assert.NotEqual(t, DeriveGlobalVolumeAccumulator(PumpFunProgramID), DeriveUserVolumeAccumulator(testUser, PumpFunProgramID))
}

func TestDeriveMatchesManualSeeds(t *testing.T) {
	want, _, err := solana.FindProgramAddress([][]byte{[]byte("bonding-curve"), testMint.Bytes()}, PumpFunProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, DeriveBondingCurve(testMint, PumpFunProgramID))

	want, _, err = solana.FindProgramAddress([][]byte{[]byte("fee_config"), PumpFunProgramID.Bytes()}, PumpFeeProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, DeriveFeeConfig(PumpFunProgramID, PumpFeeProgramID))
}

func TestAssociatedAccountsMatchATA(t *testing.T) {
	bc := DeriveBondingCurve(testMint, PumpFunProgramID)

	want, _, err := solana.FindAssociatedTokenAddress(bc, testMint)
	require.NoError(t, err)
	assert.Equal(t, want, DeriveAssociatedBondingCurve(bc, testMint))

	want, _, err = solana.FindAssociatedTokenAddress(testUser, testMint)
	require.NoError(t, err)
	assert.Equal(t, want, DeriveUserTokenAccount(testUser, testMint))
}

func TestDeriveTradeAccounts(t *testing.T) {
	cfg := GetDefaultConfig()
	a := cfg.DeriveTradeAccounts(testMint, testCreator, testUser)

	assert.Equal(t, testMint, a.Mint)
	assert.Equal(t, testUser, a.User)
	assert.Equal(t, DefaultFeeRecipient, a.FeeRecipient)
	assert.Equal(t, DeriveBondingCurve(testMint, PumpFunProgramID), a.BondingCurve)
	assert.Equal(t, DeriveCreatorVault(testCreator, PumpFunProgramID), a.CreatorVault)
	assert.Equal(t, PumpFeeProgramID, a.FeeProgram)
}
