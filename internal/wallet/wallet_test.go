package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalletFromBase58(t *testing.T) {
	key := solana.NewWallet().PrivateKey

	w, err := NewWallet(base58.Encode(key))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey)
	assert.Equal(t, key.PublicKey().String(), w.String())
}

func TestNewWalletRejectsBadKeys(t *testing.T) {
	_, err := NewWallet("  ")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = NewWallet(base58.Encode([]byte{1, 2, 3}))
	assert.Error(t, err)

	_, err = NewWallet("0OIl")
	assert.Error(t, err)
}

func TestGetATACachesResult(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	mint := solana.NewWallet().PublicKey()

	want, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	require.NoError(t, err)

	got, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	again, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestCreateATAIdempotentInstruction(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	mint := solana.NewWallet().PublicKey()

	ix, err := w.CreateATAIdempotentInstruction(mint)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, ix.ProgramID())
	assert.Len(t, ix.Accounts(), 6)
	assert.True(t, ix.Accounts()[0].IsSigner)
}

func TestSignTransaction(t *testing.T) {
	w := FromPrivateKey(solana.NewWallet().PrivateKey)
	ix, err := w.CreateATAIdempotentInstruction(solana.NewWallet().PublicKey())
	require.NoError(t, err)

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(w.PublicKey))
	require.NoError(t, err)
	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.NoError(t, tx.VerifySignatures())
}
