// =============================================
// File: internal/dex/pumpfun/global_account.go
// =============================================
package pumpfun

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// globalAccountSize covers discriminator, initialized flag, two keys and five u64s.
const globalAccountSize = 8 + 1 + 32 + 32 + 5*8

// ErrGlobalAccountInvalid is returned when the global account cannot be decoded.
var ErrGlobalAccountInvalid = errors.New("invalid pump.fun global account")

// GlobalAccount represents the structure of the PumpFun global account data
type GlobalAccount struct {
	Initialized                 bool
	Authority                   solana.PublicKey
	FeeRecipient                solana.PublicKey
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	TokenTotalSupply            uint64
	FeeBasisPoints              uint64
}

// AccountReader reads raw account data together with the owning program.
type AccountReader interface {
	GetAccountData(ctx context.Context, account solana.PublicKey) (data []byte, owner solana.PublicKey, err error)
}

// ParseGlobalAccount decodes raw global account data.
func ParseGlobalAccount(data []byte) (*GlobalAccount, error) {
	if len(data) < globalAccountSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrGlobalAccountInvalid, len(data))
	}

	account := &GlobalAccount{
		Initialized:  data[8] != 0,
		Authority:    solana.PublicKeyFromBytes(data[9:41]),
		FeeRecipient: solana.PublicKeyFromBytes(data[41:73]),
	}

	offset := 73
	for _, dst := range []*uint64{
		&account.InitialVirtualTokenReserves,
		&account.InitialVirtualSolReserves,
		&account.InitialRealTokenReserves,
		&account.TokenTotalSupply,
		&account.FeeBasisPoints,
	} {
		*dst = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
	}
	return account, nil
}

// FetchGlobalAccount fetches and deserializes the global account data
func FetchGlobalAccount(ctx context.Context, reader AccountReader, cfg *Config, logger *zap.Logger) (*GlobalAccount, error) {
	logger.Debug("Fetching global account data", zap.String("address", cfg.Global.String()))

	data, owner, err := reader.GetAccountData(ctx, cfg.Global)
	if err != nil {
		return nil, fmt.Errorf("failed to get global account: %w", err)
	}

	if !owner.Equals(cfg.ProgramID) {
		return nil, fmt.Errorf("%w: owner %s, expected %s", ErrGlobalAccountInvalid, owner, cfg.ProgramID)
	}

	account, err := ParseGlobalAccount(data)
	if err != nil {
		return nil, err
	}

	logger.Info("Global account data parsed successfully",
		zap.Bool("initialized", account.Initialized),
		zap.String("fee_recipient", account.FeeRecipient.String()),
		zap.Uint64("fee_basis_points", account.FeeBasisPoints))

	return account, nil
}

// ApplyGlobalAccount updates the fee recipient from on-chain state.
func (c *Config) ApplyGlobalAccount(g *GlobalAccount) {
	if g == nil || g.FeeRecipient.IsZero() {
		return
	}
	c.FeeRecipient = g.FeeRecipient
}
