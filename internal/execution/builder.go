package execution

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"github.com/rovshanmuradov/pump-sniper/internal/wallet"
)

// BaseFeeLamports is the network fee per signature.
const BaseFeeLamports = 5_000

// HashSource returns a fresh blockhash or cache.ErrStale.
type HashSource interface {
	Get() (solana.Hash, error)
}

// PriceSource returns the compute-unit price in micro-lamports or cache.ErrStale.
type PriceSource interface {
	Get() (uint64, error)
}

// FeeChecker gates a submission by its fee-to-value ratio.
type FeeChecker interface {
	Check(asset string, feeLamports, valueLamports uint64) (risk.FeeDecision, error)
}

// FeeInfo describes the fee side of a built transaction.
type FeeInfo struct {
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	Lamports         uint64
	Ratio            float64
	Decision         risk.FeeDecision
}

// EstimateFeeLamports returns base fee plus ceil(price * limit / 1e6).
func EstimateFeeLamports(signatures int, cuPrice uint64, cuLimit uint32) uint64 {
	priority := (cuPrice*uint64(cuLimit) + 999_999) / 1_000_000
	return uint64(signatures)*BaseFeeLamports + priority
}

// Builder assembles, fee-checks and signs transactions from cached inputs.
// It performs no network I/O.
type Builder struct {
	wallet    *wallet.Wallet
	blockhash HashSource
	price     PriceSource
	fees      FeeChecker
}

// NewBuilder creates a transaction builder.
func NewBuilder(w *wallet.Wallet, blockhash HashSource, price PriceSource, fees FeeChecker) *Builder {
	return &Builder{wallet: w, blockhash: blockhash, price: price, fees: fees}
}

// Build prepends compute-budget instructions to ixs, checks the fee budget
// against valueLamports and signs with the wallet. Stale caches surface as
// cache.ErrStale; fee violations as risk errors.
func (b *Builder) Build(asset string, cuLimit uint32, valueLamports uint64, ixs ...solana.Instruction) (*solana.Transaction, FeeInfo, error) {
	hash, err := b.blockhash.Get()
	if err != nil {
		return nil, FeeInfo{}, fmt.Errorf("blockhash: %w", err)
	}
	price, err := b.price.Get()
	if err != nil {
		return nil, FeeInfo{}, fmt.Errorf("priority fee: %w", err)
	}

	info := FeeInfo{
		ComputeUnitLimit: cuLimit,
		ComputeUnitPrice: price,
		Lamports:         EstimateFeeLamports(1, price, cuLimit),
	}
	info.Ratio = risk.FeeRatio(info.Lamports, valueLamports)
	info.Decision, err = b.fees.Check(asset, info.Lamports, valueLamports)
	if err != nil {
		return nil, info, err
	}

	all := make([]solana.Instruction, 0, len(ixs)+2)
	all = append(all,
		computebudget.NewSetComputeUnitLimitInstruction(cuLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(price).Build(),
	)
	all = append(all, ixs...)

	tx, err := solana.NewTransaction(all, hash, solana.TransactionPayer(b.wallet.PublicKey))
	if err != nil {
		return nil, info, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := b.wallet.SignTransaction(tx); err != nil {
		return nil, info, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, info, nil
}
