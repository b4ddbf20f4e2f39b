package cache

import (
	"context"
	"errors"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain"
	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"go.uber.org/zap"
)

// BlockhashSource fetches the latest blockhash.
type BlockhashSource interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
}

// FeeSource fetches recent prioritization fee samples.
type FeeSource interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]blockchain.PrioritizationFee, error)
}

// Blockhash is the recent-blockhash cache.
type Blockhash = Value[solana.Hash]

// Fees is the compute-unit price cache (micro-lamports per CU).
type Fees = Value[uint64]

var errNoSamples = errors.New("no prioritization fee samples")

// NewBlockhash creates a blockhash cache backed by src.
func NewBlockhash(src BlockhashSource, cfg Config, clk clock.Clock, logger *zap.Logger) *Blockhash {
	return newValue("blockhash", src.GetRecentBlockhash, cfg.BlockhashInterval, cfg.BlockhashMaxAge, cfg.BootstrapTries, clk, logger)
}

// NewFees creates a fee percentile cache over the given write-locked accounts.
// When the node reports no samples the floor price is used.
func NewFees(src FeeSource, accounts []solana.PublicKey, cfg Config, clk clock.Clock, logger *zap.Logger) *Fees {
	fetch := func(ctx context.Context) (uint64, error) {
		samples, err := src.GetRecentPrioritizationFees(ctx, accounts)
		if err != nil {
			return 0, err
		}
		p, err := Percentile(samples, cfg.FeePercentile)
		if errors.Is(err, errNoSamples) {
			return cfg.MinCUPrice, nil
		}
		return clamp(p, cfg.MinCUPrice, cfg.MaxCUPrice), nil
	}
	return newValue("fees", fetch, cfg.FeeInterval, cfg.FeeMaxAge, cfg.BootstrapTries, clk, logger)
}

// Percentile returns the nearest-rank percentile of the fee samples.
func Percentile(samples []blockchain.PrioritizationFee, pct int) (uint64, error) {
	if len(samples) == 0 {
		return 0, errNoSamples
	}
	fees := make([]uint64, len(samples))
	for i, s := range samples {
		fees[i] = s.PrioritizationFee
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })

	if pct <= 0 {
		return fees[0], nil
	}
	if pct >= 100 {
		return fees[len(fees)-1], nil
	}
	// nearest rank: ceil(pct/100 * n)
	rank := (pct*len(fees) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return fees[rank-1], nil
}

func clamp(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
