package risk

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrFeeBudgetExceeded is returned when fees exceed the hard ratio ceiling.
	ErrFeeBudgetExceeded = errors.New("fee budget exceeded")
	// ErrFeeConfirmationRequired is returned when the ratio needs an explicit
	// confirmation and none was given.
	ErrFeeConfirmationRequired = errors.New("fee ratio requires confirmation")
)

// FeeDecision is the outcome of a fee check.
type FeeDecision int

const (
	FeeProceed FeeDecision = iota
	FeeWarn
	FeeConfirmed
	FeeBlocked
	FeeRejected
)

func (d FeeDecision) String() string {
	switch d {
	case FeeProceed:
		return "proceed"
	case FeeWarn:
		return "warn"
	case FeeConfirmed:
		return "confirmed"
	case FeeBlocked:
		return "blocked"
	case FeeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// FeeGuardConfig holds the ratio bands. Ratios are fee/(value+fee).
type FeeGuardConfig struct {
	WarnRatio    float64
	ConfirmRatio float64
	RejectRatio  float64
	// Override auto-confirms the confirmation band in non-interactive runs.
	Override bool
}

// DefaultFeeGuardConfig returns the 2% / 5% / 10% bands.
func DefaultFeeGuardConfig() FeeGuardConfig {
	return FeeGuardConfig{WarnRatio: 0.02, ConfirmRatio: 0.05, RejectRatio: 0.10}
}

// Confirmer asks an operator to approve a transaction in the confirmation band.
type Confirmer interface {
	ConfirmFee(asset string, ratio float64) bool
}

// FeeGuard gates every submission by its fee-to-value ratio.
type FeeGuard struct {
	cfg       FeeGuardConfig
	confirmer Confirmer
	logger    *zap.Logger
}

// NewFeeGuard creates a fee guard. confirmer may be nil.
func NewFeeGuard(cfg FeeGuardConfig, confirmer Confirmer, logger *zap.Logger) *FeeGuard {
	return &FeeGuard{cfg: cfg, confirmer: confirmer, logger: logger.Named("fee-guard")}
}

// FeeRatio returns fee/(value+fee); zero when both are zero.
func FeeRatio(feeLamports, valueLamports uint64) float64 {
	total := float64(valueLamports) + float64(feeLamports)
	if total == 0 {
		return 0
	}
	return float64(feeLamports) / total
}

// Check classifies a pending submission. A non-nil error means the
// submission must not be sent.
func (g *FeeGuard) Check(asset string, feeLamports, valueLamports uint64) (FeeDecision, error) {
	return g.CheckRatio(asset, FeeRatio(feeLamports, valueLamports))
}

// CheckRatio classifies an already computed ratio.
func (g *FeeGuard) CheckRatio(asset string, ratio float64) (FeeDecision, error) {
	switch {
	case ratio < g.cfg.WarnRatio:
		return FeeProceed, nil

	case ratio <= g.cfg.ConfirmRatio:
		g.logger.Warn("High fee ratio",
			zap.String("asset", asset),
			zap.Float64("fee_ratio", ratio))
		return FeeWarn, nil

	case ratio <= g.cfg.RejectRatio:
		if g.cfg.Override || (g.confirmer != nil && g.confirmer.ConfirmFee(asset, ratio)) {
			g.logger.Warn("Fee ratio confirmed",
				zap.String("asset", asset),
				zap.Float64("fee_ratio", ratio),
				zap.Bool("override", g.cfg.Override))
			return FeeConfirmed, nil
		}
		return FeeBlocked, fmt.Errorf("%w: ratio %.4f for %s", ErrFeeConfirmationRequired, ratio, asset)

	default:
		return FeeRejected, fmt.Errorf("%w: ratio %.4f > %.4f for %s", ErrFeeBudgetExceeded, ratio, g.cfg.RejectRatio, asset)
	}
}
