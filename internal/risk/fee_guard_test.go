package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubConfirmer struct{ answer bool }

func (s stubConfirmer) ConfirmFee(string, float64) bool { return s.answer }

func TestFeeRatio(t *testing.T) {
	assert.InDelta(t, 0.03, FeeRatio(3, 97), 1e-12)
	assert.Zero(t, FeeRatio(0, 0))
}

func TestFeeGuardBands(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := NewFeeGuard(DefaultFeeGuardConfig(), nil, zap.New(core))

	d, err := g.CheckRatio("A", 0.01)
	assert.NoError(t, err)
	assert.Equal(t, FeeProceed, d)
	assert.Zero(t, logs.Len())

	d, err = g.CheckRatio("A", 0.03)
	assert.NoError(t, err)
	assert.Equal(t, FeeWarn, d)
	assert.Equal(t, 1, logs.FilterMessage("High fee ratio").Len())

	d, err = g.CheckRatio("A", 0.07)
	assert.ErrorIs(t, err, ErrFeeConfirmationRequired)
	assert.Equal(t, FeeBlocked, d)

	d, err = g.CheckRatio("A", 0.12)
	assert.ErrorIs(t, err, ErrFeeBudgetExceeded)
	assert.Equal(t, FeeRejected, d)
}

func TestFeeGuardOverride(t *testing.T) {
	cfg := DefaultFeeGuardConfig()
	cfg.Override = true
	g := NewFeeGuard(cfg, nil, zap.NewNop())

	d, err := g.CheckRatio("A", 0.07)
	assert.NoError(t, err)
	assert.Equal(t, FeeConfirmed, d)

	_, err = g.CheckRatio("A", 0.12)
	assert.ErrorIs(t, err, ErrFeeBudgetExceeded, "override never covers the reject band")
}

func TestFeeGuardConfirmer(t *testing.T) {
	yes := NewFeeGuard(DefaultFeeGuardConfig(), stubConfirmer{answer: true}, zap.NewNop())
	d, err := yes.Check("A", 7, 93)
	assert.NoError(t, err)
	assert.Equal(t, FeeConfirmed, d)

	no := NewFeeGuard(DefaultFeeGuardConfig(), stubConfirmer{answer: false}, zap.NewNop())
	_, err = no.Check("A", 7, 93)
	assert.ErrorIs(t, err, ErrFeeConfirmationRequired)
}
