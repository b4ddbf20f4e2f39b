package pumpfun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBondingCurveRoundTrip(t *testing.T) {
	curve := InitialBondingCurve(testCreator)
	curve.RealSolReserves = 42

	parsed, ok := ParseBondingCurve(curve.Encode())
	require.True(t, ok)
	assert.Equal(t, curve, parsed)
}

func TestParseBondingCurveShortDataIsUnavailable(t *testing.T) {
	data := InitialBondingCurve(testCreator).Encode()

	_, ok := ParseBondingCurve(data[:BondingCurveAccountSize-1])
	assert.False(t, ok)

	_, ok = ParseBondingCurve(nil)
	assert.False(t, ok)
}

func TestCurveMath(t *testing.T) {
	curve := InitialBondingCurve(testCreator)

	assert.Equal(t, uint64(34_612_903_225_807), curve.BuyTokensOut(LamportsPerSol))
	assert.Equal(t, uint64(937_500_001), curve.SellSolOut(34_612_903_225_807))
	assert.Zero(t, (&BondingCurve{}).BuyTokensOut(1))
}

func TestFallbackRateMatchesFreshCurve(t *testing.T) {
	curve := InitialBondingCurve(testCreator)
	require.Equal(t, uint64(30*LamportsPerSol), curve.VirtualSolReserves)
	require.Equal(t, uint64(1_073_000_000_000_000), curve.VirtualTokenReserves)

	assert.Equal(t, curve.VirtualTokenReserves/31, FallbackTokensPerSol)
	// the curve rounds the remaining reserves down, so it gives one unit more
	assert.Equal(t, FallbackTokensPerSol+1, curve.BuyTokensOut(LamportsPerSol))
	assert.Equal(t, FallbackTokensPerSol, FallbackTokensOut(LamportsPerSol))
}

func TestBuyTokensOutCappedByRealReserves(t *testing.T) {
	curve := InitialBondingCurve(testCreator)
	curve.RealTokenReserves = 10
	assert.Equal(t, uint64(10), curve.BuyTokensOut(LamportsPerSol))
}

func TestQuoteBuy(t *testing.T) {
	q := QuoteBuy(InitialBondingCurve(testCreator), LamportsPerSol, DefaultBuySlippageBps)
	assert.True(t, q.FromCurve)
	assert.Equal(t, uint64(32_882_258_064_517), q.TokenAmount)
	assert.Equal(t, uint64(1_050_000_000), q.MaxSolCost)
}

func TestQuoteBuyFallback(t *testing.T) {
	q := QuoteBuy(nil, 10_000_000, 0)
	assert.False(t, q.FromCurve)
	// 346_129_032_258 minus 5%
	assert.Equal(t, uint64(346_129_032_258-17_306_451_612), q.TokenAmount)
	assert.Equal(t, uint64(10_000_000), q.MaxSolCost)

	complete := InitialBondingCurve(testCreator)
	complete.Complete = true
	assert.False(t, QuoteBuy(complete, 10_000_000, 0).FromCurve)
}

func TestQuoteSell(t *testing.T) {
	q := QuoteSell(InitialBondingCurve(testCreator), 34_612_903_225_807, 0.98, LamportsPerSol)
	assert.True(t, q.FromCurve)
	assert.Equal(t, uint64(918_750_000), q.MinSolOutput)

	fb := QuoteSell(nil, 1000, 0.98, 10_000_000)
	assert.False(t, fb.FromCurve)
	assert.Equal(t, uint64(3_000_000), fb.MinSolOutput)
}

func TestEstimateSellValue(t *testing.T) {
	v, ok := EstimateSellValue(InitialBondingCurve(testCreator), 34_612_903_225_807)
	assert.True(t, ok)
	assert.Equal(t, uint64(937_500_001), v)

	_, ok = EstimateSellValue(nil, 1)
	assert.False(t, ok)
}

func TestIsRetryableCode(t *testing.T) {
	assert.True(t, IsRetryableCode(ErrCodeTooMuchSolRequired))
	assert.True(t, IsRetryableCode(ErrCodeTooLittleSolReceived))
	assert.False(t, IsRetryableCode(ErrCodeBondingCurveComplete))
	assert.Equal(t, "Custom(9999)", ProgramErrorName(9999))
}
