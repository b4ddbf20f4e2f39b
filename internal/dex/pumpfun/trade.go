// =============================
// File: internal/dex/pumpfun/trade.go
// =============================
package pumpfun

import (
	"math"
)

// BuyQuote is the argument pair of a buy instruction.
type BuyQuote struct {
	TokenAmount uint64
	MaxSolCost  uint64
	// FromCurve is false when the fallback tokens-per-SOL rate was used.
	FromCurve bool
}

// QuoteBuy computes the token amount and max SOL cost for spending solIn
// lamports. curve may be nil, in which case the fallback rate is used. A 5%
// buffer is taken off the token amount; slippageBps is added on top of the
// spend for the cost ceiling.
func QuoteBuy(curve *BondingCurve, solIn uint64, slippageBps uint64) BuyQuote {
	q := BuyQuote{}
	var tokens uint64
	if curve != nil && !curve.Complete {
		tokens = curve.BuyTokensOut(solIn)
		q.FromCurve = tokens > 0
	}
	if tokens == 0 {
		tokens = FallbackTokensOut(solIn)
	}

	q.TokenAmount = tokens - mulBps(tokens, BuyTokenBufferBps)
	q.MaxSolCost = solIn + mulBps(solIn, slippageBps)
	return q
}

// SellQuote is the argument pair of a sell instruction.
type SellQuote struct {
	TokenAmount  uint64
	MinSolOutput uint64
	FromCurve    bool
}

// QuoteSell computes the minimum SOL output for selling tokens with the given
// slippage multiplier (e.g. 0.98). With no usable curve the floor is
// SellFallbackFraction of the original buy size.
func QuoteSell(curve *BondingCurve, tokens uint64, multiplier float64, buyLamports uint64) SellQuote {
	q := SellQuote{TokenAmount: tokens}
	if curve != nil && !curve.Complete {
		if out := curve.SellSolOut(tokens); out > 0 {
			q.MinSolOutput = scale(out, multiplier)
			q.FromCurve = true
			return q
		}
	}
	q.MinSolOutput = scale(buyLamports, SellFallbackFraction)
	return q
}

// EstimateSellValue is the expected SOL proceeds of selling tokens without
// any slippage applied. ok is false when no estimate can be made.
func EstimateSellValue(curve *BondingCurve, tokens uint64) (uint64, bool) {
	if curve == nil || curve.Complete {
		return 0, false
	}
	return curve.SellSolOut(tokens), true
}

func mulBps(v, bps uint64) uint64 {
	if bps == 0 {
		return 0
	}
	hi := v / 10_000
	lo := v % 10_000
	return hi*bps + lo*bps/10_000
}

func scale(v uint64, f float64) uint64 {
	if f <= 0 {
		return 0
	}
	return uint64(math.Floor(float64(v) * f))
}
