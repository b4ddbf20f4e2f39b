package engine

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
)

// curveCache keeps the latest streamed state of recently updated bonding
// curves, evicting the oldest insertions first. Loop-owned.
type curveCache struct {
	limit  int
	curves map[solana.PublicKey]*pumpfun.BondingCurve
	order  []solana.PublicKey
}

func newCurveCache(limit int) *curveCache {
	if limit <= 0 {
		limit = 1024
	}
	return &curveCache{limit: limit, curves: make(map[solana.PublicKey]*pumpfun.BondingCurve, limit)}
}

func (c *curveCache) put(account solana.PublicKey, curve *pumpfun.BondingCurve) {
	if curve == nil {
		return
	}
	if _, ok := c.curves[account]; !ok {
		c.order = append(c.order, account)
		if len(c.order) > c.limit {
			delete(c.curves, c.order[0])
			c.order = c.order[1:]
		}
	}
	c.curves[account] = curve
}

func (c *curveCache) get(account solana.PublicKey) *pumpfun.BondingCurve {
	return c.curves[account]
}

func (c *curveCache) len() int { return len(c.curves) }
