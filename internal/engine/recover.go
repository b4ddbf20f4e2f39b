// internal/engine/recover.go
package engine

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"go.uber.org/zap"
)

// triggerRecovered labels sells of holdings adopted from a previous run.
const triggerRecovered = "recovered"

// Holding is a token balance bought by a previous run that no position owns.
type Holding struct {
	Mint        solana.PublicKey
	Creator     solana.PublicKey
	BuyLamports uint64
	BuyFee      uint64
}

// Adopt queues holdings to be sold as soon as Run starts. It must be called
// before Run.
func (e *Engine) Adopt(holdings ...Holding) {
	e.adopted = append(e.adopted, holdings...)
}

// sellAdopted turns every adopted holding into a confirmed position and
// dispatches its sell. The sell clears the unsold marker restored by the
// ledger sync, whatever its outcome.
func (e *Engine) sellAdopted() {
	now := e.clk.Now()
	for _, h := range e.adopted {
		if _, ok := e.positions[h.Mint]; ok {
			continue
		}
		pos := &Position{
			Mint:         h.Mint,
			Creator:      h.Creator,
			BondingCurve: pumpfun.DeriveBondingCurve(h.Mint, pumpfun.PumpFunProgramID),
			BoughtAt:     now,
			BuyLamports:  h.BuyLamports,
			Fee:          execution.FeeInfo{Lamports: h.BuyFee},
			State:        StateConfirmed,
			Confirmed:    true,
		}
		e.positions[h.Mint] = pos
		e.logger.Info("Adopted holding", zap.String("mint", h.Mint.String()))
		e.dispatchSell(pos, triggerRecovered)
	}
	e.adopted = nil
}
