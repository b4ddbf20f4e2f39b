// internal/engine/timers.go
package engine

import (
	"time"

	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"go.uber.org/zap"
)

// armTimers starts the sell, stop-loss and no-activity timers of a freshly
// dispatched position. Callbacks only post to the loop.
func (e *Engine) armTimers(pos *Position) {
	durations := [timerCount]time.Duration{
		timerSell:       e.cfg.SellTimeout,
		timerStopLoss:   e.cfg.StopLossTimeout,
		timerNoActivity: e.cfg.NoActivityTimeout,
	}
	mint, sig := pos.Mint, pos.Signature
	for kind, d := range durations {
		if d <= 0 {
			continue
		}
		kind := timerKind(kind)
		pos.timers[kind] = e.clk.AfterFunc(d, func() {
			e.post(timerFired{mint: mint, sig: sig, kind: kind})
		})
	}
}

func (e *Engine) onTimer(m timerFired) {
	pos, ok := e.positions[m.mint]
	if !ok || pos.Signature != m.sig {
		return
	}
	pos.timers[m.kind] = nil

	if !pos.Confirmed {
		pos.due[m.kind] = true
		e.logger.Debug("Timer deferred until confirmation",
			zap.String("mint", pos.Mint.String()),
			zap.String("timer", m.kind.String()))
		return
	}
	e.fireTimer(pos, m.kind)
}

func (e *Engine) fireTimer(pos *Position, kind timerKind) {
	switch kind {
	case timerSell:
		pos.State = StateTimedOut
		e.dispatchSell(pos, "timeout")
	case timerNoActivity:
		if !pos.Activity {
			pos.State = StateTimedOut
			e.dispatchSell(pos, "no_activity")
		}
	case timerStopLoss:
		e.evaluateStopLoss(pos)
	}
}

// evaluateDeferred runs right after confirmation: observed activity sells
// first, then any timer that fired while pending.
func (e *Engine) evaluateDeferred(pos *Position) {
	if pos.Activity {
		pos.State = StateActivityDetected
		e.dispatchSell(pos, "activity")
		return
	}
	for _, kind := range []timerKind{timerSell, timerNoActivity, timerStopLoss} {
		if !pos.due[kind] {
			continue
		}
		pos.due[kind] = false
		e.fireTimer(pos, kind)
		if _, open := e.positions[pos.Mint]; !open {
			return
		}
	}
}

// detectActivity flags held assets touched by someone else's transaction.
func (e *Engine) detectActivity(ev *stream.TransactionEvent) {
	if len(e.positions) == 0 {
		return
	}
	var touched []*Position
	for _, pos := range e.positions {
		if pos.Activity {
			continue
		}
		if referencesMint(ev, pos) {
			touched = append(touched, pos)
		}
	}
	for _, pos := range touched {
		pos.Activity = true
		e.counters.Activity++
		e.logger.Info("Activity detected",
			zap.String("mint", pos.Mint.String()),
			zap.String("by", ev.FeePayer.String()),
			zap.String("signature", ev.Signature.String()),
			zap.Bool("confirmed", pos.Confirmed))
		if pos.Confirmed {
			pos.State = StateActivityDetected
			e.dispatchSell(pos, "activity")
		}
	}
}

func referencesMint(ev *stream.TransactionEvent, pos *Position) bool {
	for _, ix := range ev.Instructions {
		if ix.Mint.Equals(pos.Mint) {
			return true
		}
	}
	return ev.References(pos.Mint)
}

// evaluateStopLoss checks the position once against the stop-loss floor,
// using the streamed curve when available and an RPC read otherwise.
func (e *Engine) evaluateStopLoss(pos *Position) {
	if curve := e.curves.get(pos.BondingCurve); curve != nil {
		e.applyStopLoss(pos, curve)
		return
	}
	mint, sig := pos.Mint, pos.Signature
	e.deps.Spawn(func() {
		ctx, cancel := e.opCtx()
		defer cancel()
		curve, ok, err := e.deps.Trader.FetchCurve(ctx, mint)
		if err == nil && !ok {
			curve = nil
		}
		e.post(stopLossCurve{mint: mint, sig: sig, curve: curve, err: err})
	})
}

func (e *Engine) onStopLossCurve(m stopLossCurve) {
	pos, ok := e.positions[m.mint]
	if !ok || pos.Signature != m.sig {
		return
	}
	if m.err != nil || m.curve == nil {
		e.failure("stop_loss_curve",
			zap.String("mint", m.mint.String()),
			zap.Error(m.err))
		return
	}
	e.applyStopLoss(pos, m.curve)
}

func (e *Engine) applyStopLoss(pos *Position, curve *pumpfun.BondingCurve) {
	estimate, ok := pumpfun.EstimateSellValue(curve, pos.TokenAmount)
	if !ok {
		e.logger.Debug("Stop-loss skipped, curve cannot be priced",
			zap.String("mint", pos.Mint.String()),
			zap.Bool("complete", curve.Complete))
		return
	}
	floor := uint64(float64(pos.BuyLamports) * e.cfg.StopLossFraction)
	e.logger.Debug("Stop-loss evaluated",
		zap.String("mint", pos.Mint.String()),
		zap.Uint64("estimate", estimate),
		zap.Uint64("floor", floor))
	if estimate < floor {
		pos.State = StateStopLossTriggered
		e.dispatchSell(pos, "stop_loss")
	}
}
