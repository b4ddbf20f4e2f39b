// internal/engine/buy.go
package engine

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/pump-sniper/internal/cache"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"go.uber.org/zap"
)

// onTransaction routes one streamed transaction: confirmation of our own
// buys first, then activity on held assets, then new launches.
func (e *Engine) onTransaction(ev *stream.TransactionEvent) {
	if p, ok := e.pending[ev.Signature]; ok {
		e.resolveFromStream(p, ev)
		return
	}
	if ev.FeePayer.Equals(e.deps.Trader.Wallet()) {
		// Our own sells and ATA traffic.
		return
	}
	if ev.Failed {
		return
	}

	e.detectActivity(ev)

	for _, create := range ev.Creates() {
		if err := e.tryBuy(create); err != nil {
			e.logger.Debug("Buy skipped",
				zap.String("mint", create.Mint.String()),
				zap.Error(err))
		}
	}
}

// tryBuy admits, builds, records and dispatches a buy. Every decision is
// taken before the send worker starts, so a second event for the same asset
// sees the position already in place.
func (e *Engine) tryBuy(create pumpfun.DecodedInstruction) error {
	if _, ok := e.positions[create.Mint]; ok {
		e.metrics.Admission.WithLabelValues(admissionLabel(ErrAlreadyPositioned)).Inc()
		return ErrAlreadyPositioned
	}
	if err := e.admit(); err != nil {
		e.metrics.Admission.WithLabelValues(admissionLabel(err)).Inc()
		return err
	}
	e.metrics.Admission.WithLabelValues(admissionLabel(nil)).Inc()

	prepared, err := e.deps.Trader.BuildBuy(execution.BuyRequest{
		Mint:     create.Mint,
		Creator:  create.Creator,
		Curve:    e.curves.get(create.BondingCurve),
		Lamports: e.cfg.BuyLamports,
	})
	if err != nil {
		e.failure(buildFailureReason("buy", err),
			zap.String("mint", create.Mint.String()),
			zap.Error(err))
		return fmt.Errorf("build buy: %w", err)
	}

	now := e.clk.Now()
	pos := &Position{
		Mint:         create.Mint,
		Creator:      create.Creator,
		BondingCurve: create.BondingCurve,
		Signature:    prepared.Signature,
		BoughtAt:     now,
		BuyLamports:  e.cfg.BuyLamports,
		TokenAmount:  prepared.TokenAmount,
		Fee:          prepared.Fee,
		State:        StatePending,
	}
	p := &PendingSubmission{
		Signature:    prepared.Signature,
		Mint:         create.Mint,
		Creator:      create.Creator,
		DispatchedAt: now,
		SellTimeout:  e.cfg.SellTimeout,
	}
	e.positions[pos.Mint] = pos
	e.pending[p.Signature] = p
	e.lastBuy = now
	e.armTimers(pos)

	sig := p.Signature
	p.poll = e.clk.AfterFunc(e.cfg.PollDelay, func() { e.post(pollDue{sig: sig}) })
	e.counters.Buys++
	e.updateGauges()

	e.logger.Info("Buy dispatched",
		zap.String("mint", pos.Mint.String()),
		zap.String("signature", sig.String()),
		zap.Uint64("lamports", pos.BuyLamports),
		zap.Uint64("token_amount", pos.TokenAmount),
		zap.Bool("from_curve", prepared.FromCurve),
		zap.Float64("fee_ratio", prepared.Fee.Ratio))

	tx := prepared.Tx
	e.deps.Spawn(func() {
		ctx, cancel := e.opCtx()
		defer cancel()
		sub, err := e.deps.Submitter.Submit(ctx, tx)
		e.post(buySubmitted{sig: sig, sub: sub, err: err})
	})
	return nil
}

// onBuySubmitted handles the send result of a buy. A failed send resolves
// the pending submission immediately; a successful one waits for the
// stream or the poll, except in simulate mode.
func (e *Engine) onBuySubmitted(m buySubmitted) {
	p, ok := e.pending[m.sig]
	if !ok {
		return
	}
	if m.err != nil {
		reason := "buy_submit"
		if _, onChain := execution.AsOnChain(m.err); onChain {
			reason = "buy_rejected"
		}
		e.resolveFailed(p, reason, m.err)
		return
	}

	e.metrics.Submissions.WithLabelValues(string(execution.SideBuy), string(m.sub.Channel)).Inc()
	if m.sub.Channel == execution.ChannelSimulate {
		e.resolveConfirmed(p, "simulate")
		return
	}
	e.logger.Debug("Buy sent",
		zap.String("signature", m.sig.String()),
		zap.String("channel", string(m.sub.Channel)))
}

// buildFailureReason labels errors raised before anything was sent.
func buildFailureReason(side string, err error) string {
	switch {
	case errors.Is(err, cache.ErrStale):
		return side + "_stale_cache"
	case errors.Is(err, risk.ErrFeeBudgetExceeded), errors.Is(err, risk.ErrFeeConfirmationRequired):
		return side + "_fee_budget"
	default:
		return side + "_build"
	}
}
