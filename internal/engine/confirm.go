// internal/engine/confirm.go
package engine

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/ledger"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"go.uber.org/zap"
)

// takePending removes and returns the pending submission of sig. Only the
// first caller gets it; every later path sees ok == false and no-ops.
func (e *Engine) takePending(sig solana.Signature) (*PendingSubmission, bool) {
	p, ok := e.pending[sig]
	if !ok {
		return nil, false
	}
	delete(e.pending, sig)
	if p.poll != nil {
		p.poll.Stop()
	}
	return p, true
}

func (e *Engine) resolveFromStream(p *PendingSubmission, ev *stream.TransactionEvent) {
	if ev.Failed {
		var err error
		if oc := e.deps.Status.ClassifyTxError(ev.Err); oc != nil {
			err = oc
		}
		e.resolveFailed(p, "buy_failed_onchain", err)
		return
	}
	e.resolveConfirmed(p, "stream")
}

// resolveConfirmed moves the position to Confirmed and evaluates whatever
// was deferred while it was pending.
func (e *Engine) resolveConfirmed(p *PendingSubmission, path string) {
	if _, ok := e.takePending(p.Signature); !ok {
		return
	}
	e.metrics.Confirmations.WithLabelValues(path, "confirmed").Inc()
	e.metrics.ConfirmLatency.Observe(e.clk.Now().Sub(p.DispatchedAt).Seconds())
	e.deps.Breaker.RecordSuccess()

	pos, ok := e.positions[p.Mint]
	if !ok || pos.Signature != p.Signature {
		e.updateGauges()
		return
	}
	pos.Confirmed = true
	pos.State = StateConfirmed
	e.counters.Confirmed++

	e.deps.Ledger.LogBuy(ledger.BuyEntry{
		Mint:      pos.Mint.String(),
		Signature: pos.Signature.String(),
		SolDelta:  ledger.LamportsToSol(pos.BuyLamports + pos.Fee.Lamports).Neg(),
		At:        e.clk.Now(),
		Creator:   pos.Creator.String(),
		Fee:       feeMetrics(pos.Fee),
	})
	e.logger.Info("Buy confirmed",
		zap.String("mint", pos.Mint.String()),
		zap.String("signature", pos.Signature.String()),
		zap.String("path", path),
		zap.Duration("latency", e.clk.Now().Sub(p.DispatchedAt)))
	e.updateGauges()

	e.evaluateDeferred(pos)
}

// resolveFailed drops the position of a failed buy and trips the breaker.
func (e *Engine) resolveFailed(p *PendingSubmission, reason string, err error) {
	if _, ok := e.takePending(p.Signature); !ok {
		return
	}
	e.metrics.Confirmations.WithLabelValues(reasonPath(reason), "failed").Inc()
	e.deps.Breaker.RecordFailure(reason)
	e.counters.FailedBuys++

	if pos, ok := e.positions[p.Mint]; ok && pos.Signature == p.Signature {
		pos.stopTimers()
		delete(e.positions, p.Mint)
	}
	e.failure(reason,
		zap.String("mint", p.Mint.String()),
		zap.String("signature", p.Signature.String()),
		zap.Error(err))
	e.updateGauges()
}

func reasonPath(reason string) string {
	switch reason {
	case "buy_failed_onchain":
		return "stream"
	case "buy_poll_failed":
		return "poll"
	case "buy_timeout":
		return "sweep"
	default:
		return "submit"
	}
}

// onPollDue starts the one-shot status query of a still pending buy.
func (e *Engine) onPollDue(sig solana.Signature) {
	if _, ok := e.pending[sig]; !ok {
		return
	}
	e.deps.Spawn(func() {
		ctx, cancel := e.opCtx()
		defer cancel()
		res, err := e.deps.Status.Check(ctx, sig)
		e.post(pollResult{sig: sig, res: res, err: err})
	})
}

func (e *Engine) onPollResult(m pollResult) {
	p, ok := e.pending[m.sig]
	if !ok {
		return
	}
	if m.err != nil {
		e.metrics.Failure("status_poll")
		e.logger.Warn("Status poll failed, leaving buy pending",
			zap.String("signature", m.sig.String()),
			zap.Error(m.err))
		return
	}
	switch m.res.Status {
	case execution.StatusConfirmed:
		e.resolveConfirmed(p, "poll")
	case execution.StatusFailed:
		var err error
		if m.res.Err != nil {
			err = m.res.Err
		}
		e.resolveFailed(p, "buy_poll_failed", err)
	default:
		e.metrics.Confirmations.WithLabelValues("poll", "ambiguous").Inc()
		e.logger.Info("Buy status unknown, waiting for stream or sweep",
			zap.String("signature", m.sig.String()))
	}
}

// sweep fails every pending submission older than the TTL.
func (e *Engine) sweep() {
	now := e.clk.Now()
	var expired []*PendingSubmission
	for _, p := range e.pending {
		if now.Sub(p.DispatchedAt) >= e.cfg.PendingTTL {
			expired = append(expired, p)
		}
	}
	for _, p := range expired {
		e.resolveFailed(p, "buy_timeout", execution.ErrConfirmationTimeout)
	}
}

func feeMetrics(f execution.FeeInfo) ledger.FeeMetrics {
	return ledger.FeeMetrics{
		FeeLamports: f.Lamports,
		CULimit:     f.ComputeUnitLimit,
		CUPrice:     f.ComputeUnitPrice,
		Ratio:       f.Ratio,
	}
}
