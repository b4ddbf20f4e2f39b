// internal/engine/sell.go
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/ledger"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"go.uber.org/zap"
)

// Sell outcomes.
const (
	sellSold      = "sold"
	sellNothing   = "nothing_to_sell"
	sellRejected  = "rejected"
	sellFeeBudget = "fee_budget"
	sellAmbiguous = "ambiguous"
	sellExhausted = "exhausted"
	sellCancelled = "cancelled"
)

// sellJob is everything a sell worker needs; it never touches loop state.
type sellJob struct {
	mint        solana.PublicKey
	creator     solana.PublicKey
	trigger     string
	buyLamports uint64
	buyFee      uint64
	curve       *pumpfun.BondingCurve
}

// sellAttempt records one try of a sell worker.
type sellAttempt struct {
	Multiplier float64
	Signature  solana.Signature
	Err        error
	Backoff    time.Duration
}

type sellResult struct {
	job       sellJob
	outcome   string
	attempts  []sellAttempt
	signature solana.Signature
	minSolOut uint64
	fee       execution.FeeInfo
	err       error
}

// dispatchSell removes the position and starts its sell worker. Removal
// happens here, before anything is sent, so at most one sell per position
// is ever in flight.
func (e *Engine) dispatchSell(pos *Position, trigger string) {
	if cur, ok := e.positions[pos.Mint]; !ok || cur != pos {
		return
	}
	delete(e.positions, pos.Mint)
	pos.stopTimers()
	pos.State = StateSellDispatched
	e.deps.Ledger.ClearUnsold(pos.Mint.String())
	e.counters.SellsDispatched++
	e.updateGauges()

	job := sellJob{
		mint:        pos.Mint,
		creator:     pos.Creator,
		trigger:     trigger,
		buyLamports: pos.BuyLamports,
		buyFee:      pos.Fee.Lamports,
		curve:       e.curves.get(pos.BondingCurve),
	}
	e.logger.Info("Sell dispatched",
		zap.String("mint", pos.Mint.String()),
		zap.String("trigger", trigger),
		zap.Duration("held", e.clk.Now().Sub(pos.BoughtAt)))

	e.deps.Spawn(func() {
		e.post(sellDone{res: e.runSell(job)})
	})
}

// runSell is the supervised sell worker: up to len(SellMultipliers)
// attempts, relaxing slippage and backing off linearly per failure class.
func (e *Engine) runSell(job sellJob) sellResult {
	res := sellResult{job: job}
	log := e.logger.With(zap.String("mint", job.mint.String()), zap.String("trigger", job.trigger))

	for i, multiplier := range e.cfg.SellMultipliers {
		attempt := i + 1
		a := sellAttempt{Multiplier: multiplier}

		curve := job.curve
		if attempt > 1 {
			// Re-read the curve after a failure.
			curve = nil
		}
		ctx, cancel := e.opCtx()
		prepared, err := e.deps.Trader.PrepareSell(ctx, execution.SellRequest{
			Mint:        job.mint,
			Creator:     job.creator,
			BuyLamports: job.buyLamports,
			Multiplier:  multiplier,
			Curve:       curve,
		})
		cancel()

		var backoff time.Duration
		switch {
		case errors.Is(err, execution.ErrNothingToSell):
			res.attempts = append(res.attempts, sellAttempt{Multiplier: multiplier, Err: err})
			res.outcome = sellNothing
			return res
		case errors.Is(err, risk.ErrFeeBudgetExceeded), errors.Is(err, risk.ErrFeeConfirmationRequired):
			res.attempts = append(res.attempts, sellAttempt{Multiplier: multiplier, Err: err})
			res.outcome, res.err = sellFeeBudget, err
			return res
		case err != nil:
			backoff = time.Duration(attempt) * e.cfg.SendBackoff
			e.metrics.Failure("sell_prepare")
		default:
			a.Signature = prepared.Signature
			res.fee = prepared.Fee
			err = e.sendSell(prepared)
			if err == nil {
				res.attempts = append(res.attempts, a)
				res.outcome, res.signature, res.minSolOut = sellSold, prepared.Signature, prepared.SolLimit
				return res
			}
			if errors.Is(err, execution.ErrConfirmationTimeout) {
				a.Err = err
				res.attempts = append(res.attempts, a)
				res.outcome, res.signature, res.err = sellAmbiguous, prepared.Signature, err
				return res
			}
			if oc, ok := execution.AsOnChain(err); ok {
				if !oc.Retryable {
					a.Err = err
					res.attempts = append(res.attempts, a)
					res.outcome, res.err = sellRejected, err
					return res
				}
				backoff = time.Duration(attempt) * e.cfg.RejectBackoff
				e.metrics.Failure("sell_retryable_reject")
			} else {
				backoff = time.Duration(attempt) * e.cfg.SendBackoff
				e.metrics.Failure("sell_send")
			}
		}

		a.Err, a.Backoff = err, backoff
		res.attempts = append(res.attempts, a)
		res.err = err
		log.Warn("Sell attempt failed",
			zap.Int("attempt", attempt),
			zap.Float64("multiplier", multiplier),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if attempt == len(e.cfg.SellMultipliers) {
			break
		}
		if err := e.deps.Sleep(e.ctx, backoff); err != nil {
			res.outcome, res.err = sellCancelled, err
			return res
		}
	}
	res.outcome = sellExhausted
	return res
}

// sendSell submits a prepared sell and polls its status every
// SellPollInterval for at most SellConfirmTimeout.
func (e *Engine) sendSell(prepared *execution.PreparedTx) error {
	ctx, cancel := e.opCtx()
	sub, err := e.deps.Submitter.Submit(ctx, prepared.Tx)
	cancel()
	if err != nil {
		return err
	}
	e.metrics.Submissions.WithLabelValues(string(execution.SideSell), string(sub.Channel)).Inc()
	if sub.Channel == execution.ChannelSimulate {
		return nil
	}

	polls := 1
	if e.cfg.SellPollInterval > 0 {
		polls = max(int(e.cfg.SellConfirmTimeout/e.cfg.SellPollInterval), 1)
	}
	for i := 1; ; i++ {
		ctx, cancel := e.opCtx()
		st, err := e.deps.Status.Check(ctx, sub.Signature)
		cancel()
		switch {
		case err != nil:
			e.logger.Debug("Sell status check failed", zap.Error(err))
		case st.Status == execution.StatusConfirmed:
			return nil
		case st.Status == execution.StatusFailed:
			if st.Err != nil {
				return st.Err
			}
			return fmt.Errorf("sell %s failed on chain", sub.Signature)
		}
		if i >= polls {
			return fmt.Errorf("%w: sell %s", execution.ErrConfirmationTimeout, sub.Signature)
		}
		if err := e.deps.Sleep(e.ctx, e.cfg.SellPollInterval); err != nil {
			return err
		}
	}
}

// onSellDone records the worker result on the loop.
func (e *Engine) onSellDone(res sellResult) {
	e.metrics.Sells.WithLabelValues(res.job.trigger, res.outcome).Inc()
	fields := []zap.Field{
		zap.String("mint", res.job.mint.String()),
		zap.String("trigger", res.job.trigger),
		zap.String("outcome", res.outcome),
		zap.Int("attempts", len(res.attempts)),
	}

	switch res.outcome {
	case sellSold:
		e.counters.Sold++
		e.deps.Breaker.RecordSuccess()
		// proceeds are booked at the slippage floor, a lower bound on the SOL received
		solDelta := ledger.LamportsToSol(res.minSolOut).Sub(ledger.LamportsToSol(res.fee.Lamports))
		cost := ledger.LamportsToSol(res.job.buyLamports + res.job.buyFee)
		e.deps.Ledger.LogSell(ledger.SellEntry{
			Mint:      res.job.mint.String(),
			Signature: res.signature.String(),
			SolDelta:  solDelta,
			PnL:       solDelta.Sub(cost),
			At:        e.clk.Now(),
			Fee:       feeMetrics(res.fee),
			Status:    ledger.StatusSold,
		})
		e.logger.Info("Sell confirmed", append(fields, zap.String("signature", res.signature.String()))...)
	case sellNothing:
		e.logger.Info("Nothing to sell", fields...)
	case sellAmbiguous:
		e.counters.SellFailures++
		e.failure("sell_ambiguous", append(fields, zap.Error(res.err))...)
	case sellFeeBudget:
		e.counters.SellFailures++
		e.failure("sell_fee_budget", append(fields, zap.Error(res.err))...)
	case sellCancelled:
		e.logger.Warn("Sell cancelled", append(fields, zap.Error(res.err))...)
	default:
		e.counters.SellFailures++
		e.deps.Breaker.RecordFailure("sell_" + res.outcome)
		e.failure("sell_"+res.outcome, append(fields, zap.Error(res.err))...)
	}
}
