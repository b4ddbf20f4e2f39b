package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/ledger"
	"github.com/rovshanmuradov/pump-sniper/internal/metrics"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	buyTag  = 0xB0
	sellTag = 0x5E
)

func sigOf(tag byte, n int) solana.Signature {
	var s solana.Signature
	s[0], s[1] = tag, byte(n)
	return s
}

func buySig(n int) solana.Signature  { return sigOf(buyTag, n) }
func sellSig(n int) solana.Signature { return sigOf(sellTag, n) }

type fakeTrader struct {
	clk      clock.Clock
	wallet   solana.PublicKey
	buildErr error
	buys     []execution.BuyRequest

	sellErrs []error
	sells    []execution.SellRequest
	sellAt   []time.Time

	curve   *pumpfun.BondingCurve
	fetches int
}

func (f *fakeTrader) Wallet() solana.PublicKey { return f.wallet }

func (f *fakeTrader) BuildBuy(req execution.BuyRequest) (*execution.PreparedTx, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.buys = append(f.buys, req)
	sig := buySig(len(f.buys))
	return &execution.PreparedTx{
		Side:        execution.SideBuy,
		Asset:       req.Mint,
		Tx:          &solana.Transaction{Signatures: []solana.Signature{sig}},
		Signature:   sig,
		Fee:         execution.FeeInfo{Lamports: 5_000},
		TokenAmount: 1_000_000,
		SolLimit:    req.Lamports,
		FromCurve:   req.Curve != nil,
	}, nil
}

func (f *fakeTrader) PrepareSell(_ context.Context, req execution.SellRequest) (*execution.PreparedTx, error) {
	f.sells = append(f.sells, req)
	f.sellAt = append(f.sellAt, f.clk.Now())
	if i := len(f.sells) - 1; i < len(f.sellErrs) && f.sellErrs[i] != nil {
		return nil, f.sellErrs[i]
	}
	sig := sellSig(len(f.sells))
	return &execution.PreparedTx{
		Side:      execution.SideSell,
		Asset:     req.Mint,
		Tx:        &solana.Transaction{Signatures: []solana.Signature{sig}},
		Signature: sig,
		Fee:       execution.FeeInfo{Lamports: 5_000},
		SolLimit:  9_000_000,
	}, nil
}

func (f *fakeTrader) FetchCurve(context.Context, solana.PublicKey) (*pumpfun.BondingCurve, bool, error) {
	f.fetches++
	return f.curve, f.curve != nil, nil
}

type fakeSubmitter struct {
	simulate bool
	errs     map[solana.Signature]error
	sent     []solana.Signature
}

func (f *fakeSubmitter) Simulating() bool { return f.simulate }

func (f *fakeSubmitter) Submit(_ context.Context, tx *solana.Transaction) (execution.Submission, error) {
	sig := tx.Signatures[0]
	f.sent = append(f.sent, sig)
	if err := f.errs[sig]; err != nil {
		return execution.Submission{}, err
	}
	ch := execution.ChannelRelay
	if f.simulate {
		ch = execution.ChannelSimulate
	}
	return execution.Submission{Signature: sig, Channel: ch}, nil
}

type fakeStatus struct {
	def     execution.Status
	results map[solana.Signature]execution.StatusResult
	checks  map[solana.Signature]int
}

func (f *fakeStatus) Check(_ context.Context, sig solana.Signature) (execution.StatusResult, error) {
	f.checks[sig]++
	if r, ok := f.results[sig]; ok {
		return r, nil
	}
	return execution.StatusResult{Status: f.def}, nil
}

func (f *fakeStatus) ClassifyTxError(txErr interface{}) *execution.OnChainError {
	return &execution.OnChainError{Code: -1, Raw: fmt.Sprint(txErr)}
}

type fakeLedger struct {
	buys   []ledger.BuyEntry
	sells  []ledger.SellEntry
	unsold map[string]bool
}

func (f *fakeLedger) LogBuy(e ledger.BuyEntry) {
	f.buys = append(f.buys, e)
	f.unsold[e.Mint] = true
}

func (f *fakeLedger) LogSell(e ledger.SellEntry) {
	delete(f.unsold, e.Mint)
	f.sells = append(f.sells, e)
}

func (f *fakeLedger) ClearUnsold(mint string) { delete(f.unsold, mint) }
func (f *fakeLedger) Unsold() int             { return len(f.unsold) }

type fixedAge time.Duration

func (a fixedAge) Age() time.Duration { return time.Duration(a) }

type harness struct {
	t       *testing.T
	start   time.Time
	clk     *clock.Manual
	trader  *fakeTrader
	sub     *fakeSubmitter
	status  *fakeStatus
	breaker *risk.CircuitBreaker
	ledger  *fakeLedger
	metrics *metrics.Metrics
	sleeps  []time.Duration
	eng     *Engine
}

func newHarness(t *testing.T, tune func(*Config)) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	start := time.Unix(1_700_000_000, 0)
	clk := clock.NewManual(start)

	cfg := DefaultConfig()
	if tune != nil {
		tune(&cfg)
	}
	require.NoError(t, cfg.Validate())

	h := &harness{
		t:       t,
		start:   start,
		clk:     clk,
		trader:  &fakeTrader{clk: clk, wallet: solana.NewWallet().PublicKey()},
		sub:     &fakeSubmitter{errs: make(map[solana.Signature]error)},
		status:  &fakeStatus{def: execution.StatusConfirmed, results: make(map[solana.Signature]execution.StatusResult), checks: make(map[solana.Signature]int)},
		breaker: risk.NewCircuitBreaker(risk.DefaultBreakerConfig(), clk, logger),
		ledger:  &fakeLedger{unsold: make(map[string]bool)},
		metrics: metrics.New(),
	}
	h.eng = New(cfg, Deps{
		Trader:    h.trader,
		Submitter: h.sub,
		Status:    h.status,
		Breaker:   h.breaker,
		Ledger:    h.ledger,
		Metrics:   h.metrics,
		Clock:     clk,
		Caches:    map[string]AgeReporter{"blockhash": fixedAge(2 * time.Second)},
		Spawn:     func(f func()) { f() },
		Sleep: func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		},
	}, logger)
	h.eng.startTickers()
	t.Cleanup(h.eng.stopTickers)
	return h
}

// at advances the clock to start+offset and handles everything that fired.
func (h *harness) at(offset time.Duration) {
	h.t.Helper()
	d := h.start.Add(offset).Sub(h.clk.Now())
	require.GreaterOrEqual(h.t, d, time.Duration(0))
	h.clk.Advance(d)
	h.eng.drain()
}

func (h *harness) event(ev stream.Event) {
	h.eng.HandleEvent(ev)
	h.eng.drain()
}

type launch struct {
	mint, curve, creator solana.PublicKey
}

func newLaunch() launch {
	return launch{
		mint:    solana.NewWallet().PublicKey(),
		curve:   solana.NewWallet().PublicKey(),
		creator: solana.NewWallet().PublicKey(),
	}
}

func (l launch) create() *stream.TransactionEvent {
	return &stream.TransactionEvent{
		Signature: solana.Signature{0xC0, l.mint[0], l.mint[1]},
		FeePayer:  l.creator,
		Instructions: []pumpfun.DecodedInstruction{{
			Kind:         pumpfun.InstructionCreate,
			Mint:         l.mint,
			BondingCurve: l.curve,
			User:         l.creator,
			Creator:      l.creator,
		}},
	}
}

// confirm is the streamed copy of our own buy.
func (h *harness) confirm(sig solana.Signature) *stream.TransactionEvent {
	return &stream.TransactionEvent{Signature: sig, FeePayer: h.trader.wallet}
}

func foreignTrade(l launch) *stream.TransactionEvent {
	return &stream.TransactionEvent{
		Signature:   solana.Signature{0xF0, l.mint[0]},
		FeePayer:    solana.NewWallet().PublicKey(),
		AccountKeys: []solana.PublicKey{l.mint, l.curve},
	}
}

func noSideTimers(c *Config) {
	c.NoActivityTimeout = 0
	c.StopLossTimeout = 0
}

func TestSellsAtTimeoutWithoutActivity(t *testing.T) {
	h := newHarness(t, noSideTimers)
	l := newLaunch()

	h.event(l.create())
	require.Len(t, h.trader.buys, 1)
	require.Contains(t, h.eng.positions, l.mint)
	assert.Equal(t, StatePending, h.eng.positions[l.mint].State)
	assert.Len(t, h.eng.pending, 1)

	h.at(2 * time.Second)
	h.event(h.confirm(buySig(1)))
	assert.True(t, h.eng.positions[l.mint].Confirmed)
	assert.Empty(t, h.eng.pending)
	assert.Equal(t, 1, h.ledger.Unsold())

	h.at(59 * time.Second)
	assert.Empty(t, h.trader.sells)

	h.at(60 * time.Second)
	require.Len(t, h.trader.sells, 1)
	assert.Equal(t, h.start.Add(60*time.Second), h.trader.sellAt[0])
	assert.Equal(t, 0.98, h.trader.sells[0].Multiplier)
	assert.Empty(t, h.eng.positions)
	assert.Equal(t, 0, h.ledger.Unsold())

	require.Len(t, h.ledger.sells, 1)
	sold := h.ledger.sells[0]
	assert.Equal(t, l.mint.String(), sold.Mint)
	assert.Equal(t, sellSig(1).String(), sold.Signature)
	// 0.009 SOL minimum out minus 0.000005 fee, against 0.01 + 0.000005 spent.
	assert.Equal(t, "0.008995", sold.SolDelta.String())
	assert.Equal(t, "-0.00101", sold.PnL.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("timeout", "sold")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Positions))
}

func TestActivitySellsImmediatelyAndCancelsTimers(t *testing.T) {
	h := newHarness(t, nil)
	l := newLaunch()

	h.event(l.create())
	h.at(5 * time.Second)
	h.event(h.confirm(buySig(1)))
	require.Equal(t, StateConfirmed, h.eng.positions[l.mint].State)

	h.at(8 * time.Second)
	h.event(foreignTrade(l))

	require.Len(t, h.trader.sells, 1)
	assert.Equal(t, h.start.Add(8*time.Second), h.trader.sellAt[0])
	assert.Empty(t, h.eng.positions)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("activity", "sold")))
	// Only the sweep and health tickers are left.
	assert.Equal(t, 2, h.clk.Pending())

	h.at(120 * time.Second)
	assert.Len(t, h.trader.sells, 1)
}

func TestActivityWhilePendingSellsOnConfirmation(t *testing.T) {
	h := newHarness(t, nil)
	l := newLaunch()

	h.event(l.create())
	h.at(3 * time.Second)
	h.event(foreignTrade(l))
	assert.Empty(t, h.trader.sells)
	assert.True(t, h.eng.positions[l.mint].Activity)

	h.at(4 * time.Second)
	h.event(h.confirm(buySig(1)))
	require.Len(t, h.trader.sells, 1)
	assert.Equal(t, h.start.Add(4*time.Second), h.trader.sellAt[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("activity", "sold")))
}

func TestTimerFiredWhilePendingEvaluatedOnConfirmation(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.StopLossTimeout = 0 })
	h.status.def = execution.StatusUnknown
	l := newLaunch()

	h.event(l.create())
	h.at(12 * time.Second)
	require.Contains(t, h.eng.positions, l.mint)
	assert.Empty(t, h.trader.sells)
	assert.True(t, h.eng.positions[l.mint].due[timerNoActivity])

	h.event(h.confirm(buySig(1)))
	require.Len(t, h.trader.sells, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("no_activity", "sold")))
}

func TestPendingResolvedExactlyOnce(t *testing.T) {
	t.Run("poll then stream", func(t *testing.T) {
		h := newHarness(t, noSideTimers)
		l := newLaunch()
		h.event(l.create())

		h.at(10 * time.Second)
		assert.Equal(t, 1, h.status.checks[buySig(1)])
		assert.Empty(t, h.eng.pending)

		h.at(11 * time.Second)
		h.event(h.confirm(buySig(1)))
		h.at(61 * time.Second)

		assert.Len(t, h.ledger.buys, 1)
		assert.Equal(t, 1, h.eng.counters.Confirmed)
		assert.Equal(t, 0, h.eng.counters.FailedBuys)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues("poll", "confirmed")))
		assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues("stream", "confirmed")))
	})

	t.Run("stream then poll", func(t *testing.T) {
		h := newHarness(t, noSideTimers)
		l := newLaunch()
		h.event(l.create())
		h.at(time.Second)
		h.event(h.confirm(buySig(1)))
		h.at(30 * time.Second)

		assert.Zero(t, h.status.checks[buySig(1)])
		assert.Len(t, h.ledger.buys, 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues("stream", "confirmed")))
	})

	t.Run("failed on chain", func(t *testing.T) {
		h := newHarness(t, noSideTimers)
		l := newLaunch()
		h.event(l.create())
		failed := h.confirm(buySig(1))
		failed.Failed = true
		failed.Err = map[string]interface{}{"InstructionError": []interface{}{2, map[string]interface{}{"Custom": 6002}}}
		h.event(failed)
		h.event(h.confirm(buySig(1)))
		h.at(70 * time.Second)

		assert.Empty(t, h.eng.positions)
		assert.Empty(t, h.ledger.buys)
		assert.Equal(t, 1, h.eng.counters.FailedBuys)
		assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Failures.WithLabelValues("buy_failed_onchain")))
	})
}

func TestSweepFailsStalePending(t *testing.T) {
	h := newHarness(t, nil)
	h.status.def = execution.StatusUnknown
	l := newLaunch()

	h.event(l.create())
	h.at(30 * time.Second)
	require.Len(t, h.eng.pending, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues("poll", "ambiguous")))

	h.at(60 * time.Second)
	assert.Empty(t, h.eng.pending)
	assert.Empty(t, h.eng.positions)
	assert.Empty(t, h.trader.sells)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Failures.WithLabelValues("buy_timeout")))
	assert.ErrorIs(t, h.breaker.Allow(), risk.ErrCircuitOpen)
}

func TestRetryableRejectsRelaxSlippage(t *testing.T) {
	h := newHarness(t, noSideTimers)
	tooLittle := &execution.OnChainError{Code: pumpfun.ErrCodeTooLittleSolReceived, Retryable: true}
	h.sub.errs[sellSig(1)] = tooLittle
	h.sub.errs[sellSig(2)] = tooLittle
	l := newLaunch()

	h.event(l.create())
	h.event(h.confirm(buySig(1)))
	h.at(60 * time.Second)

	require.Len(t, h.trader.sells, 3)
	var got []float64
	for _, s := range h.trader.sells {
		got = append(got, s.Multiplier)
	}
	assert.Equal(t, []float64{0.98, 0.95, 0.90}, got)
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second}, h.sleeps)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("timeout", "sold")))
	assert.NoError(t, h.breaker.Allow())
}

func TestSellAttemptsAreCapped(t *testing.T) {
	h := newHarness(t, noSideTimers)
	for i := 1; i <= 5; i++ {
		h.sub.errs[sellSig(i)] = &execution.OnChainError{Code: pumpfun.ErrCodeTooLittleSolReceived, Retryable: true}
	}
	h.trader.sellErrs = []error{nil, errors.New("rpc unavailable")}
	l := newLaunch()

	h.event(l.create())
	h.event(h.confirm(buySig(1)))
	h.at(60 * time.Second)

	require.Len(t, h.trader.sells, 3)
	for i := 1; i < len(h.trader.sells); i++ {
		assert.LessOrEqual(t, h.trader.sells[i].Multiplier, h.trader.sells[i-1].Multiplier)
		assert.Nil(t, h.trader.sells[i].Curve)
	}
	// reject backoff, then send backoff for the prepare error.
	assert.Equal(t, []time.Duration{3 * time.Second, 4 * time.Second}, h.sleeps)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("timeout", "exhausted")))
	assert.ErrorIs(t, h.breaker.Allow(), risk.ErrCircuitOpen)
	assert.Empty(t, h.ledger.sells)
}

func TestNonRetryableRejectTripsBreaker(t *testing.T) {
	h := newHarness(t, noSideTimers)
	h.sub.errs[sellSig(1)] = &execution.OnChainError{Code: pumpfun.ErrCodeBondingCurveComplete}
	l := newLaunch()

	h.event(l.create())
	h.event(h.confirm(buySig(1)))
	h.at(60 * time.Second)

	assert.Len(t, h.trader.sells, 1)
	assert.Empty(t, h.sleeps)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("timeout", "rejected")))
	assert.ErrorIs(t, h.breaker.Allow(), risk.ErrCircuitOpen)
}

func TestAmbiguousSellIsNotRetried(t *testing.T) {
	h := newHarness(t, noSideTimers)
	h.status.results[sellSig(1)] = execution.StatusResult{Status: execution.StatusUnknown}
	l := newLaunch()

	h.event(l.create())
	h.event(h.confirm(buySig(1)))
	h.at(60 * time.Second)

	assert.Len(t, h.trader.sells, 1)
	assert.Equal(t, 15, h.status.checks[sellSig(1)])
	assert.Len(t, h.sleeps, 14)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("timeout", "ambiguous")))
	assert.NoError(t, h.breaker.Allow())
	assert.Empty(t, h.ledger.sells)
}

func TestNothingToSell(t *testing.T) {
	h := newHarness(t, noSideTimers)
	h.trader.sellErrs = []error{execution.ErrNothingToSell}
	l := newLaunch()

	h.event(l.create())
	h.event(h.confirm(buySig(1)))
	h.at(60 * time.Second)

	assert.Len(t, h.trader.sells, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("timeout", "nothing_to_sell")))
	assert.NoError(t, h.breaker.Allow())
}

func TestBreakerBlocksAdmissionUntilReset(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		noSideTimers(c)
		c.Cooldown = 0
	})
	h.sub.errs[buySig(1)] = fmt.Errorf("%w: relay down", execution.ErrSubmission)

	h.event(newLaunch().create())
	assert.Empty(t, h.eng.positions)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Failures.WithLabelValues("buy_submit")))

	h.at(10 * time.Second)
	h.event(newLaunch().create())
	assert.Len(t, h.trader.buys, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Admission.WithLabelValues("breaker_open")))

	h.at(30 * time.Second)
	h.event(newLaunch().create())
	assert.Len(t, h.trader.buys, 2)
}

func TestAdmissionCaps(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		noSideTimers(c)
		c.Cooldown = 0
	})
	a, b, c := newLaunch(), newLaunch(), newLaunch()

	h.event(a.create())
	h.event(b.create())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Admission.WithLabelValues("max_unconfirmed")))

	h.event(h.confirm(buySig(1)))
	h.event(b.create())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Admission.WithLabelValues("max_unsold")))
	assert.Len(t, h.eng.positions, 1)

	h.at(60 * time.Second)
	require.Empty(t, h.eng.positions)
	h.event(c.create())
	assert.Len(t, h.eng.positions, 1)
	assert.Contains(t, h.eng.positions, c.mint)
}

func TestAdoptedHoldingsAreSold(t *testing.T) {
	tests := []struct {
		name     string
		sellErr  error
		outcome  string
		wantSold bool
	}{
		{name: "held tokens are sold", outcome: "sold", wantSold: true},
		{name: "empty account", sellErr: execution.ErrNothingToSell, outcome: "nothing_to_sell"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, noSideTimers)
			h.trader.sellErrs = []error{tc.sellErr}
			old := newLaunch()
			h.ledger.unsold[old.mint.String()] = true

			h.event(newLaunch().create())
			require.Empty(t, h.trader.buys, "restored marker blocks admission")

			h.eng.Adopt(Holding{Mint: old.mint, Creator: old.creator, BuyLamports: 10_000_000, BuyFee: 5_000})
			h.eng.sellAdopted()
			h.eng.drain()

			require.Len(t, h.trader.sells, 1)
			assert.Equal(t, old.mint, h.trader.sells[0].Mint)
			assert.Equal(t, old.creator, h.trader.sells[0].Creator)
			assert.Equal(t, uint64(10_000_000), h.trader.sells[0].BuyLamports)
			assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("recovered", tc.outcome)))
			assert.Empty(t, h.eng.positions)
			assert.Zero(t, h.ledger.Unsold())
			if tc.wantSold {
				require.Len(t, h.ledger.sells, 1)
				assert.Equal(t, "-0.00101", h.ledger.sells[0].PnL.String())
			} else {
				assert.Empty(t, h.ledger.sells)
			}

			h.at(time.Minute)
			h.event(newLaunch().create())
			assert.Len(t, h.trader.buys, 1)
		})
	}
}

func TestCooldownAndDuplicates(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		noSideTimers(c)
		c.MaxUnconfirmed = 5
		c.MaxUnsold = 5
	})
	a, b := newLaunch(), newLaunch()

	h.event(a.create())
	h.event(a.create())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Admission.WithLabelValues("duplicate")))

	h.at(30 * time.Second)
	h.event(b.create())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Admission.WithLabelValues("cooldown")))

	h.at(61 * time.Second)
	h.event(b.create())
	assert.Len(t, h.trader.buys, 2)
}

func TestIgnoresOwnAndFailedCreates(t *testing.T) {
	h := newHarness(t, nil)

	own := newLaunch().create()
	own.FeePayer = h.trader.wallet
	h.event(own)

	failed := newLaunch().create()
	failed.Failed = true
	h.event(failed)

	assert.Empty(t, h.trader.buys)
	assert.Empty(t, h.eng.positions)
}

func TestStopLoss(t *testing.T) {
	tests := []struct {
		name     string
		streamed bool
		solRes   uint64
		complete bool
		wantSell bool
	}{
		{name: "streamed curve above floor", streamed: true, solRes: 30_000_000_000},
		{name: "complete curve is not priced", streamed: true, solRes: 1_000_000_000, complete: true},
		{name: "complete rpc curve is not priced", solRes: 1_000_000_000, complete: true},
		{name: "streamed curve below floor", streamed: true, solRes: 1_000_000_000, wantSell: true},
		{name: "rpc curve below floor", solRes: 1_000_000_000, wantSell: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) { c.NoActivityTimeout = 0 })
			l := newLaunch()
			curve := &pumpfun.BondingCurve{
				VirtualTokenReserves: 1_000_000_000,
				VirtualSolReserves:   tc.solRes,
				RealTokenReserves:    800_000_000,
				Complete:             tc.complete,
			}
			if tc.streamed {
				h.event(&stream.CurveUpdate{Account: l.curve, Curve: curve, Slot: 10})
			} else {
				h.trader.curve = curve
			}

			h.event(l.create())
			h.event(h.confirm(buySig(1)))
			h.at(20 * time.Second)

			if tc.streamed {
				assert.Zero(t, h.trader.fetches)
			} else {
				assert.Equal(t, 1, h.trader.fetches)
			}
			if tc.wantSell {
				require.Len(t, h.trader.sells, 1)
				assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Sells.WithLabelValues("stop_loss", "sold")))
				return
			}
			assert.Empty(t, h.trader.sells)
			assert.Contains(t, h.eng.positions, l.mint)
		})
	}
}

func TestSimulateConfirmsImmediately(t *testing.T) {
	h := newHarness(t, noSideTimers)
	h.sub.simulate = true
	l := newLaunch()

	h.event(l.create())
	require.True(t, h.eng.positions[l.mint].Confirmed)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Confirmations.WithLabelValues("simulate", "confirmed")))

	h.at(60 * time.Second)
	assert.Len(t, h.ledger.sells, 1)
	assert.Empty(t, h.status.checks)
}

func TestHealthReport(t *testing.T) {
	h := newHarness(t, noSideTimers)
	var got []HealthSnapshot
	h.eng.OnHealth = func(s HealthSnapshot) { got = append(got, s) }
	h.event(&stream.SlotEvent{Slot: 99})

	h.event(newLaunch().create())
	h.event(h.confirm(buySig(1)))
	h.at(30 * time.Second)

	require.Len(t, got, 1)
	s := got[0]
	require.Len(t, s.Positions, 1)
	assert.Equal(t, "confirmed", s.Positions[0].State)
	assert.Equal(t, 30*time.Second, s.Positions[0].Age)
	assert.Equal(t, uint64(99), s.LastSlot)
	assert.Equal(t, 2*time.Second, s.CacheAges["blockhash"])
	assert.Equal(t, 1, s.Counters.Buys)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Positions))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.CacheAge.WithLabelValues("blockhash")))
}

func TestCurveCacheEvictsOldest(t *testing.T) {
	c := newCurveCache(2)
	k1, k2, k3 := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	c.put(k1, &pumpfun.BondingCurve{VirtualSolReserves: 1})
	c.put(k2, &pumpfun.BondingCurve{VirtualSolReserves: 2})
	c.put(k1, &pumpfun.BondingCurve{VirtualSolReserves: 3})
	c.put(k3, &pumpfun.BondingCurve{VirtualSolReserves: 4})

	assert.Nil(t, c.get(k1))
	assert.Equal(t, uint64(2), c.get(k2).VirtualSolReserves)
	assert.Equal(t, 2, c.len())
}

func TestRunReturnsWhenEventsClose(t *testing.T) {
	h := newHarness(t, noSideTimers)
	events := make(chan stream.Event, 1)
	events <- newLaunch().create()
	close(events)

	done := make(chan error, 1)
	go func() { done <- h.eng.Run(context.Background(), events) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Len(t, h.trader.buys, 1)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.SellMultipliers = []float64{0.9, 0.95}
	cfg.MaxUnconfirmed = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "increases")
	assert.Contains(t, err.Error(), "max unconfirmed")
}
