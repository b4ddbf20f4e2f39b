// internal/engine/engine.go
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/ledger"
	"github.com/rovshanmuradov/pump-sniper/internal/metrics"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"go.uber.org/zap"
)

// Trader builds signed Pump.fun transactions.
type Trader interface {
	Wallet() solana.PublicKey
	BuildBuy(req execution.BuyRequest) (*execution.PreparedTx, error)
	PrepareSell(ctx context.Context, req execution.SellRequest) (*execution.PreparedTx, error)
	FetchCurve(ctx context.Context, mint solana.PublicKey) (*pumpfun.BondingCurve, bool, error)
}

// Submitter dispatches signed transactions.
type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction) (execution.Submission, error)
	Simulating() bool
}

// StatusChecker resolves signatures through the standard RPC.
type StatusChecker interface {
	Check(ctx context.Context, sig solana.Signature) (execution.StatusResult, error)
	ClassifyTxError(txErr interface{}) *execution.OnChainError
}

// Breaker gates buy admission.
type Breaker interface {
	Allow() error
	RecordFailure(reason string)
	RecordSuccess()
	State() risk.BreakerState
}

// Ledger receives trade records. Calls must not block.
type Ledger interface {
	LogBuy(e ledger.BuyEntry)
	LogSell(e ledger.SellEntry)
	ClearUnsold(mint string)
	Unsold() int
}

// AgeReporter reports the age of a cached value.
type AgeReporter interface {
	Age() time.Duration
}

// Deps are the collaborators of the engine. Spawn and Sleep are optional.
type Deps struct {
	Trader    Trader
	Submitter Submitter
	Status    StatusChecker
	Breaker   Breaker
	Ledger    Ledger
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	// Caches are reported in the health snapshot by name.
	Caches map[string]AgeReporter

	// Spawn starts a worker. Defaults to a tracked goroutine.
	Spawn func(func())
	// Sleep waits between sell attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Engine runs the per-asset position state machines. All state below is
// owned by the loop goroutine; workers and timers talk to it through the
// inbox.
type Engine struct {
	cfg     Config
	deps    Deps
	clk     clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger

	ctx   context.Context
	inbox chan message
	done  chan struct{}
	wg    sync.WaitGroup

	positions map[solana.PublicKey]*Position
	pending   map[solana.Signature]*PendingSubmission
	curves    *curveCache
	lastBuy   time.Time
	lastSlot  uint64
	counters  Counters
	adopted   []Holding

	tickMu       sync.Mutex
	tickers      []clock.Timer
	ticksStopped bool

	// OnHealth, when set, receives every health snapshot.
	OnHealth func(HealthSnapshot)
}

// New creates an engine. It does not start the loop.
func New(cfg Config, deps Deps, logger *zap.Logger) *Engine {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	e := &Engine{
		cfg:       cfg,
		deps:      deps,
		clk:       deps.Clock,
		metrics:   deps.Metrics,
		logger:    logger.Named("engine"),
		ctx:       context.Background(),
		inbox:     make(chan message, max(cfg.InboxSize, 16)),
		done:      make(chan struct{}),
		positions: make(map[solana.PublicKey]*Position),
		pending:   make(map[solana.Signature]*PendingSubmission),
		curves:    newCurveCache(cfg.CurveCacheSize),
	}
	if e.deps.Spawn == nil {
		e.deps.Spawn = e.goTracked
	}
	if e.deps.Sleep == nil {
		e.deps.Sleep = sleepCtx
	}
	return e
}

// Run processes stream events and internal messages until ctx is cancelled
// or events is closed. In-flight workers are awaited before returning.
func (e *Engine) Run(ctx context.Context, events <-chan stream.Event) error {
	e.ctx = ctx
	e.startTickers()
	e.logger.Info("Engine started",
		zap.Uint64("buy_lamports", e.cfg.BuyLamports),
		zap.Duration("sell_timeout", e.cfg.SellTimeout),
		zap.Bool("simulate", e.deps.Submitter.Simulating()))
	e.sellAdopted()

	defer func() {
		close(e.done)
		e.stopTickers()
		for _, p := range e.positions {
			p.stopTimers()
		}
		e.wg.Wait()
		e.logger.Info("Engine stopped",
			zap.Int("open_positions", len(e.positions)),
			zap.Int("pending", len(e.pending)))
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.HandleEvent(ev)
		case msg := <-e.inbox:
			e.handle(msg)
		}
	}
}

// HandleEvent processes one stream event on the calling goroutine.
func (e *Engine) HandleEvent(ev stream.Event) {
	switch ev := ev.(type) {
	case *stream.TransactionEvent:
		e.onTransaction(ev)
	case *stream.CurveUpdate:
		e.curves.put(ev.Account, ev.Curve)
	case *stream.SlotEvent:
		if ev.Slot > e.lastSlot {
			e.lastSlot = ev.Slot
			e.metrics.LastSlot.Set(float64(ev.Slot))
		}
	}
}

// message is anything posted to the loop inbox.
type message interface{}

type (
	buySubmitted struct {
		sig solana.Signature
		sub execution.Submission
		err error
	}
	pollDue    struct{ sig solana.Signature }
	pollResult struct {
		sig solana.Signature
		res execution.StatusResult
		err error
	}
	sweepDue   struct{}
	healthDue  struct{}
	timerFired struct {
		mint solana.PublicKey
		sig  solana.Signature
		kind timerKind
	}
	stopLossCurve struct {
		mint  solana.PublicKey
		sig   solana.Signature
		curve *pumpfun.BondingCurve
		err   error
	}
	sellDone struct{ res sellResult }
)

func (e *Engine) handle(msg message) {
	switch m := msg.(type) {
	case buySubmitted:
		e.onBuySubmitted(m)
	case pollDue:
		e.onPollDue(m.sig)
	case pollResult:
		e.onPollResult(m)
	case sweepDue:
		e.sweep()
	case healthDue:
		e.reportHealth()
	case timerFired:
		e.onTimer(m)
	case stopLossCurve:
		e.onStopLossCurve(m)
	case sellDone:
		e.onSellDone(m.res)
	default:
		e.logger.Warn("Unknown engine message", zap.Any("message", msg))
	}
}

// post hands msg to the loop. It never blocks after the loop stopped.
func (e *Engine) post(msg message) {
	select {
	case e.inbox <- msg:
	case <-e.done:
	}
}

// drain handles every queued message on the calling goroutine.
func (e *Engine) drain() {
	for {
		select {
		case msg := <-e.inbox:
			e.handle(msg)
		default:
			return
		}
	}
}

func (e *Engine) goTracked(f func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		f()
	}()
}

// opCtx derives the context of one worker network call.
func (e *Engine) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(e.ctx, e.cfg.OpTimeout)
}

func (e *Engine) failure(reason string, fields ...zap.Field) {
	e.metrics.Failure(reason)
	e.logger.Warn("Failure", append([]zap.Field{zap.String("reason", reason)}, fields...)...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) startTickers() {
	e.every(e.cfg.SweepInterval, sweepDue{})
	e.every(e.cfg.HealthInterval, healthDue{})
}

// every posts msg to the loop each d until stopTickers.
func (e *Engine) every(d time.Duration, msg message) {
	if d <= 0 {
		return
	}
	e.tickMu.Lock()
	slot := len(e.tickers)
	e.tickers = append(e.tickers, nil)
	e.tickMu.Unlock()

	var fire func()
	fire = func() {
		e.post(msg)
		e.tickMu.Lock()
		defer e.tickMu.Unlock()
		if !e.ticksStopped {
			e.tickers[slot] = e.clk.AfterFunc(d, fire)
		}
	}
	e.tickMu.Lock()
	e.tickers[slot] = e.clk.AfterFunc(d, fire)
	e.tickMu.Unlock()
}

func (e *Engine) stopTickers() {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()
	e.ticksStopped = true
	for _, t := range e.tickers {
		if t != nil {
			t.Stop()
		}
	}
	e.tickers = nil
}
