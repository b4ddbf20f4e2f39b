// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-sniper/internal/cache"
	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"github.com/rovshanmuradov/pump-sniper/internal/config"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/engine"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/ledger"
	"github.com/rovshanmuradov/pump-sniper/internal/license"
	"github.com/rovshanmuradov/pump-sniper/internal/logger"
	"github.com/rovshanmuradov/pump-sniper/internal/metrics"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"github.com/rovshanmuradov/pump-sniper/internal/ui"
	"github.com/rovshanmuradov/pump-sniper/internal/wallet"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer       = 1024
	recorderQueue     = 256
	ringSize          = 500
	licenseHeartbeat  = time.Hour
	shutdownTimeout   = 15 * time.Second
	syncLedgerTimeout = 30 * time.Second
)

// Runner wires the components together and runs them until the context
// is cancelled, the event stream ends or the dashboard quits.
type Runner struct {
	cfg      *config.Config
	log      *logger.Logger
	ring     *logger.Ring
	shutdown *ShutdownHandler
}

// NewRunner builds the logger. Everything else is created in Run.
func NewRunner(cfg *config.Config) (*Runner, error) {
	r := &Runner{cfg: cfg}
	if cfg.TUI {
		r.ring = logger.NewRing(ringSize, logLevel(cfg))
	}
	var extra []zapcore.Core
	if r.ring != nil {
		extra = append(extra, r.ring)
	}
	log, err := logger.New(cfg.Logger(), extra...)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	r.log = log
	r.shutdown = NewShutdownHandler(log.Logger, shutdownTimeout)
	return r, nil
}

// Logger returns the root logger.
func (r *Runner) Logger() *zap.Logger { return r.log.Logger }

// Run blocks until shutdown and releases every resource before returning.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if shutdownErr := r.shutdown.Shutdown(context.Background()); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
		_ = r.log.Sync()
		_ = r.log.Close()
	}()

	log := r.log.Logger
	cfg := r.cfg

	log.Info("Starting pump-sniper",
		zap.Bool("simulate", cfg.Simulate),
		zap.Float64("buy_sol", cfg.Trading.BuySol),
		zap.String("ledger", cfg.Ledger.Driver))

	validator, err := r.checkLicense(ctx)
	if err != nil {
		return err
	}

	w, err := wallet.NewWallet(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	log.Info("Wallet loaded", zap.String("address", w.PublicKey.String()))

	rpcClient := solbc.NewClient(cfg.RPCURL, log)
	protocol := loadProtocol(ctx, rpcClient, log)
	clk := clock.Real()
	m := metrics.New()

	blockhash := cache.NewBlockhash(rpcClient, cfg.Caches(), clk, log)
	fees := cache.NewFees(rpcClient, []solana.PublicKey{protocol.ProgramID, protocol.FeeRecipient}, cfg.Caches(), clk, log)

	feeGuard := risk.NewFeeGuard(cfg.FeeGuard(), nil, log)
	breaker := risk.NewCircuitBreaker(cfg.Breaker(), clk, log)
	builder := execution.NewBuilder(w, blockhash, fees, feeGuard)
	relay := execution.NewFastRelay(cfg.FastRelay(), log)
	submitter := execution.NewSubmitter(relay, rpcClient, cfg.Submitter(), log)
	status := execution.NewStatusChecker(rpcClient, log)
	trader := execution.NewTrader(protocol, w, builder, rpcClient, cfg.Trader(), log)

	store, err := openStore(ctx, cfg.Ledger, log)
	if err != nil {
		return err
	}
	r.shutdown.AddCloser("ledger-store", store)

	recorder := ledger.NewRecorder(store, recorderQueue, log)
	go recorder.Run(context.Background())
	r.shutdown.Add("ledger-recorder", recorder.Close)

	syncCtx, cancel := context.WithTimeout(ctx, syncLedgerTimeout)
	synced, err := recorder.SyncFromChain(syncCtx, trader)
	cancel()
	if err != nil {
		log.Warn("Ledger sync from chain failed", zap.Error(err))
	} else if synced.Closed > 0 {
		log.Info("Closed trades no longer held", zap.Int("count", synced.Closed))
	}

	eng := engine.New(cfg.Engine(), engine.Deps{
		Trader:    trader,
		Submitter: submitter,
		Status:    status,
		Breaker:   breaker,
		Ledger:    recorder,
		Metrics:   m,
		Clock:     clk,
		Caches:    map[string]engine.AgeReporter{"blockhash": blockhash, "fees": fees},
	}, log)
	if held := holdings(ctx, recorder, synced.Held, log); len(held) > 0 {
		log.Info("Selling holdings left by a previous run", zap.Int("count", len(held)))
		eng.Adopt(held...)
	}

	streamClient := stream.NewClient(cfg.StreamClient(), log)
	streamClient.OnFrame = func(kind string) { m.StreamFrames.WithLabelValues(kind).Inc() }

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return blockhash.Run(gctx) })
	g.Go(func() error { return fees.Run(gctx) })

	if cfg.MetricsAddr != "" {
		g.Go(func() error { return m.Serve(gctx, cfg.MetricsAddr, log) })
	}
	if validator != nil {
		g.Go(func() error { return validator.Heartbeat(gctx, cfg.License.Key, licenseHeartbeat) })
	}

	events := make(chan stream.Event, eventBuffer)
	g.Go(func() error {
		defer close(events)
		return streamClient.Run(gctx, events)
	})

	if cfg.TUI {
		sender := ui.NewUpdateSender()
		eng.OnHealth = sender.Publish
		program := tea.NewProgram(ui.NewDashboard(ui.Options{
			Wallet:   w.PublicKey.String(),
			Simulate: cfg.Simulate,
			Logs:     r.ring,
		}), tea.WithAltScreen(), tea.WithContext(gctx))

		g.Go(func() error {
			sender.Run(gctx, program.Send)
			return nil
		})
		g.Go(func() error {
			_, err := program.Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("dashboard: %w", err)
			}
			return errDashboardClosed
		})
	}

	g.Go(func() error {
		if err := eng.Run(gctx, events); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		return errEngineStopped
	})

	err = g.Wait()
	switch {
	case errors.Is(err, errDashboardClosed), errors.Is(err, errEngineStopped):
		err = nil
	case errors.Is(err, context.Canceled):
		err = nil
	}

	snap := eng.Snapshot()
	log.Info("Engine stopped",
		zap.Int("open_positions", len(snap.Positions)),
		zap.Int("buys", snap.Counters.Buys),
		zap.Int("sold", snap.Counters.Sold))
	if dropped, failed := recorder.Stats(); dropped > 0 || failed > 0 {
		log.Warn("Ledger writes lost", zap.Uint64("dropped", dropped), zap.Uint64("failed", failed))
	}
	return err
}

func logLevel(cfg *config.Config) zapcore.Level {
	if cfg.DebugLogging {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

var (
	errDashboardClosed = errors.New("dashboard closed")
	errEngineStopped   = errors.New("engine stopped")
)

// checkLicense validates the configured key. With no key configured the
// bot runs unlicensed and nil is returned.
func (r *Runner) checkLicense(ctx context.Context) (*license.Validator, error) {
	lc := r.cfg.License
	if lc.Key == "" {
		r.log.Debug("No license key configured")
		return nil, nil
	}
	v := license.NewValidator(license.Settings{
		AccountID: lc.AccountID,
		ProductID: lc.ProductID,
		Token:     lc.Token,
	}, r.log.Logger)
	if err := v.Validate(ctx, lc.Key); err != nil {
		return nil, fmt.Errorf("license: %w", err)
	}
	return v, nil
}

func openStore(ctx context.Context, cfg config.LedgerConfig, log *zap.Logger) (ledger.Store, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := ledger.NewPostgresStore(ctx, cfg.PostgresURL, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		return s, nil
	case "memory":
		return ledger.NewMemoryStore(), nil
	default:
		s, err := ledger.NewSQLiteStore(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite ledger: %w", err)
		}
		return s, nil
	}
}

// loadProtocol returns the default protocol accounts with the fee recipient
// taken from the on-chain global account when it can be read.
func loadProtocol(ctx context.Context, reader pumpfun.AccountReader, log *zap.Logger) *pumpfun.Config {
	protocol := pumpfun.GetDefaultConfig()
	global, err := pumpfun.FetchGlobalAccount(ctx, reader, protocol, log)
	if err != nil {
		log.Warn("Global account unavailable, using default fee recipient",
			zap.String("fee_recipient", protocol.FeeRecipient.String()),
			zap.Error(err))
		return protocol
	}
	protocol.ApplyGlobalAccount(global)
	return protocol
}

// openTradeReader looks up the open trade of a mint.
type openTradeReader interface {
	GetOpenTrade(ctx context.Context, mint string) (*ledger.Trade, error)
}

// holdings resolves the open trade of every mint still held in the wallet
// into an engine holding. Mints without an open trade or with unreadable
// keys are skipped.
func holdings(ctx context.Context, trades openTradeReader, mints []string, log *zap.Logger) []engine.Holding {
	out := make([]engine.Holding, 0, len(mints))
	for _, m := range mints {
		t, err := trades.GetOpenTrade(ctx, m)
		if err != nil {
			if !errors.Is(err, ledger.ErrNoOpenTrade) {
				log.Warn("Held trade unreadable", zap.String("mint", m), zap.Error(err))
			}
			continue
		}
		mint, err := solana.PublicKeyFromBase58(t.Mint)
		if err != nil {
			log.Warn("Skipping held trade with invalid mint", zap.String("mint", t.Mint))
			continue
		}
		creator, err := solana.PublicKeyFromBase58(t.Creator)
		if err != nil {
			log.Warn("Skipping held trade with invalid creator", zap.String("mint", t.Mint), zap.String("creator", t.Creator))
			continue
		}
		out = append(out, engine.Holding{
			Mint:        mint,
			Creator:     creator,
			BuyLamports: uint64(t.BuySol.Neg().Shift(9).IntPart()),
			BuyFee:      t.BuyFee.FeeLamports,
		})
	}
	return out
}
