// internal/ledger/recorder.go
package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Recorder writes ledger entries in submission order from a single
// goroutine so the caller never blocks on storage I/O.
type Recorder struct {
	store  Store
	logger *zap.Logger

	queue chan func(ctx context.Context) error

	// unsold tracks assets with a logged buy whose sell was not dispatched.
	mu     sync.Mutex
	unsold map[string]struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder creates a recorder with a bounded queue.
func NewRecorder(store Store, queueSize int, logger *zap.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Recorder{
		store:  store,
		logger: logger.Named("ledger"),
		queue:  make(chan func(ctx context.Context) error, queueSize),
		unsold: make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

// Run drains the queue until Close is called and the queue is empty.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	for op := range r.queue {
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		if err := op(opCtx); err != nil {
			r.failed.Add(1)
			r.logger.Error("Ledger write failed", zap.Error(err))
		}
		cancel()
	}
}

// Close stops accepting entries and waits for pending writes, bounded by ctx.
func (r *Recorder) Close(ctx context.Context) error {
	r.closeOnce.Do(func() { close(r.queue) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) enqueue(what string, op func(ctx context.Context) error) {
	defer func() {
		// Close raced with a late entry.
		if recover() != nil {
			r.dropped.Add(1)
		}
	}()
	select {
	case r.queue <- op:
	default:
		r.dropped.Add(1)
		r.logger.Error("Ledger queue full, entry dropped", zap.String("entry", what))
	}
}

// LogBuy records a buy and marks the asset unsold.
func (r *Recorder) LogBuy(e BuyEntry) {
	r.mu.Lock()
	r.unsold[e.Mint] = struct{}{}
	r.mu.Unlock()

	t := NewTrade(e)
	r.enqueue("buy", func(ctx context.Context) error {
		return r.store.InsertBuy(ctx, t)
	})
}

// ClearUnsold drops the unsold marker of mint. Called when a sell is
// dispatched, before its outcome is known.
func (r *Recorder) ClearUnsold(mint string) {
	r.mu.Lock()
	delete(r.unsold, mint)
	r.mu.Unlock()
}

// Unsold returns the number of assets with an unsold marker.
func (r *Recorder) Unsold() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unsold)
}

// LogSell records the sell that closes the open trade of e.Mint.
func (r *Recorder) LogSell(e SellEntry) {
	r.ClearUnsold(e.Mint)
	r.enqueue("sell", func(ctx context.Context) error {
		err := r.store.CloseTrade(ctx, e)
		if errors.Is(err, ErrNoOpenTrade) {
			r.logger.Warn("Sell without open trade", zap.String("mint", e.Mint))
			return nil
		}
		return err
	})
}

// GetOpenTrade reads the open trade of mint directly from the store;
// ErrNoOpenTrade if none.
func (r *Recorder) GetOpenTrade(ctx context.Context, mint string) (*Trade, error) {
	return r.store.OpenTrade(ctx, mint)
}

// OpenTrades lists open trades.
func (r *Recorder) OpenTrades(ctx context.Context) ([]*Trade, error) {
	return r.store.OpenTrades(ctx)
}

// Stats returns dropped and failed write counts.
func (r *Recorder) Stats() (dropped, failed uint64) {
	return r.dropped.Load(), r.failed.Load()
}
