// internal/ledger/sync.go
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BalanceReader returns the wallet's token balance of a mint.
type BalanceReader interface {
	TokenBalance(ctx context.Context, mint solana.PublicKey) (uint64, error)
}

// SyncResult is the outcome of SyncFromChain.
type SyncResult struct {
	// Closed counts trades closed because the wallet no longer holds them.
	Closed int
	// Held are the distinct mints of open trades whose tokens are still in
	// the wallet, in listing order. Their unsold markers are set until a
	// sell clears them.
	Held []string
}

// SyncFromChain closes open trades whose tokens are no longer in the wallet
// and restores the unsold markers of the rest.
func (r *Recorder) SyncFromChain(ctx context.Context, balances BalanceReader) (SyncResult, error) {
	var res SyncResult
	open, err := r.store.OpenTrades(ctx)
	if err != nil {
		return res, fmt.Errorf("list open trades: %w", err)
	}
	if len(open) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	held := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, t := range open {
		g.Go(func() error {
			mint, err := solana.PublicKeyFromBase58(t.Mint)
			if err != nil {
				r.logger.Warn("Skipping trade with invalid mint", zap.String("mint", t.Mint))
				return nil
			}

			balance, err := backoff.Retry(gctx, func() (uint64, error) {
				return balances.TokenBalance(gctx, mint)
			},
				backoff.WithBackOff(backoff.NewExponentialBackOff()),
				backoff.WithMaxTries(3))
			if err != nil {
				return fmt.Errorf("balance of %s: %w", t.Mint, err)
			}

			if balance > 0 {
				r.mu.Lock()
				r.unsold[t.Mint] = struct{}{}
				r.mu.Unlock()
				mu.Lock()
				held[t.Mint] = true
				mu.Unlock()
				r.logger.Info("Open trade still held", zap.String("mint", t.Mint), zap.Uint64("balance", balance))
				return nil
			}

			err = r.store.CloseTrade(gctx, SellEntry{
				Mint:     t.Mint,
				SolDelta: decimal.Zero,
				PnL:      t.BuySol,
				At:       time.Now(),
				Status:   StatusExternal,
			})
			if err != nil {
				return fmt.Errorf("close %s: %w", t.Mint, err)
			}
			mu.Lock()
			res.Closed++
			mu.Unlock()
			r.logger.Info("Closed trade sold outside the engine", zap.String("mint", t.Mint))
			return nil
		})
	}

	err = g.Wait()
	for _, t := range open {
		if held[t.Mint] {
			res.Held = append(res.Held, t.Mint)
			delete(held, t.Mint)
		}
	}
	return res, err
}
