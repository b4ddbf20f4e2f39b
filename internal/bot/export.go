package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/rovshanmuradov/pump-sniper/internal/config"
	"github.com/rovshanmuradov/pump-sniper/internal/export"
	"go.uber.org/zap"
)

// ExportTrades writes the ledger trades bought at or after since to a file
// under dir and returns its path. The bot is not started.
func ExportTrades(ctx context.Context, cfg *config.Config, log *zap.Logger, format export.Format, dir string, since time.Time) (string, error) {
	store, err := openStore(ctx, cfg.Ledger, log)
	if err != nil {
		return "", err
	}
	defer store.Close()

	trades, err := store.Trades(ctx, since)
	if err != nil {
		return "", fmt.Errorf("load trades: %w", err)
	}
	return export.NewTradeExporter(log).ExportTrades(trades, export.Options{Format: format, OutputDir: dir})
}
