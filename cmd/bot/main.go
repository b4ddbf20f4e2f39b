// cmd/bot/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rovshanmuradov/pump-sniper/internal/bot"
	"github.com/rovshanmuradov/pump-sniper/internal/config"
	"github.com/rovshanmuradov/pump-sniper/internal/export"
	"github.com/rovshanmuradov/pump-sniper/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("pump-sniper", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "configs/config.yaml", "path to the config file (empty to skip)")
	flags.Bool("simulate", false, "simulate transactions instead of broadcasting")
	flags.Bool("tui", false, "run the terminal dashboard")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("rpc-url", "", "Solana RPC endpoint")
	flags.String("stream-url", "", "event stream websocket endpoint")
	flags.String("ledger-driver", "", "trade ledger: sqlite, postgres or memory")
	exportFormat := flags.String("export", "", "export ledger trades as csv or json and exit")
	exportDir := flags.String("export-dir", "exports", "directory for exported files")
	exportSince := flags.Duration("export-since", 0, "only export trades bought within this window (0 for all)")
	_ = flags.Parse(os.Args[1:])

	path := *configPath
	if _, err := os.Stat(path); err != nil && !flags.Changed("config") {
		path = ""
	}

	cfg, err := config.Load(path, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Configuration error:\n%v\n", err)
		os.Exit(2)
	}

	if *exportFormat != "" {
		os.Exit(runExport(cfg, export.Format(*exportFormat), *exportDir, *exportSince))
	}

	runner, err := bot.NewRunner(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "💥 Bot stopped with error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func runExport(cfg *config.Config, format export.Format, dir string, window time.Duration) int {
	lcfg := cfg.Logger()
	lcfg.Quiet = false
	log, err := logger.New(lcfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 %v\n", err)
		return 1
	}
	defer log.Close()

	var since time.Time
	if window > 0 {
		since = time.Now().Add(-window)
	}
	path, err := bot.ExportTrades(context.Background(), cfg, log.Logger, format, dir, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "💥 Export failed: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}
