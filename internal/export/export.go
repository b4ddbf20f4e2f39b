package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rovshanmuradov/pump-sniper/internal/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Format is the export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configure an export.
type Options struct {
	Format Format
	// Until excludes trades bought after it when set.
	Until time.Time
	// Mint keeps only trades of one asset when set.
	Mint string
	// Status keeps only trades in one status when set.
	Status    ledger.Status
	OutputDir string
}

// TradeExporter writes ledger trades to CSV or JSON files.
type TradeExporter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{logger: logger.Named("export"), now: time.Now}
}

// ExportTrades writes the trades matching opts and returns the file path.
func (te *TradeExporter) ExportTrades(trades []*ledger.Trade, opts Options) (string, error) {
	filtered := filterTrades(trades, opts)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].BoughtAt.Before(filtered[j].BoughtAt) })

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(opts.OutputDir, te.filename(opts))

	var err error
	switch opts.Format {
	case FormatCSV:
		err = exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(opts.Format)))
	return outputPath, nil
}

func filterTrades(trades []*ledger.Trade, opts Options) []*ledger.Trade {
	var out []*ledger.Trade
	for _, t := range trades {
		if !opts.Until.IsZero() && t.BoughtAt.After(opts.Until) {
			continue
		}
		if opts.Mint != "" && t.Mint != opts.Mint {
			continue
		}
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (te *TradeExporter) filename(opts Options) string {
	prefix := "trades_all"
	if opts.Status != "" {
		prefix = "trades_" + string(opts.Status)
	}
	if len(opts.Mint) >= 8 {
		prefix += "_" + opts.Mint[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, te.now().Format("20060102_150405"), opts.Format)
}

var csvHeaders = []string{
	"id", "mint", "creator", "status",
	"buy_signature", "bought_at", "buy_sol", "buy_fee_lamports",
	"sell_signature", "sold_at", "sell_sol", "sell_fee_lamports", "pnl",
}

func csvRow(t *ledger.Trade) []string {
	soldAt := ""
	if !t.SoldAt.IsZero() {
		soldAt = t.SoldAt.UTC().Format(time.RFC3339)
	}
	return []string{
		t.ID.String(), t.Mint, t.Creator, string(t.Status),
		t.BuySignature, t.BoughtAt.UTC().Format(time.RFC3339), t.BuySol.String(), strconv.FormatUint(t.BuyFee.FeeLamports, 10),
		t.SellSignature, soldAt, t.SellSol.String(), strconv.FormatUint(t.SellFee.FeeLamports, 10), t.PnL.String(),
	}
}

func exportToCSV(trades []*ledger.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range trades {
		if err := writer.Write(csvRow(t)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

type jsonTrade struct {
	ID            string          `json:"id"`
	Mint          string          `json:"mint"`
	Creator       string          `json:"creator"`
	Status        ledger.Status   `json:"status"`
	BuySignature  string          `json:"buy_signature"`
	BoughtAt      time.Time       `json:"bought_at"`
	BuySol        decimal.Decimal `json:"buy_sol"`
	BuyFee        uint64          `json:"buy_fee_lamports"`
	SellSignature string          `json:"sell_signature,omitempty"`
	SoldAt        *time.Time      `json:"sold_at,omitempty"`
	SellSol       decimal.Decimal `json:"sell_sol"`
	SellFee       uint64          `json:"sell_fee_lamports"`
	PnL           decimal.Decimal `json:"pnl"`
}

func toJSON(t *ledger.Trade) jsonTrade {
	jt := jsonTrade{
		ID:            t.ID.String(),
		Mint:          t.Mint,
		Creator:       t.Creator,
		Status:        t.Status,
		BuySignature:  t.BuySignature,
		BoughtAt:      t.BoughtAt.UTC(),
		BuySol:        t.BuySol,
		BuyFee:        t.BuyFee.FeeLamports,
		SellSignature: t.SellSignature,
		SellSol:       t.SellSol,
		SellFee:       t.SellFee.FeeLamports,
		PnL:           t.PnL,
	}
	if !t.SoldAt.IsZero() {
		soldAt := t.SoldAt.UTC()
		jt.SoldAt = &soldAt
	}
	return jt
}

func (te *TradeExporter) exportToJSON(trades []*ledger.Trade, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	rows := make([]jsonTrade, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, toJSON(t))
	}
	data := struct {
		ExportTime time.Time   `json:"export_time"`
		TradeCount int         `json:"trade_count"`
		Summary    Summary     `json:"summary"`
		Trades     []jsonTrade `json:"trades"`
	}{
		ExportTime: te.now().UTC(),
		TradeCount: len(trades),
		Summary:    Summarize(trades),
		Trades:     rows,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary aggregates closed trade results.
type Summary struct {
	TotalTrades  int             `json:"total_trades"`
	OpenTrades   int             `json:"open_trades"`
	ClosedTrades int             `json:"closed_trades"`
	UniqueTokens int             `json:"unique_tokens"`
	BuyVolume    decimal.Decimal `json:"buy_volume"`
	SellVolume   decimal.Decimal `json:"sell_volume"`
	TotalPnL     decimal.Decimal `json:"total_pnl"`
	WinCount     int             `json:"win_count"`
	LossCount    int             `json:"loss_count"`
	// WinRate is the share of closed trades with positive PnL, in percent.
	WinRate   float64   `json:"win_rate"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Summarize computes the summary of trades, which must be sorted by buy time.
func Summarize(trades []*ledger.Trade) Summary {
	s := Summary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return s
	}
	s.StartDate = trades[0].BoughtAt.UTC()
	s.EndDate = trades[len(trades)-1].BoughtAt.UTC()

	tokens := make(map[string]struct{})
	for _, t := range trades {
		tokens[t.Mint] = struct{}{}
		s.BuyVolume = s.BuyVolume.Add(t.BuySol.Abs())
		if t.Status == ledger.StatusOpen {
			s.OpenTrades++
			continue
		}
		s.ClosedTrades++
		s.SellVolume = s.SellVolume.Add(t.SellSol)
		s.TotalPnL = s.TotalPnL.Add(t.PnL)
		switch t.PnL.Sign() {
		case 1:
			s.WinCount++
		case -1:
			s.LossCount++
		}
	}
	s.UniqueTokens = len(tokens)
	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.WinCount) / float64(s.ClosedTrades) * 100
	}
	return s
}
