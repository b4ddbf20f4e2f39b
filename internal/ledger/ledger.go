// internal/ledger/ledger.go
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrNoOpenTrade is returned when an asset has no open trade.
var ErrNoOpenTrade = errors.New("no open trade")

// Status of a trade row.
type Status string

const (
	StatusOpen Status = "open"
	StatusSold Status = "sold"
	// StatusExternal marks trades closed by sync because the position left
	// the wallet outside the engine.
	StatusExternal Status = "closed_external"
)

// FeeMetrics describes the fee paid for one transaction.
type FeeMetrics struct {
	FeeLamports uint64
	CULimit     uint32
	CUPrice     uint64
	Ratio       float64
}

// Trade is one buy and its eventual sell.
type Trade struct {
	ID      uuid.UUID
	Mint    string
	Creator string
	Status  Status

	BuySignature string
	// BuySol is the SOL delta of the buy (negative).
	BuySol       decimal.Decimal
	BoughtAt     time.Time
	BuyFee       FeeMetrics

	SellSignature string
	SellSol       decimal.Decimal
	PnL           decimal.Decimal
	SoldAt        time.Time
	SellFee       FeeMetrics
}

// BuyEntry is the input of LogBuy.
type BuyEntry struct {
	Mint      string
	Signature string
	SolDelta  decimal.Decimal
	At        time.Time
	Creator   string
	Fee       FeeMetrics
}

// SellEntry is the input of LogSell.
type SellEntry struct {
	Mint      string
	Signature string
	SolDelta  decimal.Decimal
	PnL       decimal.Decimal
	At        time.Time
	Fee       FeeMetrics
	Status    Status
}

// Store persists trades.
type Store interface {
	InsertBuy(ctx context.Context, t *Trade) error
	// CloseTrade closes the open trade of e.Mint; ErrNoOpenTrade if none.
	CloseTrade(ctx context.Context, e SellEntry) error
	OpenTrade(ctx context.Context, mint string) (*Trade, error)
	OpenTrades(ctx context.Context) ([]*Trade, error)
	// Trades lists every trade bought at or after since, oldest first.
	Trades(ctx context.Context, since time.Time) ([]*Trade, error)
	Close() error
}

// LamportsToSol converts lamports into a SOL decimal.
func LamportsToSol(lamports uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lamports)).Shift(-9)
}

// NewTrade builds the open trade row for a buy.
func NewTrade(e BuyEntry) *Trade {
	return &Trade{
		ID:           uuid.New(),
		Mint:         e.Mint,
		Creator:      e.Creator,
		Status:       StatusOpen,
		BuySignature: e.Signature,
		BuySol:       e.SolDelta,
		BoughtAt:     e.At,
		BuyFee:       e.Fee,
	}
}
