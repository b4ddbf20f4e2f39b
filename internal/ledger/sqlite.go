// internal/ledger/sqlite.go
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id             TEXT PRIMARY KEY,
	mint           TEXT NOT NULL,
	creator        TEXT NOT NULL,
	status         TEXT NOT NULL,
	buy_signature  TEXT NOT NULL,
	buy_sol        TEXT NOT NULL,
	bought_at      INTEGER NOT NULL,
	buy_fee        TEXT NOT NULL,
	sell_signature TEXT NOT NULL DEFAULT '',
	sell_sol       TEXT NOT NULL DEFAULT '0',
	pnl            TEXT NOT NULL DEFAULT '0',
	sold_at        INTEGER NOT NULL DEFAULT 0,
	sell_fee       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS trades_mint_status ON trades (mint, status);
`

// SQLiteStore is the local single-file ledger.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and migrates) the ledger at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	logger.Named("ledger").Info("SQLite ledger ready", zap.String("path", path))
	return &SQLiteStore{db: db, logger: logger.Named("ledger")}, nil
}

func (s *SQLiteStore) InsertBuy(ctx context.Context, t *Trade) error {
	fee, err := json.Marshal(t.BuyFee)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trades (id, mint, creator, status, buy_signature, buy_sol, bought_at, buy_fee)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Mint, t.Creator, string(t.Status), t.BuySignature,
		t.BuySol.String(), t.BoughtAt.UnixMilli(), string(fee))
	if err != nil {
		return fmt.Errorf("insert buy: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CloseTrade(ctx context.Context, e SellEntry) error {
	status := e.Status
	if status == "" {
		status = StatusSold
	}
	fee, err := json.Marshal(e.Fee)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE trades SET status = ?, sell_signature = ?, sell_sol = ?, pnl = ?, sold_at = ?, sell_fee = ?
		WHERE id = (SELECT id FROM trades WHERE mint = ? AND status = ? ORDER BY bought_at DESC LIMIT 1)`,
		string(status), e.Signature, e.SolDelta.String(), e.PnL.String(), e.At.UnixMilli(), string(fee),
		e.Mint, string(StatusOpen))
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoOpenTrade
	}
	return nil
}

const sqliteSelect = `SELECT id, mint, creator, status, buy_signature, buy_sol, bought_at, buy_fee,
	sell_signature, sell_sol, pnl, sold_at, sell_fee FROM trades`

func (s *SQLiteStore) OpenTrade(ctx context.Context, mint string) (*Trade, error) {
	row := s.db.QueryRowContext(ctx, sqliteSelect+` WHERE mint = ? AND status = ? ORDER BY bought_at DESC LIMIT 1`,
		mint, string(StatusOpen))
	t, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoOpenTrade
	}
	return t, err
}

func (s *SQLiteStore) OpenTrades(ctx context.Context) ([]*Trade, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` WHERE status = ? ORDER BY bought_at`, string(StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	defer rows.Close()

	var out []*Trade
	for rows.Next() {
		t, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Trades(ctx context.Context, since time.Time) ([]*Trade, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelect+` WHERE bought_at >= ? ORDER BY bought_at`, since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*Trade
	for rows.Next() {
		t, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*Trade, error) {
	var (
		t                    Trade
		id, status           string
		buySol, sellSol, pnl string
		boughtAt, soldAt     int64
		buyFee, sellFee      string
	)
	if err := row.Scan(&id, &t.Mint, &t.Creator, &status, &t.BuySignature, &buySol, &boughtAt, &buyFee,
		&t.SellSignature, &sellSol, &pnl, &soldAt, &sellFee); err != nil {
		return nil, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("trade id: %w", err)
	}
	t.Status = Status(status)
	t.BoughtAt = time.UnixMilli(boughtAt)
	if soldAt > 0 {
		t.SoldAt = time.UnixMilli(soldAt)
	}
	if err := decodeAmounts(&t, buySol, sellSol, pnl); err != nil {
		return nil, err
	}
	if err := decodeFees(&t, buyFee, sellFee); err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeAmounts(t *Trade, buySol, sellSol, pnl string) error {
	var err error
	if t.BuySol, err = decimal.NewFromString(buySol); err != nil {
		return fmt.Errorf("buy_sol: %w", err)
	}
	if t.SellSol, err = decimal.NewFromString(sellSol); err != nil {
		return fmt.Errorf("sell_sol: %w", err)
	}
	if t.PnL, err = decimal.NewFromString(pnl); err != nil {
		return fmt.Errorf("pnl: %w", err)
	}
	return nil
}

func decodeFees(t *Trade, buyFee, sellFee string) error {
	if err := json.Unmarshal([]byte(buyFee), &t.BuyFee); err != nil {
		return fmt.Errorf("buy_fee: %w", err)
	}
	if err := json.Unmarshal([]byte(sellFee), &t.SellFee); err != nil {
		return fmt.Errorf("sell_fee: %w", err)
	}
	return nil
}
