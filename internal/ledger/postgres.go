// internal/ledger/postgres.go
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS trades (
	id             UUID PRIMARY KEY,
	mint           TEXT NOT NULL,
	creator        TEXT NOT NULL,
	status         TEXT NOT NULL,
	buy_signature  TEXT NOT NULL,
	buy_sol        TEXT NOT NULL,
	bought_at      TIMESTAMPTZ NOT NULL,
	buy_fee        JSONB NOT NULL,
	sell_signature TEXT NOT NULL DEFAULT '',
	sell_sol       TEXT NOT NULL DEFAULT '0',
	pnl            TEXT NOT NULL DEFAULT '0',
	sold_at        TIMESTAMPTZ,
	sell_fee       JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS trades_mint_status ON trades (mint, status);
`

// PostgresStore is the shared ledger backed by a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to dsn and creates the schema.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger = logger.Named("ledger")
	logger.Info("Postgres ledger ready")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (s *PostgresStore) InsertBuy(ctx context.Context, t *Trade) error {
	fee, err := json.Marshal(t.BuyFee)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO trades (id, mint, creator, status, buy_signature, buy_sol, bought_at, buy_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID.String(), t.Mint, t.Creator, string(t.Status), t.BuySignature,
		t.BuySol.String(), t.BoughtAt.UTC(), string(fee))
	if err != nil {
		return fmt.Errorf("insert buy: %w", err)
	}
	return nil
}

func (s *PostgresStore) CloseTrade(ctx context.Context, e SellEntry) error {
	status := e.Status
	if status == "" {
		status = StatusSold
	}
	fee, err := json.Marshal(e.Fee)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE trades SET status = $1, sell_signature = $2, sell_sol = $3, pnl = $4, sold_at = $5, sell_fee = $6
		WHERE id = (SELECT id FROM trades WHERE mint = $7 AND status = $8 ORDER BY bought_at DESC LIMIT 1)`,
		string(status), e.Signature, e.SolDelta.String(), e.PnL.String(), e.At.UTC(), string(fee),
		e.Mint, string(StatusOpen))
	if err != nil {
		return fmt.Errorf("close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoOpenTrade
	}
	return nil
}

const postgresSelect = `SELECT id::text, mint, creator, status, buy_signature, buy_sol, bought_at, buy_fee::text,
	sell_signature, sell_sol, pnl, sold_at, sell_fee::text FROM trades`

func (s *PostgresStore) OpenTrade(ctx context.Context, mint string) (*Trade, error) {
	row := s.pool.QueryRow(ctx, postgresSelect+` WHERE mint = $1 AND status = $2 ORDER BY bought_at DESC LIMIT 1`,
		mint, string(StatusOpen))
	t, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoOpenTrade
	}
	return t, err
}

func (s *PostgresStore) OpenTrades(ctx context.Context) ([]*Trade, error) {
	rows, err := s.pool.Query(ctx, postgresSelect+` WHERE status = $1 ORDER BY bought_at`, string(StatusOpen))
	if err != nil {
		return nil, fmt.Errorf("query open trades: %w", err)
	}
	defer rows.Close()

	var out []*Trade
	for rows.Next() {
		t, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Trades(ctx context.Context, since time.Time) ([]*Trade, error) {
	rows, err := s.pool.Query(ctx, postgresSelect+` WHERE bought_at >= $1 ORDER BY bought_at`, since)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*Trade
	for rows.Next() {
		t, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (*Trade, error) {
	var (
		t                    Trade
		id, status           string
		buySol, sellSol, pnl string
		boughtAt             time.Time
		soldAt               *time.Time
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
	t.BoughtAt = boughtAt
	if soldAt != nil {
		t.SoldAt = *soldAt
	}
	if err := decodeAmounts(&t, buySol, sellSol, pnl); err != nil {
		return nil, err
	}
	if err := decodeFees(&t, buyFee, sellFee); err != nil {
		return nil, err
	}
	return &t, nil
}
