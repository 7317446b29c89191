package storage

// sqlite.go — persistence of finished backtest runs.
//
// Layout:
//   - `runs`: one row per backtest run with its headline numbers.
//   - `trades`: every completed trade, keyed to its run.
//   - `equity`: the equity curve, keyed to its run.
// Everything for one run is written in a single transaction so a crashed
// save never leaves a half-recorded run behind.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/alejandrodnm/backsim/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id           TEXT PRIMARY KEY,
    strategy     TEXT NOT NULL,
    symbols      TEXT NOT NULL,
    timeframes   TEXT NOT NULL,
    start_at     DATETIME NOT NULL,
    end_at       DATETIME NOT NULL,
    ran_at       DATETIME NOT NULL,
    net_profit   REAL NOT NULL DEFAULT 0,
    total_return REAL NOT NULL DEFAULT 0,
    total_trades INTEGER NOT NULL DEFAULT 0,
    win_rate     REAL NOT NULL DEFAULT 0,
    max_drawdown REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS trades (
    id          TEXT PRIMARY KEY,
    run_id      TEXT NOT NULL REFERENCES runs(id),
    symbol      TEXT NOT NULL,
    direction   TEXT NOT NULL,
    size        REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price  REAL NOT NULL,
    entry_time  DATETIME NOT NULL,
    exit_time   DATETIME NOT NULL,
    pnl         REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
    run_id          TEXT NOT NULL REFERENCES runs(id),
    ts              DATETIME NOT NULL,
    balance         REAL NOT NULL,
    positions_value REAL NOT NULL,
    total_equity    REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_ran_at   ON runs(ran_at DESC);
CREATE INDEX IF NOT EXISTS idx_trades_run    ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run_ts ON equity(run_id, ts);
`

// SQLiteStore implements ports.ResultStore using SQLite (pure Go, no CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveRun persists the run header, trades and equity curve atomically.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec ports.RunRecord, trades []domain.Trade, equity []domain.EquityPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, symbols, timeframes, start_at, end_at, ran_at,
		                  net_profit, total_return, total_trades, win_rate, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Strategy, rec.Symbols, rec.Timeframes,
		rec.Start.UTC(), rec.End.UTC(), rec.RanAt.UTC(),
		rec.NetProfit, rec.TotalReturn, rec.TotalTrades, rec.WinRate, rec.MaxDrawdown,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, run_id, symbol, direction, size, entry_price, exit_price, entry_time, exit_time, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare trades: %w", err)
	}
	defer tradeStmt.Close()

	for _, t := range trades {
		if _, err := tradeStmt.ExecContext(ctx,
			t.ID, rec.ID, t.Symbol, string(t.Direction), t.Size,
			t.EntryPrice, t.ExitPrice, t.EntryTime.UTC(), t.ExitTime.UTC(), t.PnL,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert trade %s: %w", t.ID, err)
		}
	}

	equityStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, ts, balance, positions_value, total_equity)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage.SaveRun: prepare equity: %w", err)
	}
	defer equityStmt.Close()

	for _, pt := range equity {
		if _, err := equityStmt.ExecContext(ctx,
			rec.ID, pt.Timestamp.UTC(), pt.Balance, pt.PositionsValue, pt.TotalEquity,
		); err != nil {
			return fmt.Errorf("storage.SaveRun: insert equity point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRun: commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]ports.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, symbols, timeframes, start_at, end_at, ran_at,
		       net_profit, total_return, total_trades, win_rate, max_drawdown
		FROM runs ORDER BY ran_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var out []ports.RunRecord
	for rows.Next() {
		var rec ports.RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.Strategy, &rec.Symbols, &rec.Timeframes,
			&rec.Start, &rec.End, &rec.RanAt,
			&rec.NetProfit, &rec.TotalReturn, &rec.TotalTrades, &rec.WinRate, &rec.MaxDrawdown,
		); err != nil {
			return nil, fmt.Errorf("storage.ListRuns: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetTrades returns the trades of one run in entry-time order.
func (s *SQLiteStore) GetTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, direction, size, entry_price, exit_price, entry_time, exit_time, pnl
		FROM trades WHERE run_id = ? ORDER BY entry_time`, runID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTrades: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction string
		var entry, exit time.Time
		if err := rows.Scan(&t.ID, &t.Symbol, &direction, &t.Size,
			&t.EntryPrice, &t.ExitPrice, &entry, &exit, &t.PnL); err != nil {
			return nil, fmt.Errorf("storage.GetTrades: scan: %w", err)
		}
		t.Direction = domain.Direction(direction)
		t.EntryTime = entry.UTC()
		t.ExitTime = exit.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
