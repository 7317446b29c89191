package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// RunRecord is the persisted header of one backtest run.
type RunRecord struct {
	ID          string
	Strategy    string
	Symbols     string
	Timeframes  string
	Start       time.Time
	End         time.Time
	RanAt       time.Time
	NetProfit   float64
	TotalReturn float64
	TotalTrades int
	WinRate     float64
	MaxDrawdown float64
}

// ResultStore persists finished backtest runs for later comparison.
type ResultStore interface {
	// SaveRun persists the run header, its trades and its equity curve.
	SaveRun(ctx context.Context, rec RunRecord, trades []domain.Trade, equity []domain.EquityPoint) error

	// ListRuns returns run headers ordered most recent first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetTrades returns the trades recorded for a run.
	GetTrades(ctx context.Context, runID string) ([]domain.Trade, error)

	// Close closes the underlying database cleanly.
	Close() error
}
