package engine

import (
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// Stats are the running counters of one backtest run.
type Stats struct {
	TicksProcessed   int
	TicksSkipped     int
	RowsProcessed    int
	SignalsGenerated int
	TradesExecuted   int
}

// Status is the externally observable in-flight state of the engine,
// meant for polling while a run is in progress.
type Status struct {
	Running     bool
	StartedAt   time.Time
	CurrentTime time.Time
	Stats       Stats
}

// Results is everything a finished run produces: the ordered signal audit
// trail, the trade list, the equity curve, the processing counters and
// the derived performance summary.
type Results struct {
	Strategy   string
	Symbols    []string
	Timeframes []domain.Timeframe
	Start      time.Time
	End        time.Time
	Elapsed    time.Duration

	Signals []domain.SignalEvent
	Trades  []domain.Trade
	Equity  []domain.EquityPoint
	Stats   Stats

	Metrics           domain.PerformanceMetrics
	SymbolPerformance []domain.SymbolPerformance
	Account           domain.AccountSummary
}
