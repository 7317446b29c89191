package domain

import "time"

// PerformanceMetrics is the derived summary of a backtest run. It is
// recomputed from the trade ledger and equity curve, never stored as truth.
type PerformanceMetrics struct {
	InitialBalance float64
	FinalBalance   float64
	TotalReturn    float64 // fraction: (final - initial) / initial
	TotalReturnPct float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	GrossProfit float64
	GrossLoss   float64 // positive magnitude
	NetProfit   float64
	AvgWin      float64
	AvgLoss     float64 // positive magnitude

	ProfitFactor   float64
	Expectancy     float64
	MaxDrawdown    float64 // amount
	MaxDrawdownPct float64
	AvgDrawdown    float64
	SharpeRatio    float64
	SortinoRatio   float64

	AvgTradeDuration   time.Duration
	MaxConsecutiveWins int
	MaxConsecutiveLoss int
}

// SymbolPerformance is the per-symbol trade breakdown.
type SymbolPerformance struct {
	Symbol   string
	Trades   int
	Wins     int
	WinRate  float64
	TotalPnL float64
}

// DrawdownPeriod is one peak-to-trough-to-recovery excursion of the equity
// curve. Recovery is the zero time when the curve ended still under water.
type DrawdownPeriod struct {
	Peak      float64
	Trough    float64
	Amount    float64 // Peak - Trough
	Pct       float64 // Amount / Peak * 100
	PeakTime  time.Time
	LowTime   time.Time
	Recovery  time.Time
	Duration  time.Duration // peak to recovery (or to end of curve)
	Recovered bool
}
