package performance

// The tracker is an append-only ledger of completed trades and equity
// snapshots. Derived metrics are memoized and the cache is invalidated by
// the only two mutating calls, RecordTrade and UpdateEquity.

import (
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// Tracker accumulates the historical record of one backtest run.
type Tracker struct {
	initialBalance float64
	balance        float64
	riskFreeRate   float64 // annualized, used by Sharpe/Sortino

	trades []domain.Trade
	equity []domain.EquityPoint

	cached *domain.PerformanceMetrics
}

// NewTracker creates a tracker starting from initialBalance.
func NewTracker(initialBalance, riskFreeRate float64) *Tracker {
	if initialBalance <= 0 {
		initialBalance = 10000
	}
	return &Tracker{
		initialBalance: initialBalance,
		balance:        initialBalance,
		riskFreeRate:   riskFreeRate,
	}
}

// RecordTrade appends a completed trade to the ledger and folds its pnl
// into the running balance. Returns false, with no mutation, when the
// trade is missing required fields or exits before it entered. A
// zero-duration trade is legitimate: a position opened on the final tick
// gets liquidated at that same timestamp.
func (t *Tracker) RecordTrade(trade domain.Trade) bool {
	if !trade.Complete() {
		slog.Warn("performance: rejected incomplete trade", "symbol", trade.Symbol)
		return false
	}
	if trade.ExitTime.Before(trade.EntryTime) {
		slog.Warn("performance: rejected trade exiting before entry",
			"symbol", trade.Symbol,
			"entry", trade.EntryTime,
			"exit", trade.ExitTime,
		)
		return false
	}

	t.trades = append(t.trades, trade)
	t.balance += trade.PnL
	t.cached = nil
	return true
}

// UpdateEquity appends one equity snapshot. The sequence is append-only
// and assumed to arrive in chronological order.
func (t *Tracker) UpdateEquity(ts time.Time, balance, positionsValue float64) {
	t.equity = append(t.equity, domain.EquityPoint{
		Timestamp:      ts,
		Balance:        balance,
		PositionsValue: positionsValue,
		TotalEquity:    balance + positionsValue,
	})
	t.cached = nil
}

// EquityCurve returns a copy of the equity snapshots.
func (t *Tracker) EquityCurve() []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(t.equity))
	copy(out, t.equity)
	return out
}

// TradeHistory returns a copy of the recorded trades.
func (t *Tracker) TradeHistory() []domain.Trade {
	out := make([]domain.Trade, len(t.trades))
	copy(out, t.trades)
	return out
}

// SymbolPerformance breaks trades down per symbol, sorted by symbol.
func (t *Tracker) SymbolPerformance() []domain.SymbolPerformance {
	bySymbol := make(map[string]*domain.SymbolPerformance)
	for _, tr := range t.trades {
		sp, ok := bySymbol[tr.Symbol]
		if !ok {
			sp = &domain.SymbolPerformance{Symbol: tr.Symbol}
			bySymbol[tr.Symbol] = sp
		}
		sp.Trades++
		if tr.PnL > 0 {
			sp.Wins++
		}
		sp.TotalPnL += tr.PnL
	}

	out := make([]domain.SymbolPerformance, 0, len(bySymbol))
	for _, sp := range bySymbol {
		if sp.Trades > 0 {
			sp.WinRate = float64(sp.Wins) / float64(sp.Trades)
		}
		out = append(out, *sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Reset clears all history and restores the balance to the initial one.
func (t *Tracker) Reset() {
	t.trades = nil
	t.equity = nil
	t.balance = t.initialBalance
	t.cached = nil
}

// Balance returns the running balance (initial + realized pnl recorded).
func (t *Tracker) Balance() float64 {
	return t.balance
}
