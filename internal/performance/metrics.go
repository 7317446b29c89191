package performance

import (
	"math"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// Metrics returns the derived performance summary, recomputing it only
// when a mutation invalidated the cache since the last call.
func (t *Tracker) Metrics() domain.PerformanceMetrics {
	if t.cached != nil {
		return *t.cached
	}

	m := domain.PerformanceMetrics{
		InitialBalance: t.initialBalance,
		FinalBalance:   t.balance,
	}
	if t.initialBalance > 0 {
		m.TotalReturn = (t.balance - t.initialBalance) / t.initialBalance
		m.TotalReturnPct = m.TotalReturn * 100
	}

	t.fillTradeStats(&m)
	t.fillDrawdownStats(&m)
	t.fillRatios(&m)

	t.cached = &m
	return m
}

func (t *Tracker) fillTradeStats(m *domain.PerformanceMetrics) {
	var totalDuration time.Duration
	var winStreak, lossStreak int

	for _, tr := range t.trades {
		m.TotalTrades++
		m.NetProfit += tr.PnL
		totalDuration += tr.Duration()

		if tr.PnL > 0 {
			m.WinningTrades++
			m.GrossProfit += tr.PnL
			winStreak++
			lossStreak = 0
		} else {
			m.LosingTrades++
			m.GrossLoss += -tr.PnL
			lossStreak++
			winStreak = 0
		}
		if winStreak > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = winStreak
		}
		if lossStreak > m.MaxConsecutiveLoss {
			m.MaxConsecutiveLoss = lossStreak
		}
	}

	if m.TotalTrades == 0 {
		return
	}

	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AvgTradeDuration = totalDuration / time.Duration(m.TotalTrades)
	if m.WinningTrades > 0 {
		m.AvgWin = m.GrossProfit / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AvgLoss = m.GrossLoss / float64(m.LosingTrades)
	}
	if m.GrossLoss > 0 {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	} else if m.GrossProfit > 0 {
		// no losers yet; keep the value JSON-encodable instead of +Inf
		m.ProfitFactor = 999
	}
	m.Expectancy = m.WinRate*m.AvgWin - (1-m.WinRate)*m.AvgLoss
}

func (t *Tracker) fillDrawdownStats(m *domain.PerformanceMetrics) {
	periods := t.DrawdownPeriods()
	if len(periods) == 0 {
		return
	}
	var sum float64
	for _, p := range periods {
		sum += p.Amount
		if p.Amount > m.MaxDrawdown {
			m.MaxDrawdown = p.Amount
			m.MaxDrawdownPct = p.Pct
		}
	}
	m.AvgDrawdown = sum / float64(len(periods))
}

// fillRatios derives Sharpe and Sortino from per-step equity returns
// against the configured risk-free rate. Ratios are per-step, not
// annualized: the tick spacing is whatever the merged axis produced.
func (t *Tracker) fillRatios(m *domain.PerformanceMetrics) {
	if len(t.equity) < 2 {
		return
	}

	rfStep := t.riskFreeRate / float64(len(t.equity))
	returns := make([]float64, 0, len(t.equity)-1)
	for i := 1; i < len(t.equity); i++ {
		prev := t.equity[i-1].TotalEquity
		if prev <= 0 {
			continue
		}
		returns = append(returns, t.equity[i].TotalEquity/prev-1)
	}
	if len(returns) == 0 {
		return
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance, downVariance float64
	var downCount int
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < rfStep {
			dd := r - rfStep
			downVariance += dd * dd
			downCount++
		}
	}
	variance /= float64(len(returns))

	if std := math.Sqrt(variance); std > 0 {
		m.SharpeRatio = (mean - rfStep) / std
	}
	if downCount > 0 {
		if downStd := math.Sqrt(downVariance / float64(len(returns))); downStd > 0 {
			m.SortinoRatio = (mean - rfStep) / downStd
		}
	}
}
