package strategy

import (
	"fmt"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// smaCrossover buys when the fast SMA crosses above the slow one and
// sells when it crosses back below. One signal per (symbol, timeframe);
// series without a crossover this tick produce nothing (implicit HOLD).
type smaCrossover struct {
	fast int
	slow int
}

func newSMACrossover(cfg Config) *smaCrossover {
	s := &smaCrossover{fast: cfg.FastPeriod, slow: cfg.SlowPeriod}
	if s.fast <= 0 {
		s.fast = 10
	}
	if s.slow <= s.fast {
		s.slow = s.fast * 3
	}
	return s
}

func (s *smaCrossover) Name() string {
	return fmt.Sprintf("sma_crossover(%d,%d)", s.fast, s.slow)
}

func (s *smaCrossover) GenerateSignals(data domain.History) []domain.Signal {
	var signals []domain.Signal
	for _, key := range sortedKeys(data) {
		prices := closes(data[key])
		if len(prices) < s.slow+1 {
			continue
		}

		fastNow := sma(prices, s.fast)
		slowNow := sma(prices, s.slow)
		fastPrev := sma(prices[:len(prices)-1], s.fast)
		slowPrev := sma(prices[:len(prices)-1], s.slow)

		switch {
		case fastPrev <= slowPrev && fastNow > slowNow:
			signals = append(signals, domain.Signal{
				Type:      domain.SignalBuy,
				Symbol:    key.Symbol,
				Timeframe: key.Timeframe,
				Reason:    fmt.Sprintf("fast SMA %.4f crossed above slow %.4f", fastNow, slowNow),
			})
		case fastPrev >= slowPrev && fastNow < slowNow:
			signals = append(signals, domain.Signal{
				Type:      domain.SignalSell,
				Symbol:    key.Symbol,
				Timeframe: key.Timeframe,
				Reason:    fmt.Sprintf("fast SMA %.4f crossed below slow %.4f", fastNow, slowNow),
			})
		}
	}
	return signals
}
