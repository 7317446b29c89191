package strategy

import (
	"fmt"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// rsiReversion buys oversold and sells overbought, betting on a return
// to the mean.
type rsiReversion struct {
	period     int
	oversold   float64
	overbought float64
}

func newRSIReversion(cfg Config) *rsiReversion {
	s := &rsiReversion{
		period:     cfg.RSIPeriod,
		oversold:   cfg.RSIOversold,
		overbought: cfg.RSIOverbought,
	}
	if s.period <= 0 {
		s.period = 14
	}
	if s.oversold <= 0 {
		s.oversold = 30
	}
	if s.overbought <= 0 || s.overbought <= s.oversold {
		s.overbought = 70
	}
	return s
}

func (s *rsiReversion) Name() string {
	return fmt.Sprintf("rsi_reversion(%d,%.0f/%.0f)", s.period, s.oversold, s.overbought)
}

func (s *rsiReversion) GenerateSignals(data domain.History) []domain.Signal {
	var signals []domain.Signal
	for _, key := range sortedKeys(data) {
		value := rsi(closes(data[key]), s.period)
		if value < 0 {
			continue
		}

		switch {
		case value <= s.oversold:
			signals = append(signals, domain.Signal{
				Type:      domain.SignalBuy,
				Symbol:    key.Symbol,
				Timeframe: key.Timeframe,
				Reason:    fmt.Sprintf("RSI %.1f at or below %.0f", value, s.oversold),
			})
		case value >= s.overbought:
			signals = append(signals, domain.Signal{
				Type:      domain.SignalSell,
				Symbol:    key.Symbol,
				Timeframe: key.Timeframe,
				Reason:    fmt.Sprintf("RSI %.1f at or above %.0f", value, s.overbought),
			})
		}
	}
	return signals
}
