package performance

import "github.com/alejandrodnm/backsim/internal/domain"

// DrawdownPeriods walks the equity curve tracking the running peak and
// enumerates every peak → trough → recovery excursion. An excursion still
// under water when the curve ends is reported with Recovered=false.
func (t *Tracker) DrawdownPeriods() []domain.DrawdownPeriod {
	if len(t.equity) < 2 {
		return nil
	}

	var periods []domain.DrawdownPeriod
	var current *domain.DrawdownPeriod

	peak := t.equity[0].TotalEquity
	peakTime := t.equity[0].Timestamp

	for _, pt := range t.equity[1:] {
		eq := pt.TotalEquity

		if eq >= peak {
			if current != nil {
				current.Recovery = pt.Timestamp
				current.Duration = pt.Timestamp.Sub(current.PeakTime)
				current.Recovered = true
				periods = append(periods, *current)
				current = nil
			}
			peak = eq
			peakTime = pt.Timestamp
			continue
		}

		if current == nil {
			current = &domain.DrawdownPeriod{
				Peak:     peak,
				Trough:   eq,
				PeakTime: peakTime,
				LowTime:  pt.Timestamp,
			}
		}
		if eq < current.Trough {
			current.Trough = eq
			current.LowTime = pt.Timestamp
		}
		current.Amount = current.Peak - current.Trough
		if current.Peak > 0 {
			current.Pct = current.Amount / current.Peak * 100
		}
	}

	if current != nil {
		last := t.equity[len(t.equity)-1]
		current.Duration = last.Timestamp.Sub(current.PeakTime)
		periods = append(periods, *current)
	}

	return periods
}
