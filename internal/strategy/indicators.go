package strategy

// Small indicator helpers shared by the built-in strategies. They operate
// on raw close slices and return single values "as of" the last element,
// which is all the tick-by-tick strategies need.

import "github.com/alejandrodnm/backsim/internal/domain"

// closes extracts the close column from a candle prefix.
func closes(candles []domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// sma returns the simple moving average of the last p values, or 0 when
// there is not enough history.
func sma(x []float64, p int) float64 {
	if p <= 0 || len(x) < p {
		return 0
	}
	var sum float64
	for _, v := range x[len(x)-p:] {
		sum += v
	}
	return sum / float64(p)
}

// rsi returns the relative strength index over the last period+1 values,
// or -1 when there is not enough history.
func rsi(x []float64, period int) float64 {
	if period <= 0 || len(x) < period+1 {
		return -1
	}

	var gains, losses float64
	window := x[len(x)-period-1:]
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
