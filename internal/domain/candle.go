package domain

import (
	"fmt"
	"time"
)

// Timeframe identifies a candle aggregation interval ("1m", "5m", "1h", "1d"...).
type Timeframe string

// Common timeframes. Any string is accepted; these are just the usual ones.
const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// SeriesKey identifies one (symbol, timeframe) series inside a data set.
type SeriesKey struct {
	Symbol    string
	Timeframe Timeframe
}

func (k SeriesKey) String() string {
	return k.Symbol + "/" + string(k.Timeframe)
}

// Series is a chronologically ordered sequence of candles for one (symbol, timeframe).
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

// Key returns the SeriesKey of the series.
func (s Series) Key() SeriesKey {
	return SeriesKey{Symbol: s.Symbol, Timeframe: s.Timeframe}
}

// Validate checks the contract the engine demands from the data collaborator:
// non-empty, chronologically ordered, and every bar carrying sane OHLC values.
func (s Series) Validate() error {
	if len(s.Candles) == 0 {
		return fmt.Errorf("series %s: empty", s.Key())
	}
	for i, c := range s.Candles {
		if c.Timestamp.IsZero() {
			return fmt.Errorf("series %s: candle %d has zero timestamp", s.Key(), i)
		}
		if i > 0 && !s.Candles[i-1].Timestamp.Before(c.Timestamp) {
			return fmt.Errorf("series %s: candle %d out of order (%s !< %s)",
				s.Key(), i, s.Candles[i-1].Timestamp, c.Timestamp)
		}
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return fmt.Errorf("series %s: candle %d has non-positive price", s.Key(), i)
		}
		if c.High < c.Low {
			return fmt.Errorf("series %s: candle %d high < low", s.Key(), i)
		}
	}
	return nil
}

// DataSet is the full aligned data for a backtest, one series per (symbol, timeframe).
type DataSet map[SeriesKey]Series

// History is the as-of-now view handed to a strategy: for every series, the
// prefix of candles up to and including the current tick. Strategies must not
// mutate the slices they receive.
type History map[SeriesKey][]Candle
