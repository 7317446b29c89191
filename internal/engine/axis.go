package engine

import (
	"sort"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// buildAxis merges every timestamp appearing in any series into one
// ascending, deduplicated axis. This single axis drives the simulation no
// matter how many symbols and timeframes are mixed.
func buildAxis(data domain.DataSet) []time.Time {
	seen := make(map[int64]time.Time)
	for _, series := range data {
		for _, c := range series.Candles {
			seen[c.Timestamp.UnixNano()] = c.Timestamp
		}
	}

	axis := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		axis = append(axis, ts)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}

// cursorSet walks every series in lockstep with the axis, exposing for
// each tick the prefix of candles available as of that moment. Map
// iteration order is randomized in Go, so the series are kept in a sorted
// slice: the same inputs must always yield the same trade sequence.
type cursorSet struct {
	series  []domain.Series
	cursors []int
}

func newCursorSet(data domain.DataSet) *cursorSet {
	keys := make([]domain.SeriesKey, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Symbol != keys[j].Symbol {
			return keys[i].Symbol < keys[j].Symbol
		}
		return keys[i].Timeframe < keys[j].Timeframe
	})

	cs := &cursorSet{
		series:  make([]domain.Series, 0, len(keys)),
		cursors: make([]int, len(keys)),
	}
	for _, k := range keys {
		cs.series = append(cs.series, data[k])
	}
	return cs
}

// advance moves every cursor past all candles with timestamp <= ts and
// returns the number of new rows consumed plus the closes of candles
// landing exactly on this tick, in deterministic series order.
func (cs *cursorSet) advance(ts time.Time) (rows int, closes map[string]float64) {
	closes = make(map[string]float64)
	for i := range cs.series {
		candles := cs.series[i].Candles
		for cs.cursors[i] < len(candles) && !candles[cs.cursors[i]].Timestamp.After(ts) {
			c := candles[cs.cursors[i]]
			if c.Timestamp.Equal(ts) {
				closes[cs.series[i].Symbol] = c.Close
			}
			cs.cursors[i]++
			rows++
		}
	}
	return rows, closes
}

// history returns the as-of-now prefix for every series that already has
// at least one candle. The prefixes are sub-slices of the loaded data;
// strategies must treat them as read-only.
func (cs *cursorSet) history() domain.History {
	h := make(domain.History, len(cs.series))
	for i, s := range cs.series {
		if cs.cursors[i] == 0 {
			continue
		}
		h[s.Key()] = s.Candles[:cs.cursors[i]:cs.cursors[i]]
	}
	return h
}
