package strategy

import (
	"fmt"
	"sort"

	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/alejandrodnm/backsim/internal/ports"
)

// Config holds the tunables of the built-in strategies. Zero values fall
// back to the usual defaults.
type Config struct {
	FastPeriod    int     // sma_crossover
	SlowPeriod    int     // sma_crossover
	RSIPeriod     int     // rsi_reversion
	RSIOversold   float64 // rsi_reversion buy threshold
	RSIOverbought float64 // rsi_reversion sell threshold
}

// New returns the strategy registered under name.
func New(name string, cfg Config) (ports.Strategy, error) {
	switch name {
	case "sma_crossover", "":
		return newSMACrossover(cfg), nil
	case "rsi_reversion":
		return newRSIReversion(cfg), nil
	default:
		return nil, fmt.Errorf("strategy.New: unknown strategy %q", name)
	}
}

// sortedKeys returns the history's series keys in deterministic order.
func sortedKeys(data domain.History) []domain.SeriesKey {
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
	return keys
}
