package ports

import "github.com/alejandrodnm/backsim/internal/domain"

// Strategy turns historical data into trade signals. Implementations are
// selected at construction time and must be safe to call once per tick.
type Strategy interface {
	// Name identifies the strategy in logs and persisted results.
	Name() string

	// GenerateSignals receives, for every (symbol, timeframe), the candles
	// available as of the current tick and returns at most one signal per
	// series. It must not mutate the slices it receives.
	GenerateSignals(data domain.History) []domain.Signal
}
