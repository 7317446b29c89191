package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// DataProvider supplies aligned historical candles for a backtest run.
type DataProvider interface {
	// Load returns one chronologically ordered series per requested
	// (symbol, timeframe), restricted to [from, to]. A missing, empty or
	// malformed series must be reported as an error wrapping
	// domain.ErrDataUnavailable.
	Load(ctx context.Context, symbols []string, timeframes []domain.Timeframe, from, to time.Time) (domain.DataSet, error)
}
