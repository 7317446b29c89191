package domain

import "errors"

// ErrDataUnavailable is the only error fatal to a backtest run: the data
// collaborator could not supply a valid series for every requested
// (symbol, timeframe). Raised once, at load time, never mid-loop.
var ErrDataUnavailable = errors.New("historical data unavailable")

// ErrUnsupportedFormat is returned by result export when the requested
// output format is not one of the supported ones.
var ErrUnsupportedFormat = errors.New("unsupported export format")
