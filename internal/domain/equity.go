package domain

import "time"

// EquityPoint is one snapshot of portfolio value on the equity curve.
type EquityPoint struct {
	Timestamp      time.Time
	Balance        float64 // cash, excluding margin held in open positions
	PositionsValue float64 // mark-to-market of open positions
	TotalEquity    float64 // Balance + PositionsValue
}
