package domain

import "time"

// Trade is a completed round trip. Immutable once recorded.
type Trade struct {
	ID         string
	Symbol     string
	Direction  Direction
	Size       float64
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	PnL        float64
}

// Duration is the holding time of the trade.
func (t Trade) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Complete reports whether every field required by the performance ledger is set.
func (t Trade) Complete() bool {
	return t.Symbol != "" &&
		t.Direction.Valid() &&
		t.Size > 0 &&
		t.EntryPrice > 0 &&
		t.ExitPrice > 0 &&
		!t.EntryTime.IsZero() &&
		!t.ExitTime.IsZero()
}
