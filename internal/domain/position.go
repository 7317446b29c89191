package domain

import "time"

// Direction of an open position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// Position is an open directional exposure to a symbol. Identity fields
// (Symbol, Direction, Size, EntryPrice, EntryTime) are fixed at open;
// only CurrentPrice and UnrealizedPnL move with mark-to-market.
type Position struct {
	Symbol        string
	Direction     Direction
	Size          float64
	EntryPrice    float64
	CurrentPrice  float64
	EntryTime     time.Time
	UnrealizedPnL float64
	StopLossPct   float64 // 0 means "no stop configured"
}

// Margin is the cash debited from the balance to back the position.
func (p Position) Margin() float64 {
	return p.Size * p.EntryPrice
}

// Notional is the mark-to-market value of the position.
func (p Position) Notional() float64 {
	return p.Size * p.CurrentPrice
}

// PnLAt returns the profit/loss of the position if closed at price.
func (p Position) PnLAt(price float64) float64 {
	pnl := (price - p.EntryPrice) * p.Size
	if p.Direction == Short {
		pnl = -pnl
	}
	return pnl
}
