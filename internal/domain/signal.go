package domain

import "time"

// SignalType is the action a strategy requests for a (symbol, timeframe).
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// Signal is one strategy decision for a (symbol, timeframe) at a tick.
// Size is the requested quantity; the engine clamps it to the risk-adjusted
// size returned by the risk manager. Size 0 means "let risk sizing decide".
type Signal struct {
	Type      SignalType
	Symbol    string
	Timeframe Timeframe
	Size      float64
	Reason    string
}

// SignalEvent is one entry of the audit trail returned with the results:
// the signal as emitted plus what the engine did with it.
type SignalEvent struct {
	Timestamp time.Time
	Signal    Signal
	Price     float64
	Executed  bool
	Outcome   string // "opened", "closed", or the rejection reason
}
