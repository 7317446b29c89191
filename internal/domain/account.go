package domain

// AccountLimits are the risk limits of an account. Fixed at construction;
// changing them afterwards is an explicit Reconfigure call, never implicit.
type AccountLimits struct {
	MaxPositions       int     // max simultaneously open positions, >= 1
	MaxRiskPerTrade    float64 // fraction of balance, 0 < x <= 1
	MaxPortfolioRisk   float64 // fraction of balance, 0 < x <= 1
	DefaultStopLossPct float64 // applied when a position carries no stop of its own
}

// AccountSnapshot is a read-only copy of the account state handed to the
// risk manager. The positions map is a copy; mutating it has no effect on
// the live book.
type AccountSnapshot struct {
	InitialBalance float64
	Balance        float64
	Positions      map[string]Position
	Limits         AccountLimits
}

// AccountSummary is the aggregate view of the account for reporting.
type AccountSummary struct {
	Balance        float64
	MarginInUse    float64
	UnrealizedPnL  float64
	RealizedPnL    float64
	PortfolioValue float64 // Balance + MarginInUse + UnrealizedPnL
	OpenPositions  int
	TradesClosed   int
}
