package risk

// The risk manager is a pure policy component: it receives account
// snapshots and returns decisions, and never mutates trading state.

import (
	"fmt"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// Config fixes the sizing strategy and its parameters at construction.
type Config struct {
	Sizing              SizingStrategy
	MaxRiskPerTrade     float64 // fraction of balance risked per trade
	MaxNotionalFrac     float64 // ceiling on any single position's notional
	KellyCapFrac        float64 // ceiling on kelly notional, fraction of balance
	ReferenceVolatility float64 // volatility at which volatility sizing trades full size
	DefaultStopLossPct  float64
}

// Manager evaluates sizing, admission and stop-loss policy.
type Manager struct {
	cfg Config
}

// NewManager creates a risk manager, filling unset config with defaults.
func NewManager(cfg Config) *Manager {
	if !cfg.Sizing.Valid() {
		cfg.Sizing = SizingFixedPercentage
	}
	if cfg.MaxRiskPerTrade <= 0 || cfg.MaxRiskPerTrade > 1 {
		cfg.MaxRiskPerTrade = 0.02
	}
	if cfg.MaxNotionalFrac <= 0 || cfg.MaxNotionalFrac > 1 {
		cfg.MaxNotionalFrac = 1.0
	}
	if cfg.KellyCapFrac <= 0 || cfg.KellyCapFrac > 1 {
		cfg.KellyCapFrac = 0.25
	}
	if cfg.ReferenceVolatility <= 0 {
		cfg.ReferenceVolatility = 0.02
	}
	if cfg.DefaultStopLossPct <= 0 {
		cfg.DefaultStopLossPct = 0.02
	}
	return &Manager{cfg: cfg}
}

// Validation is the admission decision for one signal.
type Validation struct {
	Valid        bool
	Reason       string
	AdjustedSize float64
}

func rejected(format string, args ...any) Validation {
	return Validation{Reason: fmt.Sprintf(format, args...)}
}

// ValidateSignal decides whether a signal may trade against the given
// account snapshot, and at what size. price is the execution price the
// engine would use for the tick.
func (m *Manager) ValidateSignal(sig domain.Signal, price float64, acct domain.AccountSnapshot) Validation {
	if sig.Symbol == "" {
		return rejected("signal missing symbol")
	}
	if sig.Type != domain.SignalBuy && sig.Type != domain.SignalSell {
		return rejected("signal type %q is not tradeable", sig.Type)
	}
	if price <= 0 {
		return rejected("non-positive price %v", price)
	}

	if sig.Type == domain.SignalSell {
		pos, open := acct.Positions[sig.Symbol]
		if !open {
			return rejected("no open position for %s to close", sig.Symbol)
		}
		return Validation{Valid: true, AdjustedSize: pos.Size}
	}

	// BUY admission
	if _, open := acct.Positions[sig.Symbol]; open {
		return rejected("position already open for %s", sig.Symbol)
	}
	if len(acct.Positions) >= acct.Limits.MaxPositions {
		return rejected("max positions reached (%d)", acct.Limits.MaxPositions)
	}

	size := m.PositionSize(SizingInput{
		Price:       price,
		Balance:     acct.Balance,
		StopLossPct: acct.Limits.DefaultStopLossPct,
	})
	if size <= 0 {
		return rejected("sizing produced no tradeable quantity")
	}
	if sig.Size > 0 && sig.Size < size {
		size = sig.Size
	}
	// The admitted notional must also satisfy the account's own per-trade
	// limit, or the position manager would reject the open downstream.
	if maxSize := acct.Balance * acct.Limits.MaxRiskPerTrade / price; size > maxSize {
		size = maxSize
	}

	current := m.PortfolioRisk(acct.Positions, acct.Balance)
	added := size * price / acct.Balance
	if current+added > acct.Limits.MaxPortfolioRisk+1e-9 {
		return rejected("portfolio risk %.4f would exceed limit %.4f",
			current+added, acct.Limits.MaxPortfolioRisk)
	}

	return Validation{Valid: true, AdjustedSize: size}
}

// StopLossResult is the outcome of evaluating a position's stop.
type StopLossResult struct {
	Triggered bool
	Reason    string
	StopPrice float64
}

// CheckStopLoss evaluates whether currentPrice breaches the position's stop.
// A malformed position yields Triggered=false with an explanatory reason,
// never an error.
func (m *Manager) CheckStopLoss(pos domain.Position, currentPrice float64) StopLossResult {
	if pos.EntryPrice <= 0 || pos.Size <= 0 {
		return StopLossResult{Reason: "position missing entry price or size"}
	}
	if !pos.Direction.Valid() {
		return StopLossResult{Reason: fmt.Sprintf("unknown direction %q", pos.Direction)}
	}
	if currentPrice <= 0 {
		return StopLossResult{Reason: fmt.Sprintf("non-positive current price %v", currentPrice)}
	}

	stop := pos.StopLossPct
	if stop <= 0 {
		stop = m.cfg.DefaultStopLossPct
	}

	var stopPrice float64
	var triggered bool
	if pos.Direction == domain.Long {
		stopPrice = pos.EntryPrice * (1 - stop)
		triggered = currentPrice <= stopPrice
	} else {
		stopPrice = pos.EntryPrice * (1 + stop)
		triggered = currentPrice >= stopPrice
	}

	res := StopLossResult{Triggered: triggered, StopPrice: stopPrice}
	if triggered {
		res.Reason = fmt.Sprintf("%s stop at %.4f breached by %.4f", pos.Direction, stopPrice, currentPrice)
	}
	return res
}

// PortfolioRisk measures total open notional as a fraction of the balance.
// Returns 0 with no positions or a non-positive balance.
func (m *Manager) PortfolioRisk(positions map[string]domain.Position, balance float64) float64 {
	if len(positions) == 0 || balance <= 0 {
		return 0
	}
	var notional float64
	for _, pos := range positions {
		notional += pos.Size * pos.CurrentPrice
	}
	return notional / balance
}
