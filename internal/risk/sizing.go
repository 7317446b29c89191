package risk

import "log/slog"

// SizingStrategy selects the position-sizing formula.
type SizingStrategy string

const (
	SizingFixedPercentage SizingStrategy = "fixed_percentage"
	SizingVolatilityBased SizingStrategy = "volatility_based"
	SizingKellyCriterion  SizingStrategy = "kelly_criterion"
)

// Valid reports whether s is a known sizing strategy.
func (s SizingStrategy) Valid() bool {
	switch s {
	case SizingFixedPercentage, SizingVolatilityBased, SizingKellyCriterion:
		return true
	}
	return false
}

// SizingInput carries everything a sizing formula may need. Price and
// Balance are required; the rest are optional refinements with defaults
// taken from the manager's config.
type SizingInput struct {
	Price       float64
	Balance     float64
	RiskAmount  float64 // defaults to Balance * MaxRiskPerTrade
	StopLossPct float64 // defaults to the configured stop loss
	Volatility  float64 // volatility_based only; e.g. stddev of returns
	WinRate     float64 // kelly only
	AvgWin      float64 // kelly only, positive magnitude
	AvgLoss     float64 // kelly only, positive magnitude
}

// PositionSize computes a quantity at in.Price using the configured
// strategy. Non-positive price or balance yields 0, never an error.
func (m *Manager) PositionSize(in SizingInput) float64 {
	if in.Price <= 0 || in.Balance <= 0 {
		return 0
	}

	var size float64
	switch m.cfg.Sizing {
	case SizingVolatilityBased:
		size = m.volatilitySize(in)
	case SizingKellyCriterion:
		size = m.kellySize(in)
	default:
		size = m.fixedPercentageSize(in)
	}

	if size < 0 {
		size = 0
	}
	return size
}

// fixedPercentageSize risks a fixed amount of the balance per trade:
// size = riskAmount / (price * stopLossPct), capped so the position's
// notional never exceeds MaxNotionalFrac of the balance.
func (m *Manager) fixedPercentageSize(in SizingInput) float64 {
	stop := in.StopLossPct
	if stop <= 0 {
		stop = m.cfg.DefaultStopLossPct
	}
	riskAmount := in.RiskAmount
	if riskAmount <= 0 {
		riskAmount = in.Balance * m.cfg.MaxRiskPerTrade
	}

	size := riskAmount / (in.Price * stop)
	if maxSize := in.Balance * m.cfg.MaxNotionalFrac / in.Price; size > maxSize {
		size = maxSize
	}
	return size
}

// volatilitySize shrinks the fixed-percentage size inversely with the
// supplied volatility: quiet markets trade full size, turbulent ones less.
func (m *Manager) volatilitySize(in SizingInput) float64 {
	base := m.fixedPercentageSize(in)
	if in.Volatility <= 0 {
		return base
	}
	scale := m.cfg.ReferenceVolatility / in.Volatility
	if scale > 1 {
		scale = 1
	}
	return base * scale
}

// kellySize applies the Kelly criterion f = (b*p - q) / b with
// b = avgWin/avgLoss, p = winRate, q = 1-p. The resulting notional is
// capped at KellyCapFrac of the balance regardless of f. Without trade
// history it falls back to fixed-percentage sizing.
func (m *Manager) kellySize(in SizingInput) float64 {
	if in.AvgWin <= 0 || in.AvgLoss <= 0 || in.WinRate <= 0 {
		slog.Debug("risk: kelly sizing without history, falling back to fixed percentage")
		return m.fixedPercentageSize(in)
	}

	b := in.AvgWin / in.AvgLoss
	p := in.WinRate
	q := 1 - p
	f := (b*p - q) / b
	if f <= 0 {
		return 0
	}
	if f > m.cfg.KellyCapFrac {
		f = m.cfg.KellyCapFrac
	}
	return in.Balance * f / in.Price
}
