package account

// The position manager owns the mutable book of open positions and the cash
// balance. It is the only place where balance or margin moves. One manager
// instance belongs to exactly one backtest run; the engine owns it for the
// duration of the run, so there is no locking here.

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/google/uuid"
)

// Config fixes the account's starting balance and risk limits.
type Config struct {
	InitialBalance float64
	Limits         domain.AccountLimits
}

// Manager tracks cash, margin and the open-position book.
type Manager struct {
	cfg         Config
	balance     float64
	positions   map[string]*domain.Position
	realizedPnL float64
	tradesCount int
}

// NewManager creates a manager with sane fallbacks for unset limits.
func NewManager(cfg Config) *Manager {
	if cfg.InitialBalance <= 0 {
		cfg.InitialBalance = 10000
	}
	if cfg.Limits.MaxPositions < 1 {
		cfg.Limits.MaxPositions = 5
	}
	if cfg.Limits.MaxRiskPerTrade <= 0 || cfg.Limits.MaxRiskPerTrade > 1 {
		cfg.Limits.MaxRiskPerTrade = 0.02
	}
	if cfg.Limits.MaxPortfolioRisk <= 0 || cfg.Limits.MaxPortfolioRisk > 1 {
		cfg.Limits.MaxPortfolioRisk = 0.10
	}
	if cfg.Limits.DefaultStopLossPct <= 0 {
		cfg.Limits.DefaultStopLossPct = 0.02
	}
	return &Manager{
		cfg:       cfg,
		balance:   cfg.InitialBalance,
		positions: make(map[string]*domain.Position),
	}
}

// CanOpen reports whether a position of size*price notional may be opened
// for symbol, with the reason when it may not.
func (m *Manager) CanOpen(symbol string, size, price float64) (bool, string) {
	if symbol == "" {
		return false, "empty symbol"
	}
	if size <= 0 || price <= 0 {
		return false, fmt.Sprintf("non-positive size or price (size=%v price=%v)", size, price)
	}
	if _, open := m.positions[symbol]; open {
		return false, fmt.Sprintf("position already open for %s", symbol)
	}
	if len(m.positions) >= m.cfg.Limits.MaxPositions {
		return false, fmt.Sprintf("max positions reached (%d)", m.cfg.Limits.MaxPositions)
	}
	// tolerance absorbs the float round trip of size = notional/price
	const eps = 1e-9
	notional := size * price
	if notional > m.balance+eps {
		return false, fmt.Sprintf("insufficient balance: need %.2f, have %.2f", notional, m.balance)
	}
	if maxNotional := m.balance * m.cfg.Limits.MaxRiskPerTrade; notional > maxNotional+eps {
		return false, fmt.Sprintf("notional %.2f exceeds per-trade risk limit %.2f", notional, maxNotional)
	}
	return true, ""
}

// Open opens a position, debiting size*price from the balance as margin.
// Returns false (and logs the reason) when admission fails.
func (m *Manager) Open(symbol string, direction domain.Direction, size, price float64, ts time.Time) bool {
	if !direction.Valid() {
		slog.Warn("account: rejected open", "symbol", symbol, "reason", "unknown direction", "direction", direction)
		return false
	}
	ok, reason := m.CanOpen(symbol, size, price)
	if !ok {
		slog.Debug("account: rejected open", "symbol", symbol, "reason", reason)
		return false
	}

	m.balance -= size * price
	m.positions[symbol] = &domain.Position{
		Symbol:       symbol,
		Direction:    direction,
		Size:         size,
		EntryPrice:   price,
		CurrentPrice: price,
		EntryTime:    ts,
		StopLossPct:  m.cfg.Limits.DefaultStopLossPct,
	}

	slog.Debug("account: opened position",
		"symbol", symbol,
		"direction", direction,
		"size", fmt.Sprintf("%.6f", size),
		"price", fmt.Sprintf("%.2f", price),
		"balance", fmt.Sprintf("%.2f", m.balance),
	)
	return true
}

// Close closes the open position for symbol at exitPrice, credits margin
// plus realized pnl back to the balance and returns the completed trade.
// Returns nil when no position is open for symbol.
func (m *Manager) Close(symbol string, exitPrice float64, ts time.Time) *domain.Trade {
	pos, open := m.positions[symbol]
	if !open {
		return nil
	}

	pnl := pos.PnLAt(exitPrice)
	m.balance += pos.Margin() + pnl
	m.realizedPnL += pnl
	m.tradesCount++
	delete(m.positions, symbol)

	trade := &domain.Trade{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Direction:  pos.Direction,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  pos.EntryTime,
		ExitTime:   ts,
		PnL:        pnl,
	}

	slog.Debug("account: closed position",
		"symbol", symbol,
		"pnl", fmt.Sprintf("%.2f", pnl),
		"balance", fmt.Sprintf("%.2f", m.balance),
	)
	return trade
}

// MarkToMarket updates the open position's current price and unrealized pnl.
// No-op when symbol has no open position. Never touches the balance.
func (m *Manager) MarkToMarket(symbol string, price float64) {
	pos, open := m.positions[symbol]
	if !open || price <= 0 {
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = pos.PnLAt(price)
}

// PositionSize converts a risk fraction of the balance into a quantity at
// price. riskFraction <= 0 falls back to the configured per-trade limit.
func (m *Manager) PositionSize(price, riskFraction float64) float64 {
	if price <= 0 || m.balance <= 0 {
		return 0
	}
	if riskFraction <= 0 {
		riskFraction = m.cfg.Limits.MaxRiskPerTrade
	}
	return m.balance * riskFraction / price
}

// ForceCloseAll closes every open position whose symbol has a price in
// prices, in symbol order so repeated runs produce identical trade
// sequences. Positions without a supplied price stay open: no price
// guessing.
func (m *Manager) ForceCloseAll(prices map[string]float64, ts time.Time) []domain.Trade {
	symbols := make([]string, 0, len(m.positions))
	for symbol := range m.positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var trades []domain.Trade
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok || price <= 0 {
			slog.Warn("account: no price for force close, leaving open", "symbol", symbol)
			continue
		}
		if t := m.Close(symbol, price, ts); t != nil {
			trades = append(trades, *t)
		}
	}
	return trades
}

// Position returns a copy of the open position for symbol.
func (m *Manager) Position(symbol string) (domain.Position, bool) {
	pos, open := m.positions[symbol]
	if !open {
		return domain.Position{}, false
	}
	return *pos, true
}

// OpenCount returns the number of open positions.
func (m *Manager) OpenCount() int {
	return len(m.positions)
}

// Balance returns the current cash balance (margin excluded).
func (m *Manager) Balance() float64 {
	return m.balance
}

// Snapshot returns a read-only copy of the account for the risk manager.
func (m *Manager) Snapshot() domain.AccountSnapshot {
	positions := make(map[string]domain.Position, len(m.positions))
	for sym, pos := range m.positions {
		positions[sym] = *pos
	}
	return domain.AccountSnapshot{
		InitialBalance: m.cfg.InitialBalance,
		Balance:        m.balance,
		Positions:      positions,
		Limits:         m.cfg.Limits,
	}
}

// Summary aggregates balance, margin, pnl and counts for reporting.
func (m *Manager) Summary() domain.AccountSummary {
	var margin, unrealized float64
	for _, pos := range m.positions {
		margin += pos.Margin()
		unrealized += pos.UnrealizedPnL
	}
	return domain.AccountSummary{
		Balance:        m.balance,
		MarginInUse:    margin,
		UnrealizedPnL:  unrealized,
		RealizedPnL:    m.realizedPnL,
		PortfolioValue: m.balance + margin + unrealized,
		OpenPositions:  len(m.positions),
		TradesClosed:   m.tradesCount,
	}
}

// PositionsValue returns the mark-to-market value of all open positions.
func (m *Manager) PositionsValue() float64 {
	var total float64
	for _, pos := range m.positions {
		total += pos.Margin() + pos.UnrealizedPnL
	}
	return total
}

// Reconfigure replaces the account limits. This is the only way limits
// change after construction.
func (m *Manager) Reconfigure(limits domain.AccountLimits) error {
	if limits.MaxPositions < 1 {
		return fmt.Errorf("account.Reconfigure: max positions must be >= 1, got %d", limits.MaxPositions)
	}
	if limits.MaxRiskPerTrade <= 0 || limits.MaxRiskPerTrade > 1 {
		return fmt.Errorf("account.Reconfigure: max risk per trade out of (0,1]: %v", limits.MaxRiskPerTrade)
	}
	if limits.MaxPortfolioRisk <= 0 || limits.MaxPortfolioRisk > 1 {
		return fmt.Errorf("account.Reconfigure: max portfolio risk out of (0,1]: %v", limits.MaxPortfolioRisk)
	}
	m.cfg.Limits = limits
	slog.Info("account: limits reconfigured",
		"maxPositions", limits.MaxPositions,
		"maxRiskPerTrade", limits.MaxRiskPerTrade,
		"maxPortfolioRisk", limits.MaxPortfolioRisk,
	)
	return nil
}
