package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Reporter, rendering the run summary to stdout.
type Console struct {
	out       io.Writer
	maxTrades int // trade rows printed before truncating the table
}

// NewConsole creates a reporter that writes to stdout.
func NewConsole(maxTrades int) *Console {
	return NewConsoleWriter(os.Stdout, maxTrades)
}

// NewConsoleWriter creates a reporter for tests.
func NewConsoleWriter(w io.Writer, maxTrades int) *Console {
	if maxTrades <= 0 {
		maxTrades = 20
	}
	return &Console{out: w, maxTrades: maxTrades}
}

// Report prints the performance summary, per-symbol breakdown and the
// most recent trades.
func (c *Console) Report(_ context.Context, m domain.PerformanceMetrics, symbols []domain.SymbolPerformance, trades []domain.Trade) error {
	c.printSummary(m)
	if len(symbols) > 0 {
		c.printSymbols(symbols)
	}
	if len(trades) > 0 {
		c.printTrades(trades)
	}
	return nil
}

func (c *Console) printSummary(m domain.PerformanceMetrics) {
	fmt.Fprintf(c.out, "\n=== BACKTEST RESULTS ===\n")
	fmt.Fprintf(c.out, "  Balance:   $%.2f -> $%.2f (%+.2f%%)\n",
		m.InitialBalance, m.FinalBalance, m.TotalReturnPct)
	fmt.Fprintf(c.out, "  Trades:    %d (%d W / %d L, win rate %.1f%%)\n",
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate*100)
	fmt.Fprintf(c.out, "  Profit:    net $%.2f | gross +$%.2f / -$%.2f | PF %.2f\n",
		m.NetProfit, m.GrossProfit, m.GrossLoss, m.ProfitFactor)
	fmt.Fprintf(c.out, "  Drawdown:  max $%.2f (%.1f%%) | avg $%.2f\n",
		m.MaxDrawdown, m.MaxDrawdownPct, m.AvgDrawdown)
	fmt.Fprintf(c.out, "  Ratios:    Sharpe %.3f | Sortino %.3f | expectancy $%.2f\n",
		m.SharpeRatio, m.SortinoRatio, m.Expectancy)
	fmt.Fprintf(c.out, "  Streaks:   %dW / %dL | avg hold %s\n",
		m.MaxConsecutiveWins, m.MaxConsecutiveLoss, m.AvgTradeDuration.Round(time.Minute))
}

func (c *Console) printSymbols(symbols []domain.SymbolPerformance) {
	fmt.Fprintf(c.out, "\n=== PER SYMBOL ===\n")
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Trades", "Wins", "Win rate", "Total PnL")
	for _, sp := range symbols {
		table.Append(
			sp.Symbol,
			fmt.Sprintf("%d", sp.Trades),
			fmt.Sprintf("%d", sp.Wins),
			fmt.Sprintf("%.1f%%", sp.WinRate*100),
			fmt.Sprintf("$%.2f", sp.TotalPnL),
		)
	}
	table.Render()
}

func (c *Console) printTrades(trades []domain.Trade) {
	shown := trades
	if len(shown) > c.maxTrades {
		shown = trades[len(trades)-c.maxTrades:]
	}
	fmt.Fprintf(c.out, "\n=== TRADES (%d of %d) ===\n", len(shown), len(trades))

	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Dir", "Size", "Entry", "Exit", "PnL", "Held")
	for _, t := range shown {
		table.Append(
			t.Symbol,
			string(t.Direction),
			fmt.Sprintf("%.6f", t.Size),
			fmt.Sprintf("%.4f", t.EntryPrice),
			fmt.Sprintf("%.4f", t.ExitPrice),
			fmt.Sprintf("%+.2f", t.PnL),
			t.Duration().Round(time.Minute).String(),
		)
	}
	table.Render()
}
