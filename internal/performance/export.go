package performance

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// exportDoc is the structured document written by JSON export.
type exportDoc struct {
	Metrics domain.PerformanceMetrics  `json:"metrics"`
	Trades  []domain.Trade             `json:"trades"`
	Equity  []domain.EquityPoint       `json:"equity_curve"`
	Symbols []domain.SymbolPerformance `json:"symbol_performance"`
}

// Export writes metrics, trades and the equity curve to path. The format
// is inferred from the extension: ".json" produces a structured document,
// ".csv" a tabular spreadsheet. Anything else fails with
// domain.ErrUnsupportedFormat.
func (t *Tracker) Export(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return t.exportJSON(path)
	case ".csv":
		return t.exportCSV(path)
	default:
		return fmt.Errorf("performance.Export: %q: %w", filepath.Ext(path), domain.ErrUnsupportedFormat)
	}
}

func (t *Tracker) exportJSON(path string) error {
	doc := exportDoc{
		Metrics: t.Metrics(),
		Trades:  t.TradeHistory(),
		Equity:  t.EquityCurve(),
		Symbols: t.SymbolPerformance(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("performance.Export: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("performance.Export: write %q: %w", path, err)
	}
	return nil
}

// exportCSV writes three sections (metrics, trades, equity) into one
// spreadsheet-friendly file.
func (t *Tracker) exportCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("performance.Export: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	m := t.Metrics()
	_ = w.Write([]string{"section", "metric", "value"})
	for _, row := range [][2]string{
		{"initial_balance", formatF(m.InitialBalance)},
		{"final_balance", formatF(m.FinalBalance)},
		{"total_return_pct", formatF(m.TotalReturnPct)},
		{"total_trades", strconv.Itoa(m.TotalTrades)},
		{"winning_trades", strconv.Itoa(m.WinningTrades)},
		{"losing_trades", strconv.Itoa(m.LosingTrades)},
		{"win_rate", formatF(m.WinRate)},
		{"net_profit", formatF(m.NetProfit)},
		{"profit_factor", formatF(m.ProfitFactor)},
		{"expectancy", formatF(m.Expectancy)},
		{"max_drawdown", formatF(m.MaxDrawdown)},
		{"max_drawdown_pct", formatF(m.MaxDrawdownPct)},
		{"sharpe_ratio", formatF(m.SharpeRatio)},
		{"sortino_ratio", formatF(m.SortinoRatio)},
	} {
		_ = w.Write([]string{"metrics", row[0], row[1]})
	}

	_ = w.Write([]string{})
	_ = w.Write([]string{"trade_id", "symbol", "direction", "size", "entry_price", "exit_price", "entry_time", "exit_time", "pnl"})
	for _, tr := range t.trades {
		_ = w.Write([]string{
			tr.ID, tr.Symbol, string(tr.Direction),
			formatF(tr.Size), formatF(tr.EntryPrice), formatF(tr.ExitPrice),
			tr.EntryTime.Format(time.RFC3339), tr.ExitTime.Format(time.RFC3339),
			formatF(tr.PnL),
		})
	}

	_ = w.Write([]string{})
	_ = w.Write([]string{"timestamp", "balance", "positions_value", "total_equity"})
	for _, pt := range t.equity {
		_ = w.Write([]string{
			pt.Timestamp.Format(time.RFC3339),
			formatF(pt.Balance), formatF(pt.PositionsValue), formatF(pt.TotalEquity),
		})
	}

	return nil
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
