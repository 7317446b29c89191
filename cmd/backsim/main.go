package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alejandrodnm/backsim/config"
	"github.com/alejandrodnm/backsim/internal/account"
	"github.com/alejandrodnm/backsim/internal/adapters/csvdata"
	"github.com/alejandrodnm/backsim/internal/adapters/notify"
	"github.com/alejandrodnm/backsim/internal/adapters/storage"
	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/alejandrodnm/backsim/internal/engine"
	"github.com/alejandrodnm/backsim/internal/performance"
	"github.com/alejandrodnm/backsim/internal/ports"
	"github.com/alejandrodnm/backsim/internal/risk"
	"github.com/alejandrodnm/backsim/internal/strategy"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	timeframesFlag := flag.String("timeframes", "", "comma-separated timeframes (overrides config)")
	startFlag := flag.String("start", "", "start date, RFC3339 or 2006-01-02 (overrides config)")
	endFlag := flag.String("end", "", "end date (overrides config)")
	strategyFlag := flag.String("strategy", "", "strategy name (overrides config)")
	exportPath := flag.String("export", "", "export results to this path (.json or .csv)")
	listRuns := flag.Bool("runs", false, "list persisted runs and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	var store *storage.SQLiteStore
	if cfg.Storage.DSN != "" {
		store, err = storage.NewSQLiteStore(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer store.Close()
	}

	if *listRuns {
		if store == nil {
			slog.Error("no storage configured, nothing to list")
			os.Exit(1)
		}
		printRuns(store)
		return
	}

	symbols := cfg.Backtest.Symbols
	if *symbolsFlag != "" {
		symbols = splitList(*symbolsFlag)
	}
	timeframes := toTimeframes(cfg.Backtest.Timeframes)
	if *timeframesFlag != "" {
		timeframes = toTimeframes(splitList(*timeframesFlag))
	}
	from, err := parseDate(firstNonEmpty(*startFlag, cfg.Backtest.Start))
	if err != nil {
		slog.Error("invalid start date", "err", err)
		os.Exit(1)
	}
	to, err := parseDate(firstNonEmpty(*endFlag, cfg.Backtest.End))
	if err != nil {
		slog.Error("invalid end date", "err", err)
		os.Exit(1)
	}

	strategyName := firstNonEmpty(*strategyFlag, cfg.Strategy.Name)
	strat, err := strategy.New(strategyName, strategy.Config{
		FastPeriod:    cfg.Strategy.FastPeriod,
		SlowPeriod:    cfg.Strategy.SlowPeriod,
		RSIPeriod:     cfg.Strategy.RSIPeriod,
		RSIOversold:   cfg.Strategy.RSIOversold,
		RSIOverbought: cfg.Strategy.RSIOverbought,
	})
	if err != nil {
		slog.Error("failed to build strategy", "err", err)
		os.Exit(1)
	}

	limits := domain.AccountLimits{
		MaxPositions:       cfg.Account.MaxPositions,
		MaxRiskPerTrade:    cfg.Account.MaxRiskPerTrade,
		MaxPortfolioRisk:   cfg.Account.MaxPortfolioRisk,
		DefaultStopLossPct: cfg.Account.DefaultStopLossPct,
	}
	acct := account.NewManager(account.Config{
		InitialBalance: cfg.Account.InitialBalance,
		Limits:         limits,
	})
	riskMgr := risk.NewManager(risk.Config{
		Sizing:              risk.SizingStrategy(cfg.Risk.SizingStrategy),
		MaxRiskPerTrade:     cfg.Account.MaxRiskPerTrade,
		MaxNotionalFrac:     cfg.Risk.MaxNotionalFrac,
		KellyCapFrac:        cfg.Risk.KellyCapFrac,
		ReferenceVolatility: cfg.Risk.ReferenceVolatility,
		DefaultStopLossPct:  cfg.Account.DefaultStopLossPct,
	})
	tracker := performance.NewTracker(cfg.Account.InitialBalance, cfg.Backtest.RiskFree)
	provider := csvdata.NewProvider(cfg.Data.Dir)

	eng := engine.New(provider, strat, acct, riskMgr, tracker)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("backsim starting",
		"config", *configPath,
		"strategy", strat.Name(),
		"symbols", symbols,
		"timeframes", timeframes,
		"from", from,
		"to", to,
	)

	results, err := eng.Run(ctx, symbols, timeframes, from, to)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			slog.Error("historical data unavailable", "err", err)
		} else {
			slog.Error("backtest failed", "err", err)
		}
		os.Exit(1)
	}

	reporter := notify.NewConsole(20)
	if err := reporter.Report(ctx, results.Metrics, results.SymbolPerformance, results.Trades); err != nil {
		slog.Warn("reporter error", "err", err)
	}

	if *exportPath != "" {
		if err := tracker.Export(*exportPath); err != nil {
			slog.Error("export failed", "err", err, "path", *exportPath)
			os.Exit(1)
		}
		slog.Info("results exported", "path", *exportPath)
	}

	if store != nil {
		saveRun(ctx, store, results)
	}
}

func saveRun(ctx context.Context, store *storage.SQLiteStore, res *engine.Results) {
	tfs := make([]string, len(res.Timeframes))
	for i, tf := range res.Timeframes {
		tfs[i] = string(tf)
	}
	rec := ports.RunRecord{
		ID:          uuid.New().String(),
		Strategy:    res.Strategy,
		Symbols:     strings.Join(res.Symbols, ","),
		Timeframes:  strings.Join(tfs, ","),
		Start:       res.Start,
		End:         res.End,
		RanAt:       time.Now().UTC(),
		NetProfit:   res.Metrics.NetProfit,
		TotalReturn: res.Metrics.TotalReturn,
		TotalTrades: res.Metrics.TotalTrades,
		WinRate:     res.Metrics.WinRate,
		MaxDrawdown: res.Metrics.MaxDrawdown,
	}
	if err := store.SaveRun(ctx, rec, res.Trades, res.Equity); err != nil {
		slog.Warn("failed to persist run", "err", err)
		return
	}
	slog.Info("run persisted", "id", rec.ID)
}

func printRuns(store *storage.SQLiteStore) {
	runs, err := store.ListRuns(context.Background(), 20)
	if err != nil {
		slog.Error("failed to list runs", "err", err)
		os.Exit(1)
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %s [%s]  trades:%d  win:%.1f%%  net:$%.2f\n",
			r.RanAt.Format("2006-01-02 15:04"), r.ID[:8], r.Strategy, r.Symbols,
			r.TotalTrades, r.WinRate*100, r.NetProfit)
	}
	if len(runs) == 0 {
		fmt.Println("no persisted runs")
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toTimeframes(strs []string) []domain.Timeframe {
	out := make([]domain.Timeframe, len(strs))
	for i, s := range strs {
		out[i] = domain.Timeframe(s)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date not set")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return ts.UTC(), nil
}
