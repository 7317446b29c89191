package engine

// The engine replays the merged chronological axis one tick at a time:
// strategy signals flow through risk admission into the position book, and
// every tick ends with a mark-to-market sweep and one equity snapshot.
// The engine holds no trading state of its own; live state belongs to the
// account manager and historical state to the performance tracker.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/backsim/internal/account"
	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/alejandrodnm/backsim/internal/performance"
	"github.com/alejandrodnm/backsim/internal/ports"
	"github.com/alejandrodnm/backsim/internal/risk"
	"golang.org/x/time/rate"
)

// ErrAlreadyRunning is returned when Run is called while a run is in
// progress. A single engine instance owns its account manager and cannot
// share it across concurrent runs.
var ErrAlreadyRunning = errors.New("backtest already running")

// Engine drives one backtest run from data load to final results.
type Engine struct {
	data     ports.DataProvider
	strategy ports.Strategy
	account  *account.Manager
	risk     *risk.Manager
	tracker  *performance.Tracker

	running  atomic.Bool
	stopFlag atomic.Bool
	progress *rate.Limiter

	mu     sync.Mutex
	status Status
}

// New wires the engine to its collaborators.
func New(data ports.DataProvider, strategy ports.Strategy, acct *account.Manager, rm *risk.Manager, tracker *performance.Tracker) *Engine {
	return &Engine{
		data:     data,
		strategy: strategy,
		account:  acct,
		risk:     rm,
		tracker:  tracker,
		progress: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

// Stop requests cooperative cancellation. The flag is checked once per
// tick; the tick in flight always completes.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Status returns a snapshot of the in-flight state for polling.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Run executes the full simulation over [from, to]. Only a data-loading
// failure is fatal; any per-tick failure is logged, the tick is skipped
// and the loop continues.
func (e *Engine) Run(ctx context.Context, symbols []string, timeframes []domain.Timeframe, from, to time.Time) (*Results, error) {
	if len(symbols) == 0 || len(timeframes) == 0 {
		return nil, fmt.Errorf("engine.Run: symbols and timeframes must be non-empty")
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("engine.Run: start %s must precede end %s", from, to)
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("engine.Run: %w", ErrAlreadyRunning)
	}
	defer e.running.Store(false)
	e.stopFlag.Store(false)

	startedAt := time.Now()
	e.setStatus(func(s *Status) {
		*s = Status{Running: true, StartedAt: startedAt}
	})
	defer e.setStatus(func(s *Status) { s.Running = false })

	data, err := e.loadData(ctx, symbols, timeframes, from, to)
	if err != nil {
		return nil, err
	}

	axis := buildAxis(data)
	cursors := newCursorSet(data)
	lastPrices := make(map[string]float64)
	var signals []domain.SignalEvent
	var stats Stats
	var lastTick time.Time

	slog.Info("backtest starting",
		"strategy", e.strategy.Name(),
		"symbols", symbols,
		"timeframes", timeframes,
		"ticks", len(axis),
	)

	for _, ts := range axis {
		if e.stopFlag.Load() || ctx.Err() != nil {
			slog.Info("backtest stopped cooperatively", "at", ts, "ticksDone", stats.TicksProcessed)
			break
		}

		events, err := e.processTick(ts, cursors, lastPrices, &stats)
		if err != nil {
			// one bad tick never aborts the run
			stats.TicksSkipped++
			slog.Warn("tick failed, skipping", "timestamp", ts, "err", err)
			continue
		}
		signals = append(signals, events...)
		stats.TicksProcessed++
		lastTick = ts

		e.setStatus(func(s *Status) {
			s.CurrentTime = ts
			s.Stats = stats
		})
		if e.progress.Allow() {
			slog.Debug("backtest progress",
				"timestamp", ts,
				"ticks", stats.TicksProcessed,
				"trades", stats.TradesExecuted,
				"equity", fmt.Sprintf("%.2f", e.account.Balance()+e.account.PositionsValue()),
			)
		}
	}

	e.liquidate(lastPrices, lastTick, &stats)

	res := &Results{
		Strategy:          e.strategy.Name(),
		Symbols:           symbols,
		Timeframes:        timeframes,
		Start:             from,
		End:               to,
		Elapsed:           time.Since(startedAt),
		Signals:           signals,
		Trades:            e.tracker.TradeHistory(),
		Equity:            e.tracker.EquityCurve(),
		Stats:             stats,
		Metrics:           e.tracker.Metrics(),
		SymbolPerformance: e.tracker.SymbolPerformance(),
		Account:           e.account.Summary(),
	}

	slog.Info("backtest finished",
		"ticks", stats.TicksProcessed,
		"skipped", stats.TicksSkipped,
		"signals", stats.SignalsGenerated,
		"trades", stats.TradesExecuted,
		"netProfit", fmt.Sprintf("%.2f", res.Metrics.NetProfit),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// loadData fetches and validates the full data set up front. Any violation
// of the data contract is fatal and wraps domain.ErrDataUnavailable.
func (e *Engine) loadData(ctx context.Context, symbols []string, timeframes []domain.Timeframe, from, to time.Time) (domain.DataSet, error) {
	data, err := e.data.Load(ctx, symbols, timeframes, from, to)
	if err != nil {
		if errors.Is(err, domain.ErrDataUnavailable) {
			return nil, fmt.Errorf("engine.Run: %w", err)
		}
		return nil, fmt.Errorf("engine.Run: %w: %w", domain.ErrDataUnavailable, err)
	}

	for _, sym := range symbols {
		for _, tf := range timeframes {
			key := domain.SeriesKey{Symbol: sym, Timeframe: tf}
			series, ok := data[key]
			if !ok {
				return nil, fmt.Errorf("engine.Run: %w: no series for %s", domain.ErrDataUnavailable, key)
			}
			if err := series.Validate(); err != nil {
				return nil, fmt.Errorf("engine.Run: %w: %w", domain.ErrDataUnavailable, err)
			}
		}
	}
	return data, nil
}

// processTick runs one timestamp through the full pipeline. Panics inside
// a tick are converted to errors so the caller's error boundary can skip
// the tick and move on.
func (e *Engine) processTick(ts time.Time, cursors *cursorSet, lastPrices map[string]float64, stats *Stats) (events []domain.SignalEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rows, closes := cursors.advance(ts)
	stats.RowsProcessed += rows
	for sym, price := range closes {
		lastPrices[sym] = price
	}

	signals := e.strategy.GenerateSignals(cursors.history())
	stats.SignalsGenerated += len(signals)

	// deterministic execution order regardless of how the strategy
	// assembled its slice
	sort.SliceStable(signals, func(i, j int) bool {
		if signals[i].Symbol != signals[j].Symbol {
			return signals[i].Symbol < signals[j].Symbol
		}
		return signals[i].Timeframe < signals[j].Timeframe
	})

	for _, sig := range signals {
		if sig.Type == domain.SignalHold {
			continue
		}
		events = append(events, e.execute(ts, sig, lastPrices[sig.Symbol], stats))
	}

	e.sweepStops(ts, lastPrices, stats)

	for sym, price := range lastPrices {
		e.account.MarkToMarket(sym, price)
	}
	e.tracker.UpdateEquity(ts, e.account.Balance(), e.account.PositionsValue())

	return events, nil
}

// execute routes one tradeable signal through risk admission and the
// position book, returning the audit entry for the trail.
func (e *Engine) execute(ts time.Time, sig domain.Signal, price float64, stats *Stats) domain.SignalEvent {
	ev := domain.SignalEvent{Timestamp: ts, Signal: sig, Price: price}

	v := e.risk.ValidateSignal(sig, price, e.account.Snapshot())
	if !v.Valid {
		ev.Outcome = v.Reason
		slog.Debug("signal rejected", "symbol", sig.Symbol, "type", sig.Type, "reason", v.Reason)
		return ev
	}

	switch sig.Type {
	case domain.SignalBuy:
		if e.account.Open(sig.Symbol, domain.Long, v.AdjustedSize, price, ts) {
			ev.Executed = true
			ev.Outcome = "opened"
			stats.TradesExecuted++
		} else {
			ev.Outcome = "open rejected by position manager"
		}
	case domain.SignalSell:
		if trade := e.account.Close(sig.Symbol, price, ts); trade != nil {
			e.tracker.RecordTrade(*trade)
			ev.Executed = true
			ev.Outcome = "closed"
			stats.TradesExecuted++
		} else {
			ev.Outcome = "no position to close"
		}
	}
	return ev
}

// sweepStops closes every open position whose stop loss the tick price
// breached.
func (e *Engine) sweepStops(ts time.Time, lastPrices map[string]float64, stats *Stats) {
	snap := e.account.Snapshot()
	symbols := make([]string, 0, len(snap.Positions))
	for sym := range snap.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		price, ok := lastPrices[sym]
		if !ok {
			continue
		}
		res := e.risk.CheckStopLoss(snap.Positions[sym], price)
		if !res.Triggered {
			continue
		}
		if trade := e.account.Close(sym, price, ts); trade != nil {
			e.tracker.RecordTrade(*trade)
			stats.TradesExecuted++
			slog.Info("stop loss hit",
				"symbol", sym,
				"price", fmt.Sprintf("%.4f", price),
				"stop", fmt.Sprintf("%.4f", res.StopPrice),
				"pnl", fmt.Sprintf("%.2f", trade.PnL),
			)
		}
	}
}

// liquidate closes whatever is still open at the last seen prices so the
// final metrics reflect total equity, and stamps one last equity point.
// Trades and the equity point carry the last processed tick's timestamp:
// after a cooperative stop the simulation never reached the axis end.
func (e *Engine) liquidate(lastPrices map[string]float64, at time.Time, stats *Stats) {
	if e.account.OpenCount() == 0 || at.IsZero() {
		return
	}
	trades := e.account.ForceCloseAll(lastPrices, at)
	for _, t := range trades {
		if e.tracker.RecordTrade(t) {
			stats.TradesExecuted++
		}
	}
	if len(trades) > 0 {
		slog.Info("liquidated remaining positions", "count", len(trades))
		e.tracker.UpdateEquity(at, e.account.Balance(), e.account.PositionsValue())
	}
}

func (e *Engine) setStatus(fn func(*Status)) {
	e.mu.Lock()
	fn(&e.status)
	e.mu.Unlock()
}
