package engine_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/backsim/internal/account"
	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/alejandrodnm/backsim/internal/engine"
	"github.com/alejandrodnm/backsim/internal/performance"
	"github.com/alejandrodnm/backsim/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeProvider serves a canned data set or a canned error.
type fakeProvider struct {
	data domain.DataSet
	err  error
}

func (p *fakeProvider) Load(_ context.Context, _ []string, _ []domain.Timeframe, _, _ time.Time) (domain.DataSet, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.data, nil
}

// scriptStrategy calls fn once per tick and collects what it saw.
type scriptStrategy struct {
	fn    func(tick int, data domain.History) []domain.Signal
	calls int
}

func (s *scriptStrategy) Name() string { return "script" }

func (s *scriptStrategy) GenerateSignals(data domain.History) []domain.Signal {
	defer func() { s.calls++ }()
	if s.fn == nil {
		return nil
	}
	return s.fn(s.calls, data)
}

func flatSeries(symbol string, tf domain.Timeframe, n int, step time.Duration, price float64) domain.Series {
	s := domain.Series{Symbol: symbol, Timeframe: tf}
	for i := 0; i < n; i++ {
		s.Candles = append(s.Candles, domain.Candle{
			Timestamp: t0.Add(time.Duration(i) * step),
			Open:      price, High: price * 1.01, Low: price * 0.99, Close: price,
			Volume: 100,
		})
	}
	return s
}

func newEngine(data domain.DataSet, strat *scriptStrategy) (*engine.Engine, *account.Manager, *performance.Tracker) {
	limits := domain.AccountLimits{
		MaxPositions:       5,
		MaxRiskPerTrade:    0.02,
		MaxPortfolioRisk:   0.10,
		DefaultStopLossPct: 0.02,
	}
	acct := account.NewManager(account.Config{InitialBalance: 10000, Limits: limits})
	riskMgr := risk.NewManager(risk.Config{})
	tracker := performance.NewTracker(10000, 0)
	eng := engine.New(&fakeProvider{data: data}, strat, acct, riskMgr, tracker)
	return eng, acct, tracker
}

func singleSeriesSet(n int) domain.DataSet {
	s := flatSeries("BTC", domain.TF1h, n, time.Hour, 20000)
	return domain.DataSet{s.Key(): s}
}

func TestRun_Preconditions(t *testing.T) {
	eng, _, _ := newEngine(singleSeriesSet(5), &scriptStrategy{})

	_, err := eng.Run(context.Background(), nil, []domain.Timeframe{domain.TF1h}, t0, t0.Add(time.Hour))
	assert.Error(t, err)

	_, err = eng.Run(context.Background(), []string{"BTC"}, nil, t0, t0.Add(time.Hour))
	assert.Error(t, err)

	_, err = eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0.Add(time.Hour), t0)
	assert.Error(t, err)
}

func TestRun_DataUnavailable(t *testing.T) {
	strat := &scriptStrategy{}

	// provider error
	eng := engine.New(
		&fakeProvider{err: fmt.Errorf("disk on fire")},
		strat,
		account.NewManager(account.Config{InitialBalance: 10000}),
		risk.NewManager(risk.Config{}),
		performance.NewTracker(10000, 0),
	)
	_, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))

	// missing series for a requested pair
	eng, _, _ = newEngine(singleSeriesSet(5), strat)
	_, err = eng.Run(context.Background(), []string{"BTC", "ETH"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestRun_NoLookAhead(t *testing.T) {
	data := domain.DataSet{}
	for _, sym := range []string{"BTC", "ETH"} {
		s := flatSeries(sym, domain.TF1h, 10, time.Hour, 1000)
		data[s.Key()] = s
	}

	var maxSeen []time.Time
	strat := &scriptStrategy{fn: func(tick int, h domain.History) []domain.Signal {
		var max time.Time
		for _, candles := range h {
			last := candles[len(candles)-1].Timestamp
			if last.After(max) {
				max = last
			}
		}
		maxSeen = append(maxSeen, max)
		return nil
	}}

	eng, _, _ := newEngine(data, strat)
	res, err := eng.Run(context.Background(), []string{"BTC", "ETH"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(10*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 10, res.Stats.TicksProcessed)

	// the newest candle any strategy call can see is exactly the tick itself
	for i, max := range maxSeen {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Hour), max, "tick %d leaked future data", i)
	}
}

func TestRun_BuyThenSellProducesTrade(t *testing.T) {
	strat := &scriptStrategy{fn: func(tick int, _ domain.History) []domain.Signal {
		switch tick {
		case 1:
			return []domain.Signal{{Type: domain.SignalBuy, Symbol: "BTC", Timeframe: domain.TF1h}}
		case 3:
			return []domain.Signal{{Type: domain.SignalSell, Symbol: "BTC", Timeframe: domain.TF1h}}
		}
		return nil
	}}

	eng, acct, _ := newEngine(singleSeriesSet(5), strat)
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, "BTC", trade.Symbol)
	assert.Equal(t, domain.Long, trade.Direction)
	assert.True(t, trade.ExitTime.After(trade.EntryTime))
	// flat price, so the round trip is pnl-neutral and the accounting
	// identity holds: balance == initial + Σ realized pnl
	assert.InDelta(t, 0.0, trade.PnL, 0.0001)
	assert.InDelta(t, 10000.0, acct.Balance(), 0.0001)
	assert.Equal(t, 0, acct.OpenCount())

	assert.Equal(t, 2, res.Stats.TradesExecuted)
	assert.Equal(t, 2, res.Stats.SignalsGenerated)
	assert.Len(t, res.Signals, 2)
	assert.True(t, res.Signals[0].Executed)
	assert.Equal(t, "opened", res.Signals[0].Outcome)
	assert.Equal(t, "closed", res.Signals[1].Outcome)
}

func TestRun_RejectedSignalAudited(t *testing.T) {
	strat := &scriptStrategy{fn: func(tick int, _ domain.History) []domain.Signal {
		if tick == 1 {
			// nothing open yet, so a SELL has nothing to close
			return []domain.Signal{{Type: domain.SignalSell, Symbol: "BTC", Timeframe: domain.TF1h}}
		}
		return nil
	}}

	eng, _, _ := newEngine(singleSeriesSet(4), strat)
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(4*time.Hour))
	require.NoError(t, err)

	require.Len(t, res.Signals, 1)
	assert.False(t, res.Signals[0].Executed)
	assert.Contains(t, res.Signals[0].Outcome, "no open position")
	assert.Equal(t, 0, res.Stats.TradesExecuted)
}

func TestRun_PanickingTickIsSkipped(t *testing.T) {
	strat := &scriptStrategy{fn: func(tick int, _ domain.History) []domain.Signal {
		if tick == 2 {
			panic("strategy exploded")
		}
		return nil
	}}

	eng, _, _ := newEngine(singleSeriesSet(6), strat)
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.TicksSkipped)
	assert.Equal(t, 5, res.Stats.TicksProcessed)
}

func TestRun_StopLossSweepClosesPosition(t *testing.T) {
	s := domain.Series{Symbol: "BTC", Timeframe: domain.TF1h}
	prices := []float64{20000, 20000, 19000, 19000, 19000}
	for i, p := range prices {
		s.Candles = append(s.Candles, domain.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      p, High: p * 1.01, Low: p * 0.99, Close: p, Volume: 10,
		})
	}

	strat := &scriptStrategy{fn: func(tick int, _ domain.History) []domain.Signal {
		if tick == 0 {
			return []domain.Signal{{Type: domain.SignalBuy, Symbol: "BTC", Timeframe: domain.TF1h}}
		}
		return nil
	}}

	eng, acct, _ := newEngine(domain.DataSet{s.Key(): s}, strat)
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)

	// 19000 breaches the 2% stop below 20000 (19600)
	require.Len(t, res.Trades, 1)
	assert.Negative(t, res.Trades[0].PnL)
	assert.Equal(t, t0.Add(2*time.Hour), res.Trades[0].ExitTime)
	assert.Equal(t, 0, acct.OpenCount())
}

func TestRun_LiquidatesOpenPositionsAtEnd(t *testing.T) {
	data := domain.DataSet{}
	for _, sym := range []string{"ETH", "BTC"} {
		s := flatSeries(sym, domain.TF1h, 4, time.Hour, 1000)
		data[s.Key()] = s
	}

	strat := &scriptStrategy{fn: func(tick int, _ domain.History) []domain.Signal {
		if tick == 0 {
			return []domain.Signal{
				{Type: domain.SignalBuy, Symbol: "ETH", Timeframe: domain.TF1h},
				{Type: domain.SignalBuy, Symbol: "BTC", Timeframe: domain.TF1h},
			}
		}
		return nil
	}}

	eng, acct, _ := newEngine(data, strat)
	res, err := eng.Run(context.Background(), []string{"BTC", "ETH"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(4*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, acct.OpenCount())
	require.Len(t, res.Trades, 2)
	// liquidation trades come back in symbol order
	assert.Equal(t, "BTC", res.Trades[0].Symbol)
	assert.Equal(t, "ETH", res.Trades[1].Symbol)
	assert.Equal(t, t0.Add(3*time.Hour), res.Trades[0].ExitTime)
	assert.Equal(t, t0.Add(3*time.Hour), res.Trades[1].ExitTime)
}

func TestRun_BuyOnFinalTickStillLedgered(t *testing.T) {
	strat := &scriptStrategy{fn: func(tick int, _ domain.History) []domain.Signal {
		if tick == 3 {
			return []domain.Signal{{Type: domain.SignalBuy, Symbol: "BTC", Timeframe: domain.TF1h}}
		}
		return nil
	}}

	eng, acct, tracker := newEngine(singleSeriesSet(4), strat)
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(4*time.Hour))
	require.NoError(t, err)

	// opened and liquidated on the same final tick: still one ledgered trade
	require.Len(t, res.Trades, 1)
	assert.Equal(t, t0.Add(3*time.Hour), res.Trades[0].EntryTime)
	assert.Equal(t, t0.Add(3*time.Hour), res.Trades[0].ExitTime)
	assert.Equal(t, 1, res.Metrics.TotalTrades)

	// ledger and account agree on where the money ended up
	assert.Equal(t, 0, acct.OpenCount())
	assert.InDelta(t, acct.Balance(), tracker.Balance(), 0.0001)
	assert.InDelta(t, acct.Balance(), res.Metrics.FinalBalance, 0.0001)
}

func TestRun_StopMidRunLiquidatesAtLastTick(t *testing.T) {
	strat := &scriptStrategy{}
	eng, acct, _ := newEngine(singleSeriesSet(5), strat)
	strat.fn = func(tick int, _ domain.History) []domain.Signal {
		switch tick {
		case 0:
			return []domain.Signal{{Type: domain.SignalBuy, Symbol: "BTC", Timeframe: domain.TF1h}}
		case 1:
			eng.Stop()
		}
		return nil
	}

	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)

	// the tick in flight completes, then the loop exits
	assert.Equal(t, 2, res.Stats.TicksProcessed)
	assert.Equal(t, 0, acct.OpenCount())

	// liquidation is stamped at the last processed tick, not the axis end
	require.Len(t, res.Trades, 1)
	assert.Equal(t, t0.Add(time.Hour), res.Trades[0].ExitTime)
	curve := res.Equity
	require.NotEmpty(t, curve)
	assert.Equal(t, t0.Add(time.Hour), curve[len(curve)-1].Timestamp)
}

func TestRun_EquityCurvePerTick(t *testing.T) {
	eng, _, tracker := newEngine(singleSeriesSet(5), &scriptStrategy{})
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)

	curve := tracker.EquityCurve()
	require.Len(t, curve, res.Stats.TicksProcessed)
	for _, pt := range curve {
		assert.InDelta(t, 10000.0, pt.TotalEquity, 0.001)
	}
}

func TestRun_Deterministic(t *testing.T) {
	buySell := func(tick int, _ domain.History) []domain.Signal {
		switch tick % 4 {
		case 0:
			return []domain.Signal{
				{Type: domain.SignalBuy, Symbol: "ETH", Timeframe: domain.TF1h},
				{Type: domain.SignalBuy, Symbol: "BTC", Timeframe: domain.TF1h},
			}
		case 2:
			return []domain.Signal{
				{Type: domain.SignalSell, Symbol: "BTC", Timeframe: domain.TF1h},
				{Type: domain.SignalSell, Symbol: "ETH", Timeframe: domain.TF1h},
			}
		}
		return nil
	}

	run := func() []string {
		data := domain.DataSet{}
		for i, sym := range []string{"BTC", "ETH"} {
			s := flatSeries(sym, domain.TF1h, 12, time.Hour, 1000*float64(i+1))
			data[s.Key()] = s
		}
		eng, _, _ := newEngine(data, &scriptStrategy{fn: buySell})
		res, err := eng.Run(context.Background(), []string{"BTC", "ETH"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(12*time.Hour))
		require.NoError(t, err)

		var seq []string
		for _, tr := range res.Trades {
			seq = append(seq, fmt.Sprintf("%s@%s:%.4f", tr.Symbol, tr.ExitTime, tr.PnL))
		}
		return seq
	}

	first := run()
	require.NotEmpty(t, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, run())
	}
}

func TestEngine_StatusAndStop(t *testing.T) {
	eng, _, _ := newEngine(singleSeriesSet(5), &scriptStrategy{})

	st := eng.Status()
	assert.False(t, st.Running)

	eng.Stop() // stopping an idle engine is harmless
	res, err := eng.Run(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Stats.TicksProcessed)

	st = eng.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 5, st.Stats.TicksProcessed)
	assert.Equal(t, t0.Add(4*time.Hour), st.CurrentTime)
}

func TestRun_CancelledContextStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng, _, _ := newEngine(singleSeriesSet(5), &scriptStrategy{})
	res, err := eng.Run(ctx, []string{"BTC"}, []domain.Timeframe{domain.TF1h}, t0, t0.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Stats.TicksProcessed)
}
