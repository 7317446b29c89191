package csvdata

// CSV-backed data provider. One file per (symbol, timeframe) named
// <SYMBOL>_<timeframe>.csv under the configured directory, with a
// timestamp,open,high,low,close,volume header. Timestamps are RFC3339 or
// unix seconds.

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// Provider implements ports.DataProvider over a directory of CSV files.
type Provider struct {
	dir string
}

// NewProvider creates a provider rooted at dir.
func NewProvider(dir string) *Provider {
	return &Provider{dir: dir}
}

// Load reads, filters and validates one series per requested pair. Any
// missing or malformed series makes the whole load fail with
// domain.ErrDataUnavailable: the engine needs column-complete data for
// every pair before a run may start.
func (p *Provider) Load(ctx context.Context, symbols []string, timeframes []domain.Timeframe, from, to time.Time) (domain.DataSet, error) {
	data := make(domain.DataSet, len(symbols)*len(timeframes))

	for _, sym := range symbols {
		for _, tf := range timeframes {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("csvdata.Load: %w", err)
			}

			series, err := p.loadSeries(sym, tf, from, to)
			if err != nil {
				return nil, fmt.Errorf("csvdata.Load: %w: %w", domain.ErrDataUnavailable, err)
			}
			data[series.Key()] = series
		}
	}
	return data, nil
}

func (p *Provider) loadSeries(symbol string, tf domain.Timeframe, from, to time.Time) (domain.Series, error) {
	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", symbol, tf))
	f, err := os.Open(path)
	if err != nil {
		return domain.Series{}, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return domain.Series{}, fmt.Errorf("read header of %q: %w", path, err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return domain.Series{}, fmt.Errorf("%q: %w", path, err)
	}

	series := domain.Series{Symbol: symbol, Timeframe: tf}
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.Series{}, fmt.Errorf("read %q line %d: %w", path, line, err)
		}
		line++

		candle, err := parseCandle(record, cols)
		if err != nil {
			return domain.Series{}, fmt.Errorf("parse %q line %d: %w", path, line, err)
		}
		if candle.Timestamp.Before(from) || candle.Timestamp.After(to) {
			continue
		}
		series.Candles = append(series.Candles, candle)
	}

	if err := series.Validate(); err != nil {
		return domain.Series{}, err
	}
	slog.Debug("csvdata: loaded series",
		"series", series.Key().String(),
		"candles", len(series.Candles),
	)
	return series, nil
}

var requiredColumns = []string{"timestamp", "open", "high", "low", "close", "volume"}

// columnIndex maps the required OHLCV columns to their positions,
// tolerating reordered or extra columns.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}
	return idx, nil
}

func parseCandle(record []string, cols map[string]int) (domain.Candle, error) {
	ts, err := parseTimestamp(record[cols["timestamp"]])
	if err != nil {
		return domain.Candle{}, err
	}

	values := make(map[string]float64, 5)
	for _, col := range requiredColumns[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[cols[col]]), 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("column %q: %w", col, err)
		}
		values[col] = v
	}

	return domain.Candle{
		Timestamp: ts,
		Open:      values["open"],
		High:      values["high"],
		Low:       values["low"],
		Close:     values["close"],
		Volume:    values["volume"],
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}
