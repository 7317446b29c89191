package csvdata_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/backsim/internal/adapters/csvdata"
	"github.com/alejandrodnm/backsim/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_HappyPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BTC_1h.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2024-01-01T00:00:00Z,100,110,90,105,1000\n"+
			"2024-01-01T01:00:00Z,105,115,100,110,1200\n")

	p := csvdata.NewProvider(dir)
	data, err := p.Load(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
	require.NoError(t, err)

	series, ok := data[domain.SeriesKey{Symbol: "BTC", Timeframe: domain.TF1h}]
	require.True(t, ok)
	require.Len(t, series.Candles, 2)
	assert.Equal(t, from, series.Candles[0].Timestamp)
	assert.Equal(t, 105.0, series.Candles[0].Close)
	assert.Equal(t, 1200.0, series.Candles[1].Volume)
}

func TestLoad_ReorderedAndExtraColumns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BTC_1h.csv",
		"close,volume,timestamp,open,high,low,quote_volume\n"+
			"105,1000,2024-01-01T00:00:00Z,100,110,90,55\n")

	p := csvdata.NewProvider(dir)
	data, err := p.Load(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
	require.NoError(t, err)

	candle := data[domain.SeriesKey{Symbol: "BTC", Timeframe: domain.TF1h}].Candles[0]
	assert.Equal(t, 100.0, candle.Open)
	assert.Equal(t, 105.0, candle.Close)
}

func TestLoad_UnixTimestamps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BTC_1h.csv",
		"timestamp,open,high,low,close,volume\n"+
			"1704067200,100,110,90,105,1000\n") // 2024-01-01T00:00:00Z

	p := csvdata.NewProvider(dir)
	data, err := p.Load(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
	require.NoError(t, err)
	assert.Equal(t, from, data[domain.SeriesKey{Symbol: "BTC", Timeframe: domain.TF1h}].Candles[0].Timestamp)
}

func TestLoad_RangeFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "BTC_1h.csv",
		"timestamp,open,high,low,close,volume\n"+
			"2023-12-31T23:00:00Z,90,95,85,92,500\n"+
			"2024-01-01T00:00:00Z,100,110,90,105,1000\n"+
			"2024-01-03T00:00:00Z,120,125,115,122,800\n")

	p := csvdata.NewProvider(dir)
	data, err := p.Load(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
	require.NoError(t, err)

	series := data[domain.SeriesKey{Symbol: "BTC", Timeframe: domain.TF1h}]
	require.Len(t, series.Candles, 1)
	assert.Equal(t, 105.0, series.Candles[0].Close)
}

func TestLoad_MissingFile(t *testing.T) {
	p := csvdata.NewProvider(t.TempDir())
	_, err := p.Load(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
}

func TestLoad_BadData(t *testing.T) {
	cases := map[string]string{
		"missing column": "timestamp,open,high,low,close\n2024-01-01T00:00:00Z,100,110,90,105\n",
		"bad timestamp":  "timestamp,open,high,low,close,volume\nyesterday,100,110,90,105,1000\n",
		"bad number":     "timestamp,open,high,low,close,volume\n2024-01-01T00:00:00Z,100,110,90,many,1000\n",
		"out of order": "timestamp,open,high,low,close,volume\n" +
			"2024-01-01T01:00:00Z,100,110,90,105,1000\n" +
			"2024-01-01T00:00:00Z,100,110,90,105,1000\n",
		"empty after filter": "timestamp,open,high,low,close,volume\n2020-01-01T00:00:00Z,100,110,90,105,1000\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "BTC_1h.csv", content)

			p := csvdata.NewProvider(dir)
			_, err := p.Load(context.Background(), []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrDataUnavailable))
		})
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := csvdata.NewProvider(t.TempDir())
	_, err := p.Load(ctx, []string{"BTC"}, []domain.Timeframe{domain.TF1h}, from, to)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
