package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of a backtest run. Immutable after
// Load: components receive the values they need at construction time.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Account  AccountConfig  `yaml:"account"`
	Risk     RiskConfig     `yaml:"risk"`
	Strategy StrategyConfig `yaml:"strategy"`
	Data     DataConfig     `yaml:"data"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig selects what to simulate.
type BacktestConfig struct {
	Symbols    []string `yaml:"symbols"`
	Timeframes []string `yaml:"timeframes"`
	Start      string   `yaml:"start"` // RFC3339 or 2006-01-02
	End        string   `yaml:"end"`
	RiskFree   float64  `yaml:"risk_free_rate"` // annualized, for Sharpe/Sortino
}

// AccountConfig fixes the simulated account.
type AccountConfig struct {
	InitialBalance     float64 `yaml:"initial_balance"`
	MaxPositions       int     `yaml:"max_positions"`
	MaxRiskPerTrade    float64 `yaml:"max_risk_per_trade"`
	MaxPortfolioRisk   float64 `yaml:"max_portfolio_risk"`
	DefaultStopLossPct float64 `yaml:"default_stop_loss_pct"`
}

// RiskConfig selects the sizing policy.
type RiskConfig struct {
	SizingStrategy      string  `yaml:"sizing_strategy"` // fixed_percentage | volatility_based | kelly_criterion
	MaxNotionalFrac     float64 `yaml:"max_notional_frac"`
	KellyCapFrac        float64 `yaml:"kelly_cap_frac"`
	ReferenceVolatility float64 `yaml:"reference_volatility"`
}

// StrategyConfig selects and tunes the signal strategy.
type StrategyConfig struct {
	Name          string  `yaml:"name"` // sma_crossover | rsi_reversion
	FastPeriod    int     `yaml:"fast_period"`
	SlowPeriod    int     `yaml:"slow_period"`
	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
}

// DataConfig points at the historical data.
type DataConfig struct {
	Dir string `yaml:"dir"` // directory of <SYMBOL>_<timeframe>.csv files
}

// StorageConfig controls run persistence.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, ":memory:", or "" to disable
}

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config file, loading a .env first if one exists.
// Env vars override the matching YAML keys.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Account.InitialBalance <= 0 {
		cfg.Account.InitialBalance = 10000
	}
	if cfg.Account.MaxPositions < 1 {
		cfg.Account.MaxPositions = 5
	}
	if cfg.Account.MaxRiskPerTrade <= 0 {
		cfg.Account.MaxRiskPerTrade = 0.02
	}
	if cfg.Account.MaxPortfolioRisk <= 0 {
		cfg.Account.MaxPortfolioRisk = 0.10
	}
	if cfg.Account.DefaultStopLossPct <= 0 {
		cfg.Account.DefaultStopLossPct = 0.02
	}
	if cfg.Risk.SizingStrategy == "" {
		cfg.Risk.SizingStrategy = "fixed_percentage"
	}
	if cfg.Strategy.Name == "" {
		cfg.Strategy.Name = "sma_crossover"
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "data"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
