package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Symbol          string        `mapstructure:"SYMBOL"`
	Timeframe       string        `mapstructure:"TIMEFRAME"`
	InitialBalance  float64       `mapstructure:"INITIAL_BALANCE"`
	PollInterval    time.Duration `mapstructure:"POLL_INTERVAL"`
	CandleLimit     int           `mapstructure:"CANDLE_LIMIT"`
	Strategy        string        `mapstructure:"STRATEGY"`
	RSIPeriod       int           `mapstructure:"RSI_PERIOD"`
	MACDFast        int           `mapstructure:"MACD_FAST"`
	MACDSlow        int           `mapstructure:"MACD_SLOW"`
	MACDSignal      int           `mapstructure:"MACD_SIGNAL"`
	RSIOversold     float64       `mapstructure:"RSI_OVERSOLD"`
	RSIOverbought   float64       `mapstructure:"RSI_OVERBOUGHT"`
	ChartCapacity   int           `mapstructure:"CHART_CAPACITY"`
	HistoryLimit    int           `mapstructure:"HISTORY_LIMIT"`
	Exchange        string        `mapstructure:"EXCHANGE"`
	ExchangeURL     string        `mapstructure:"EXCHANGE_URL"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	NatsURL         string        `mapstructure:"NATS_URL"`
	DB_DSN          string        `mapstructure:"DB_DSN"`
	DispatchWorkers int           `mapstructure:"DISPATCH_WORKERS"`
}

func LoadConfig() (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SYMBOL", "BTC/USDT")
	v.SetDefault("TIMEFRAME", "1m")
	v.SetDefault("INITIAL_BALANCE", 10000.0)
	v.SetDefault("POLL_INTERVAL", "15s")
	v.SetDefault("CANDLE_LIMIT", 100)
	v.SetDefault("STRATEGY", "rsi_macd")
	v.SetDefault("RSI_PERIOD", 14)
	v.SetDefault("MACD_FAST", 12)
	v.SetDefault("MACD_SLOW", 26)
	v.SetDefault("MACD_SIGNAL", 9)
	v.SetDefault("RSI_OVERSOLD", 35.0)
	v.SetDefault("RSI_OVERBOUGHT", 65.0)
	v.SetDefault("CHART_CAPACITY", 100)
	v.SetDefault("HISTORY_LIMIT", 0)
	v.SetDefault("EXCHANGE", "binance")
	v.SetDefault("EXCHANGE_URL", "")
	v.SetDefault("PORT", "5000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("NATS_URL", "")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("DISPATCH_WORKERS", 1)

	err = v.ReadInConfig()
	// If config file not found, we can still use env vars
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil
	}
	if err != nil {
		return Config{}, err
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, err
	}
	if err = config.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c Config) Validate() error {
	if c.Symbol == "" {
		return errors.New("SYMBOL is required")
	}
	if c.Timeframe == "" {
		return errors.New("TIMEFRAME is required")
	}
	if c.InitialBalance < 0 {
		return fmt.Errorf("INITIAL_BALANCE must not be negative, got %v", c.InitialBalance)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.CandleLimit < 2 {
		return fmt.Errorf("CANDLE_LIMIT must be at least 2, got %d", c.CandleLimit)
	}
	if c.ChartCapacity <= 0 {
		return fmt.Errorf("CHART_CAPACITY must be positive, got %d", c.ChartCapacity)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must not be negative, got %d", c.HistoryLimit)
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be at least 1, got %d", c.DispatchWorkers)
	}
	return nil
}

// StrategyConfig is the raw config handed to the strategy factory.
func (c Config) StrategyConfig() map[string]interface{} {
	return map[string]interface{}{
		"oversold":   c.RSIOversold,
		"overbought": c.RSIOverbought,
	}
}
