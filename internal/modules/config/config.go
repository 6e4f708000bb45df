package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const configFilePathENV = "CONFIG_FILE"

type TrendConfig struct {
	Method               string  `mapstructure:"method"`         // ema | savgol | kalman
	EMAWindow            int     `mapstructure:"ema_window"`
	SmoothWindow         int     `mapstructure:"smooth_window"`  // savgol only
	PolyOrder            int     `mapstructure:"polyorder"`      // savgol only
	Deadband             float64 `mapstructure:"deadband"`       // kalman only
	KalmanProcessVar     float64 `mapstructure:"kalman_process_var"`
	KalmanMeasurementVar float64 `mapstructure:"kalman_measurement_var"`
}

type StopLossConfig struct {
	Window        int     `mapstructure:"window"`
	ATRMultiplier float64 `mapstructure:"atr_multiplier"`
}

type ScheduleConfig struct {
	IntervalSec int    `mapstructure:"interval_sec"`
	Cron        string `mapstructure:"cron"` // takes precedence when set
}

type ExchangeConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
	WSURL     string `mapstructure:"ws_url"`
}

type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

type JaegerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config ...
type Config struct {
	Symbols       []string `mapstructure:"symbols"`
	Timeframe     string   `mapstructure:"timeframe"`
	Leverage      int      `mapstructure:"leverage"`
	MarginMode    string   `mapstructure:"margin_mode"`
	NotionalValue float64  `mapstructure:"notional_value"`
	EnableTrading bool     `mapstructure:"enable_trading"`
	OHLCVLimit    int      `mapstructure:"ohlcv_limit"`

	Schedule ScheduleConfig `mapstructure:"schedule"`
	Trend    TrendConfig    `mapstructure:"trend"`
	StopLoss StopLossConfig `mapstructure:"stop_loss"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Jaeger   JaegerConfig   `mapstructure:"jaeger"`

	DB         string `mapstructure:"db_dsn"`
	HealthAddr string `mapstructure:"health_addr"`
	LogLevel   string `mapstructure:"log_level"`
}

func NewConfig() (*Config, error) {
	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}

	v := viper.New()
	v.SetConfigFile("configs/" + configFileName)

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// прямые env-алиасы для секретов
	_ = v.BindEnv("exchange.api_key", "EXCHANGE_API_KEY")
	_ = v.BindEnv("exchange.api_secret", "EXCHANGE_API_SECRET")
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("db_dsn", "DATABASE_DSN")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", configFileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("timeframe", "1m")
	v.SetDefault("leverage", 3)
	v.SetDefault("margin_mode", "cross")
	v.SetDefault("ohlcv_limit", 200)
	v.SetDefault("schedule.interval_sec", 60)

	v.SetDefault("trend.method", "savgol")
	v.SetDefault("trend.ema_window", 8)
	v.SetDefault("trend.smooth_window", 13)
	v.SetDefault("trend.polyorder", 5)
	v.SetDefault("trend.deadband", 0.1)

	v.SetDefault("stop_loss.window", 8)
	v.SetDefault("stop_loss.atr_multiplier", 1.4)

	v.SetDefault("exchange.base_url", "https://fapi.binance.com")
	v.SetDefault("exchange.ws_url", "wss://fstream.binance.com")

	v.SetDefault("health_addr", ":8080")
	v.SetDefault("log_level", "info")
}

// Validate enforces the startup invariants. Anything failing here is a
// configuration error and must kill the process, never be defaulted away.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return errors.New("config: symbols must not be empty")
	}
	if c.NotionalValue <= 0 {
		return errors.New("config: notional_value must be > 0")
	}
	if c.Leverage < 1 {
		return errors.New("config: leverage must be >= 1")
	}
	if c.MarginMode != "cross" && c.MarginMode != "isolated" {
		return errors.Errorf("config: unknown margin_mode %q", c.MarginMode)
	}

	switch c.Trend.Method {
	case "ema":
		if c.Trend.EMAWindow < 1 {
			return errors.New("config: trend.ema_window must be >= 1")
		}
	case "savgol":
		if c.Trend.EMAWindow < 1 {
			return errors.New("config: trend.ema_window must be >= 1")
		}
		if c.Trend.SmoothWindow <= c.Trend.PolyOrder {
			return errors.Errorf(
				"config: trend.smooth_window (%d) must exceed trend.polyorder (%d)",
				c.Trend.SmoothWindow, c.Trend.PolyOrder,
			)
		}
		if c.Trend.SmoothWindow <= c.Trend.EMAWindow {
			return errors.Errorf(
				"config: trend.smooth_window (%d) must exceed trend.ema_window (%d)",
				c.Trend.SmoothWindow, c.Trend.EMAWindow,
			)
		}
	case "kalman":
		if c.Trend.Deadband < 0 {
			return errors.New("config: trend.deadband must be >= 0")
		}
	default:
		return errors.Errorf("config: unknown trend.method %q", c.Trend.Method)
	}

	if c.StopLoss.Window < 1 {
		return errors.New("config: stop_loss.window must be >= 1")
	}
	if c.StopLoss.ATRMultiplier <= 0 {
		return errors.New("config: stop_loss.atr_multiplier must be > 0")
	}

	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return errors.Wrapf(err, "config: bad cron expression %q", c.Schedule.Cron)
		}
	} else if c.Schedule.IntervalSec <= 0 {
		return errors.New("config: schedule.interval_sec must be > 0 when no cron is set")
	}

	return nil
}
