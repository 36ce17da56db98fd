package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Alpaca   Alpaca   `mapstructure:"alpaca"`
	Trading  Trading  `mapstructure:"trading"`
	Scraper  Scraper  `mapstructure:"scraper"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Alpaca holds the configuration for the Alpaca brokerage API.
type Alpaca struct {
	ApiKey      string `mapstructure:"api_key"`
	SecretKey   string `mapstructure:"secret_key"`
	BaseURL     string `mapstructure:"base_url"`
	DataBaseURL string `mapstructure:"data_base_url"`
}

// Trading holds the thresholds and cadence for the trading logic.
type Trading struct {
	MinValue               float64 `mapstructure:"min_value"`
	MinInsiders            int     `mapstructure:"min_insiders"`
	MinOwnChange           float64 `mapstructure:"min_own_change"`
	GainThreshold          float64 `mapstructure:"gain_threshold"`
	DropThreshold          float64 `mapstructure:"drop_threshold"`
	MaxPositionFraction    float64 `mapstructure:"max_position_fraction"`
	CycleDelaySeconds      int     `mapstructure:"cycle_delay_seconds"`
	MonitorIntervalSeconds int     `mapstructure:"monitor_interval_seconds"`
}

// Scraper holds the configuration for the OpenInsider scraper.
type Scraper struct {
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Server holds the configuration for the control HTTP server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the trade journal database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables and
// validates the settings the bot cannot run without.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("alpaca.base_url", "https://paper-api.alpaca.markets")
	viper.SetDefault("trading.min_value", 100000)
	viper.SetDefault("trading.min_insiders", 2)
	viper.SetDefault("trading.min_own_change", 5)
	viper.SetDefault("trading.gain_threshold", 20)
	viper.SetDefault("trading.drop_threshold", 10)
	viper.SetDefault("trading.max_position_fraction", 0.2)
	viper.SetDefault("trading.cycle_delay_seconds", 300)
	viper.SetDefault("trading.monitor_interval_seconds", 60)
	viper.SetDefault("scraper.rate_limit", 1) // requests per second
	viper.SetDefault("scraper.rate_limit_burst", 1)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "file::memory:?cache=shared")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	err = config.Validate()
	return
}

// Validate reports the first fatal configuration error, if any. The process
// must not start trading with credentials missing or nonsensical thresholds.
func (c *Config) Validate() error {
	if c.Alpaca.ApiKey == "" || c.Alpaca.SecretKey == "" {
		return fmt.Errorf("alpaca.api_key and alpaca.secret_key are required")
	}
	if c.Trading.MaxPositionFraction <= 0 || c.Trading.MaxPositionFraction > 1 {
		return fmt.Errorf("trading.max_position_fraction must be in (0, 1], got %v", c.Trading.MaxPositionFraction)
	}
	if c.Trading.GainThreshold <= 0 || c.Trading.DropThreshold <= 0 {
		return fmt.Errorf("trading.gain_threshold and trading.drop_threshold must be positive")
	}
	if c.Trading.CycleDelaySeconds <= 0 || c.Trading.MonitorIntervalSeconds <= 0 {
		return fmt.Errorf("trading cycle delay and monitor interval must be positive")
	}
	return nil
}
