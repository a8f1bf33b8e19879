package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Currencies []string `mapstructure:"currencies" validate:"required,min=1"`
	Arbitrage  ArbitrageConfig
	Providers  map[string]ProviderConfig
	Exchanges  map[string]ExchangeConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	CSVDir     string `mapstructure:"csv_dir"`
}

// ArbitrageConfig defines the scan and fee-leg parameters.
type ArbitrageConfig struct {
	TradeAmount        float64 `mapstructure:"trade_amount" validate:"gt=0"`
	WithdrawalCurrency string  `mapstructure:"withdrawal_currency" validate:"required"`
	WithdrawalMethod   string  `mapstructure:"withdrawal_method" validate:"required"`
	ScanIntervalMS     int     `mapstructure:"scan_interval_ms" validate:"gte=0"`
	MaxPriceAgeSec     int     `mapstructure:"max_price_age_sec" validate:"gte=0"`
}

// ScanInterval is the minimum gap between scans; zero disables coalescing.
func (c ArbitrageConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMS) * time.Millisecond
}

// MaxPriceAge is the staleness window; zero keeps last prices forever.
func (c ArbitrageConfig) MaxPriceAge() time.Duration {
	return time.Duration(c.MaxPriceAgeSec) * time.Second
}

// ProviderConfig defines credentials for one data provider.
type ProviderConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ExchangeConfig overrides built-in trading fees for a specific exchange.
type ExchangeConfig struct {
	TradingFeeBuy  float64 `mapstructure:"trading_fee_buy" validate:"gte=0"`
	TradingFeeSell float64 `mapstructure:"trading_fee_sell" validate:"gte=0"`
	PaymentFee     float64 `mapstructure:"payment_fee" validate:"gte=0"`
}

// DatabaseConfig defines the database connection settings. An empty host
// disables the Postgres sink.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig defines the Redis republisher settings. An empty address
// disables it.
type RedisConfig struct {
	Addr    string
	Channel string
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("currencies", []string{"EUR", "GBP"})
	viper.SetDefault("arbitrage.trade_amount", 1.0)
	viper.SetDefault("arbitrage.withdrawal_currency", "USD")
	viper.SetDefault("arbitrage.withdrawal_method", "SWIFT")
	viper.SetDefault("arbitrage.scan_interval_ms", 250)
	viper.SetDefault("arbitrage.max_price_age_sec", 0)
	viper.SetDefault("redis.channel", "arbtrack.events")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	err = validator.New().Struct(config)
	return
}
