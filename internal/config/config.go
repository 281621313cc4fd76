/**
 * @description
 * Configuration management for the banking service. Viper reads an
 * optional .env file and the process environment, applies defaults, and
 * unmarshals into a single Config struct handed to the constructors at
 * startup. No component reads the environment on its own.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration library.
 */
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every setting the service needs, loaded from the environment.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	TokenSecret          string `mapstructure:"TOKEN_SECRET"`
	TokenTTLMinutes      int    `mapstructure:"TOKEN_TTL_MINUTES"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	LedgerEventExchange  string `mapstructure:"LEDGER_EVENT_EXCHANGE"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RateLimitPrefix      string `mapstructure:"RATE_LIMIT_PREFIX"`
	TransferRatePerMin   int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	StartingBalanceMinor int64  `mapstructure:"STARTING_BALANCE_MINOR"`
	LockTimeoutMS        int    `mapstructure:"LOCK_TIMEOUT_MS"`
}

// LoadConfig reads configuration from the given path's optional .env file
// and from environment variables.
func LoadConfig(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("TOKEN_TTL_MINUTES", 30)
	viper.SetDefault("LEDGER_EVENT_EXCHANGE", "banking.events")
	viper.SetDefault("RATE_LIMIT_PREFIX", "banking:rate_limit")
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 0) // disabled unless set
	viper.SetDefault("STARTING_BALANCE_MINOR", 100000)    // 1000.00
	viper.SetDefault("LOCK_TIMEOUT_MS", 3000)

	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "TOKEN_SECRET", "TOKEN_TTL_MINUTES",
		"RABBITMQ_URL", "LEDGER_EVENT_EXCHANGE", "REDIS_URL", "RATE_LIMIT_PREFIX",
		"TRANSFER_RATE_LIMIT_PER_MINUTE", "STARTING_BALANCE_MINOR", "LOCK_TIMEOUT_MS",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.TokenSecret = strings.TrimSpace(cfg.TokenSecret)
	if cfg.TokenTTLMinutes <= 0 {
		cfg.TokenTTLMinutes = 30
	}
	if cfg.StartingBalanceMinor < 0 {
		cfg.StartingBalanceMinor = 0
	}
	if cfg.LockTimeoutMS <= 0 {
		cfg.LockTimeoutMS = 3000
	}
	return cfg, nil
}
