package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
	DriverRedis  = "redis"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	GRPCPort string `mapstructure:"GRPC_PORT"`
	Env      string `mapstructure:"APP_ENV"` // development | production

	// Storage
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DataFile    string `mapstructure:"DATA_FILE"`
	MySQLDSN    string `mapstructure:"MYSQL_DSN"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	Idempotency string `mapstructure:"IDEMPOTENCY"` // redis | memory | none

	// Business
	LowStockThreshold int `mapstructure:"LOW_STOCK_THRESHOLD"`
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables (and optional .env file).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	v.SetDefault("HTTP_PORT", ":5000")
	v.SetDefault("GRPC_PORT", ":50051")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("STORE_DRIVER", DriverFile)
	v.SetDefault("DATA_FILE", "data/database.json")
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/stockledger?parseTime=true")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("IDEMPOTENCY", DriverMemory)
	v.SetDefault("LOW_STOCK_THRESHOLD", 5)
	v.AutomaticEnv()

	// Optional .env file for local development; missing is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.Idempotency = strings.ToLower(cfg.Idempotency)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverFile, DriverMemory, DriverMySQL, DriverRedis:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.Idempotency {
	case DriverMemory, DriverRedis, "none":
	default:
		return fmt.Errorf("unknown IDEMPOTENCY %q", c.Idempotency)
	}
	if c.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must be >= 0, got %d", c.LowStockThreshold)
	}
	return nil
}
