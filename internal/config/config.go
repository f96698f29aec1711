package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LEDGER_HTTP_PORT
const EnvPrefix = "LEDGER"

// Config holds all configuration for the ledger services
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Log      LogConfig      `mapstructure:"log"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

// HTTPConfig holds the API server settings
type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds the journal database settings. An empty driver disables the journal.
type DatabaseConfig struct {
	// postgres or mysql
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// MongoConfig holds the transaction archive settings. An empty URI disables the archive.
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// RabbitMQConfig holds the event queue settings. An empty URI disables publishing.
type RabbitMQConfig struct {
	URI   string `mapstructure:"uri"`
	Queue string `mapstructure:"queue"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// SeedConfig names a bank created at startup. An empty name skips seeding.
type SeedConfig struct {
	BankName                    string `mapstructure:"bank_name"`
	UnauthorizedWithdrawalLimit int64  `mapstructure:"unauthorized_withdrawal_limit"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Mongo: MongoConfig{
			Database: "ledger",
		},
		RabbitMQ: RabbitMQConfig{
			Queue: "transactions",
		},
		Log: LogConfig{
			Level:   "info",
			Console: true,
		},
		Seed: SeedConfig{
			BankName:                    "toybank",
			UnauthorizedWithdrawalLimit: 10000,
		},
	}
}

// New returns a viper instance that knows every key, reads LEDGER_* environment
// variables and, when path is not empty, the given config file.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return v, nil
}

// Load reads configuration from viper into a Config struct
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can find it during Unmarshal
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.dsn", cfg.Database.DSN)
	v.SetDefault("database.max_open_conns", cfg.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", cfg.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", cfg.Database.ConnMaxLifetime)

	v.SetDefault("mongo.uri", cfg.Mongo.URI)
	v.SetDefault("mongo.database", cfg.Mongo.Database)

	v.SetDefault("rabbitmq.uri", cfg.RabbitMQ.URI)
	v.SetDefault("rabbitmq.queue", cfg.RabbitMQ.Queue)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.console", cfg.Log.Console)

	v.SetDefault("seed.bank_name", cfg.Seed.BankName)
	v.SetDefault("seed.unauthorized_withdrawal_limit", cfg.Seed.UnauthorizedWithdrawalLimit)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Port == "" {
		errs = append(errs, "http.port is required")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		errs = append(errs, "http read and write timeouts must be positive")
	}

	switch c.Database.Driver {
	case "":
	case "postgres", "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required when database.driver is set")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be postgres or mysql (got %q)", c.Database.Driver))
	}
	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, "database.max_open_conns must be >= 1")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "database.max_idle_conns should not exceed max_open_conns")
	}

	if c.Mongo.URI != "" && c.Mongo.Database == "" {
		errs = append(errs, "mongo.database is required when mongo.uri is set")
	}
	if c.RabbitMQ.URI != "" && c.RabbitMQ.Queue == "" {
		errs = append(errs, "rabbitmq.queue is required when rabbitmq.uri is set")
	}

	if c.Seed.UnauthorizedWithdrawalLimit < 0 {
		errs = append(errs, "seed.unauthorized_withdrawal_limit must be non-negative")
	}

	if len(errs) > 0 {
		return errors.New("validation errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}
