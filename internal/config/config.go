package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/simaogato/budgetpool-backend/internal/domain"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the server settings read from the environment
type Config struct {
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":8080"`
	APIToken string `env:"API_TOKEN" envDefault:"dev-token"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/budgetpool.db"`

	// DBConnStr takes precedence over the individual DB_* variables
	DBConnStr  string `env:"DB_CONN_STR"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName     string `env:"DB_NAME" envDefault:"budgetpool"`

	AmountCeiling       decimal.Decimal `env:"AMOUNT_CEILING" envDefault:"10000"`
	PurchaseMaxAttempts int             `env:"PURCHASE_MAX_ATTEMPTS" envDefault:"3"`
	PurchaseTimeout     time.Duration   `env:"PURCHASE_TIMEOUT" envDefault:"5s"`

	// SeedSampleData loads the demo teams, budgets and transactions at startup
	SeedSampleData bool `env:"SEED_SAMPLE_DATA" envDefault:"false"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"budgetpool"`
}

// Load parses the environment and validates the result
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values env.Parse cannot
func (c *Config) Validate() error {
	if c.StoreDriver != DriverPostgres && c.StoreDriver != DriverSQLite {
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.StoreDriver == DriverSQLite && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for the sqlite driver")
	}

	if c.AmountCeiling.LessThanOrEqual(decimal.Zero) {
		return errors.New("AMOUNT_CEILING must be greater than 0")
	}

	if !domain.HasMonetaryPrecision(c.AmountCeiling) {
		return errors.New("AMOUNT_CEILING cannot have more than 2 decimal places")
	}

	if c.PurchaseMaxAttempts < 1 {
		return errors.New("PURCHASE_MAX_ATTEMPTS must be at least 1")
	}

	if c.PurchaseTimeout <= 0 {
		return errors.New("PURCHASE_TIMEOUT must be positive")
	}

	return nil
}

// PostgresConnString returns DB_CONN_STR or builds one from the DB_* variables
func (c *Config) PostgresConnString() string {
	if c.DBConnStr != "" {
		return c.DBConnStr
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
