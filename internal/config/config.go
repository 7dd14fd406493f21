package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Database drivers understood by the database manager.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration
type Config struct {
	Env  string
	Port string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Ledger engine
	VerifyInvariants     bool
	UnitOfWorkMaxRetries int
	ReconcileConcurrency int

	// OperatorAPIKey guards the operator routes; empty disables them.
	OperatorAPIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if present; real environment variables win.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBDriver:   getEnv("DB_DRIVER", DriverPostgres),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tally"),
		DBPassword: getEnv("DB_PASSWORD", "tally"),
		DBName:     getEnv("DB_NAME", "tally"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "tally.db"),

		OperatorAPIKey: os.Getenv("OPERATOR_API_KEY"),
	}

	var err error
	if cfg.VerifyInvariants, err = getBool("VERIFY_INVARIANTS", true); err != nil {
		return nil, err
	}
	if cfg.UnitOfWorkMaxRetries, err = getInt("UOW_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.ReconcileConcurrency, err = getInt("RECONCILE_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	if cfg.DBDriver != DriverPostgres && cfg.DBDriver != DriverSQLite {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use %s or %s)", cfg.DBDriver, DriverPostgres, DriverSQLite)
	}
	if cfg.UnitOfWorkMaxRetries < 1 {
		cfg.UnitOfWorkMaxRetries = 1
	}
	if cfg.ReconcileConcurrency < 1 {
		cfg.ReconcileConcurrency = 1
	}

	return cfg, nil
}

// PostgresDSN returns the key/value connection string used by gorm.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// PostgresURL returns the URL form expected by golang-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}
