package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tally/internal/config"
	"tally/internal/logger"
	"tally/internal/models"
	"tally/internal/store"
)

// Manager handles database operations
type Manager struct {
	db            *gorm.DB
	driver        string
	migrationsURL string
	dsn           string
	maxAttempts   int
}

// NewManager opens the database named by cfg.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{driver: cfg.DBDriver, migrationsURL: "file://migrations", maxAttempts: cfg.UnitOfWorkMaxRetries}

	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath+"?_foreign_keys=1&_busy_timeout=5000"), gormCfg)
	default:
		m.dsn = cfg.PostgresURL()
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.PostgresDSN(),
			PreferSimpleProtocol: true, // Required for Supabase Supavisor; harmless for direct connections
		}), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if cfg.DBDriver == config.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	m.db = db
	return m, nil
}

// RunMigrations applies pending SQL migrations from the migrations/ directory.
// SQLite databases are migrated from the models instead.
func (m *Manager) RunMigrations() error {
	if m.driver == config.DriverSQLite {
		logger.Get().Info("Auto-migrating SQLite schema...")
		if err := m.db.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		return nil
	}

	logger.Get().Info("Running database migrations...")

	mig, err := migrate.New(m.migrationsURL, m.dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// Store returns the unit-of-work store over this database. PostgreSQL runs
// every unit of work serializable and retries conflicts.
func (m *Manager) Store() *store.GormStore {
	if m.driver == config.DriverSQLite {
		return store.NewGormStore(m.db)
	}
	return store.NewGormStore(m.db,
		store.WithIsolation(sql.LevelSerializable),
		store.WithMaxAttempts(m.maxAttempts),
	)
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.Category{},
		&models.Transaction{},
		&models.Budget{},
		&models.BudgetCategory{},
		&models.AuditLog{},
	}
}
