package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/invoiced/backend/internal/infrastructure/config"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"github.com/invoiced/backend/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the Postgres connection pool, bridges GORM logging to
// zap and installs the tenant guard callbacks
func NewDatabase(cfg *config.DatabaseConfig, log *zap.Logger, logLevel string, guard *tenant.Guard) (*Database, error) {
	gl := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel),
		logger.WithExpectedErrors(IsExpectedError))

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return Wrap(db, guard)
}

// Wrap installs the tenant guard callbacks on an already opened connection
func Wrap(db *gorm.DB, guard *tenant.Guard) (*Database, error) {
	if err := tenant.Register(db, guard); err != nil {
		return nil, fmt.Errorf("failed to register tenant callbacks: %w", err)
	}
	return &Database{DB: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Silent returns a session that does not log, for health probes
func (d *Database) Silent() *gorm.DB {
	return d.DB.Session(&gorm.Session{Logger: gormlogger.Discard})
}
