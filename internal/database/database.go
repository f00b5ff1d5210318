package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/sheetsync/internal/entities"
)

type Database struct {
	DB *gorm.DB
}

// Option adjusts the gorm configuration used by NewDatabase.
type Option func(*gorm.Config)

// WithLogLevel overrides the gorm log level (default: Warn).
func WithLogLevel(level logger.LogLevel) Option {
	return func(c *gorm.Config) {
		c.Logger = logger.Default.LogMode(level)
	}
}

func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(sqlite.Open(dsn(dbPath)), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return &Database{DB: db}, nil
}

// dsn opens transactions with BEGIN IMMEDIATE. A deferred transaction that
// reads before writing cannot wait out a concurrent writer: its lock upgrade
// fails with "database is locked" regardless of _busy_timeout.
func dsn(path string) string {
	return path + "?_busy_timeout=5000&_txlock=immediate"
}

// Migrate creates or updates every table and index the service uses.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.SyncStatusRecord{},
		&entities.Metric{},
		&entities.MetricConfig{},
		&entities.ClientMembership{},
		&entities.SyncSource{},
		&entities.OAuthToken{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := createMetricIndexes(db); err != nil {
		return fmt.Errorf("failed to create metric indexes: %w", err)
	}
	return nil
}

// createMetricIndexes adds one partial unique index per source kind.
// gorm tags cannot express partial indexes, so they are created directly.
func createMetricIndexes(db *gorm.DB) error {
	for _, kind := range []entities.SourceKind{entities.SourceKindGoogleSheets, entities.SourceKindFileImport} {
		cols := kind.UniqueKeyColumns()
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s ON metrics (%s) WHERE %s",
			MetricIndexName(kind), strings.Join(names, ", "), kind.IndexPredicate(),
		)
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MetricIndexName is the partial unique index guarding metrics of kind.
func MetricIndexName(kind entities.SourceKind) string {
	return "idx_metrics_unique_" + string(kind)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the underlying connection is usable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
