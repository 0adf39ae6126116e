package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leadcrm/backend/internal/infrastructure/config"
	"github.com/leadcrm/backend/internal/infrastructure/persistence/models"
)

// sqliteDefaults turns on foreign keys and waits on a locked database instead of failing.
const sqliteDefaults = "_foreign_keys=on&_busy_timeout=5000"

// Database is the gorm handle the repositories share.
type Database struct {
	DB     *gorm.DB
	driver string
}

type Option func(*options)

type options struct {
	logger  logger.Interface
	plugins []func(*gorm.DB) error
}

// WithGormLogger replaces the default silent logger.
func WithGormLogger(l logger.Interface) Option {
	return func(o *options) { o.logger = l }
}

// WithPlugin runs register once the connection is up, for instance to install tracing.
func WithPlugin(register func(*gorm.DB) error) Option {
	return func(o *options) { o.plugins = append(o.plugins, register) }
}

// NewDatabase opens the configured driver. An empty driver means postgres.
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return newDatabase(sqlite.Open(sqliteDSN(cfg.Path)), cfg, opts...)
	case config.DriverPostgres, "":
		return newDatabase(postgres.Open(cfg.DSN()), cfg, opts...)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// sqliteDSN leaves a path that already has query parameters untouched.
func sqliteDSN(path string) string {
	switch {
	case path == "":
		path = ":memory:"
	case strings.Contains(path, "?"):
		return path
	}
	return path + "?" + sqliteDefaults
}

func newDatabase(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := options{logger: logger.Default.LogMode(logger.Silent)}
	for _, apply := range opts {
		apply(&o)
	}

	driver := dialector.Name()
	isSQLite := driver == config.DriverSQLite
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 o.logger,
		SkipDefaultTransaction: true,
		PrepareStmt:            !isSQLite,
		// postgres keeps microseconds; truncating keeps reloaded invoices equal
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	configurePool(sqlDB, cfg, isSQLite)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, register := range o.plugins {
		if err := register(db); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to register gorm plugin: %w", err)
		}
	}
	return &Database{DB: db, driver: driver}, nil
}

// configurePool pins sqlite to one connection: it has a single writer and
// every ":memory:" connection would otherwise be a separate empty database.
func configurePool(sqlDB *sql.DB, cfg *config.DatabaseConfig, isSQLite bool) {
	if isSQLite {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
}

// Driver is "postgres" or "sqlite".
func (d *Database) Driver() string { return d.driver }

// AutoMigrate builds the schema from the gorm models. It serves sqlite and
// tests; postgres runs the versioned SQL migrations.
func (d *Database) AutoMigrate(ctx context.Context) error {
	return d.DB.WithContext(ctx).AutoMigrate(models.All()...)
}

func (d *Database) sqlDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.DB.WithContext(ctx).Transaction(fn)
}
