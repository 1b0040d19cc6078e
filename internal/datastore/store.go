// Package datastore persists the photo cache and the wallpaper history
// through GORM on SQLite (default) or MySQL.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/iscle/haven-go/internal/conf"
	"github.com/iscle/haven-go/internal/errors"
	"github.com/iscle/haven-go/internal/logger"
	"github.com/iscle/haven-go/internal/observability/metrics"
)

const (
	dialectSQLite = "sqlite"
	dialectMySQL  = "mysql"

	// MemoryPath opens a private in-memory SQLite database.
	MemoryPath = ":memory:"

	defaultSlowQueryThreshold = 200 * time.Millisecond
)

// Store owns the database connection shared by the repositories.
type Store struct {
	db       *gorm.DB
	dialect  string
	location string
	log      logger.Logger
	metrics  *metrics.DatastoreMetrics
}

type storeOptions struct {
	log           logger.Logger
	metrics       *metrics.DatastoreMetrics
	slowThreshold time.Duration
}

// Option configures a Store.
type Option func(*storeOptions)

// WithLogger sets the store logger. SQL is traced through it.
func WithLogger(l logger.Logger) Option {
	return func(o *storeOptions) { o.log = l }
}

// WithMetrics enables operation metrics.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(o *storeOptions) { o.metrics = m }
}

// WithSlowQueryThreshold sets the duration above which queries are logged at WARN.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(o *storeOptions) { o.slowThreshold = d }
}

func buildOptions(opts []Option) storeOptions {
	o := storeOptions{slowThreshold: defaultSlowQueryThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Global().Module("datastore")
	}
	return o
}

// Open opens the store selected in settings and migrates the schema.
func Open(settings *conf.Settings, opts ...Option) (*Store, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return OpenSQLite(settings.Output.SQLite.Path, opts...)
	case settings.Output.MySQL.Enabled:
		return OpenMySQL(&settings.Output.MySQL, opts...)
	default:
		return nil, errors.New(ErrStoreNotConfigured).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
// MemoryPath or an empty path opens a private in-memory database.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)

	inMemory := path == "" || path == MemoryPath
	dsn := MemoryPath
	location := MemoryPath
	if !inMemory {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, dbError(err, "resolve_path", "path", path)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", absPath).
				Build()
		}
		location = absPath
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", absPath)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(o.log, o.slowThreshold),
	})
	if err != nil {
		return nil, dbError(err, "open", "dialect", dialectSQLite, "path", location)
	}

	if inMemory {
		// Every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "open", "dialect", dialectSQLite)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return newStore(db, dialectSQLite, location, o)
}

// OpenMySQL connects to the MySQL database described by cfg.
func OpenMySQL(cfg *conf.MySQLSettings, opts ...Option) (*Store, error) {
	o := buildOptions(opts)

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	location := fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(o.log, o.slowThreshold),
	})
	if err != nil {
		o.log.Error("failed to open MySQL database",
			logger.String("host", cfg.Host),
			logger.String("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Error(err))
		return nil, dbError(err, "open", "dialect", dialectMySQL, "location", location)
	}

	return newStore(db, dialectMySQL, location, o)
}

func newStore(db *gorm.DB, dialect, location string, o storeOptions) (*Store, error) {
	s := &Store{
		db:       db,
		dialect:  dialect,
		location: location,
		log:      o.log,
		metrics:  o.metrics,
	}

	if err := db.AutoMigrate(allEntities()...); err != nil {
		_ = s.Close()
		return nil, dbError(err, "migrate", "dialect", dialect)
	}

	s.log.Info("datastore opened",
		logger.String("dialect", dialect),
		logger.String("location", location))

	return s, nil
}

// DB returns the underlying GORM database.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Location returns the database file path or MySQL address.
func (s *Store) Location() string {
	return s.location
}

// IsMySQL returns true for MySQL stores.
func (s *Store) IsMySQL() bool {
	return s.dialect == dialectMySQL
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	s.log.Debug("datastore closed", logger.String("location", s.location))
	return nil
}

// observe records the outcome of one repository operation.
func (s *Store) observe(operation, table string, start time.Time, err error) {
	s.metrics.RecordDbOperation(operation, table, err, time.Since(start).Seconds())
}
