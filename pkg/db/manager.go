package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Lifecycle:
//   1. Call NewManager(config, log) once at application startup
//   2. Share the returned Manager between the repositories
//   3. Call Close() at shutdown to release the connection

// NewManager creates a new database manager instance with full configuration
func NewManager(config *Config, log *logrus.Entry) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("database", config.Redacted())

	dialector, err := config.dialector()
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		SkipDefaultTransaction:                   config.SkipDefaultTransaction,
		DisableForeignKeyConstraintWhenMigrating: config.DisableForeignKeyConstraintWhenMigrating,
		PrepareStmt:                              config.PrepareStmt,
		TranslateError:                           true,
		Logger:                                   newGormLogger(log, config.Logging),
	}

	gdb, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	if config.IsMemory() {
		// Recycling the only connection would discard the database.
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	m := &Manager{
		config: config,
		db:     gdb,
		log:    log,
	}
	m.name = m.resolveName()

	log.WithField("name", m.name).Debug("database connection opened")
	return m, nil
}

// dialector selects the GORM dialect for the configured driver
func (c *Config) dialector() (gorm.Dialector, error) {
	switch c.driver() {
	case DriverMySQL:
		dsn, err := c.GetDSN()
		if err != nil {
			return nil, fmt.Errorf("failed to build mysql dsn: %w", err)
		}
		return gormmysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(c.SQLiteDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// DB returns the GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Logger returns the entry repositories should derive their loggers from
func (m *Manager) Logger() *logrus.Entry {
	return m.log
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Ping tests the database connection
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection statistics
func (m *Manager) Stats() (sql.DBStats, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}

// DatabaseName returns a short name that isolates cache keys per database.
// Each in-memory database gets its own name.
func (m *Manager) DatabaseName() string {
	return m.name
}

func (m *Manager) resolveName() string {
	switch m.config.driver() {
	case DriverMySQL:
		if m.config.Database != "" {
			return m.config.Database
		}
		if name := m.db.Migrator().CurrentDatabase(); name != "" {
			return name
		}
	case DriverSQLite:
		if m.config.IsMemory() {
			return "memory_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		}
		name := filepath.Base(strings.SplitN(m.config.Path, "?", 2)[0])
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return "default_db"
}

// newGormLogger routes GORM's statement log through logrus
func newGormLogger(log *logrus.Entry, cfg LoggingConfig) logger.Interface {
	return logger.New(log, logger.Config{
		SlowThreshold:             cfg.SlowQueryThreshold,
		LogLevel:                  getLogLevel(cfg.Level),
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      !cfg.LogQueryParameters,
		Colorful:                  false,
	})
}

func getLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Error
	}
}
