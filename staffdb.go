// Package staffdb persists departments, employees and their reviews
// through identity-mapped GORM repositories with an optional Redis row cache.
package staffdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/ammar0144/staffdb/pkg/config"
	"github.com/ammar0144/staffdb/pkg/db"
	"github.com/ammar0144/staffdb/pkg/hr"
	"github.com/ammar0144/staffdb/pkg/redis"
	"github.com/ammar0144/staffdb/pkg/repository"

	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
)

// Config represents the complete staffdb configuration
type Config = config.Config

// Error kinds returned by the repositories
var (
	ErrValidation           = repository.ErrValidation
	ErrNotPersisted         = repository.ErrNotPersisted
	ErrNotFound             = repository.ErrNotFound
	ErrReferentialViolation = repository.ErrReferentialViolation
)

// Store bundles the three repositories over one database connection
type Store struct {
	Departments *hr.Departments
	Employees   *hr.Employees
	Reviews     *hr.Reviews

	db    *db.Manager
	cache *redis.Manager
	log   *logrus.Entry
}

// Open connects to the database and, when enabled, to Redis
func Open(cfg *Config, scope tally.Scope) (*Store, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := logrus.NewEntry(cfg.NewLogger())

	dbm, err := db.NewManager(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	cache, err := redis.NewManager(&cfg.Redis, scope, log)
	if err != nil {
		_ = dbm.Close()
		return nil, err
	}

	return New(dbm, cache, scope, log), nil
}

// New builds a Store over existing managers. cache may be nil.
func New(dbm *db.Manager, cache *redis.Manager, scope tally.Scope, log *logrus.Entry) *Store {
	if log == nil {
		log = dbm.Logger()
	}
	if scope == nil {
		scope = tally.NoopScope
	}

	opts := repository.Options{Scope: scope, Logger: log}
	if cache.Enabled() {
		opts.Cache = cache
	}

	departments := hr.NewDepartments(dbm, opts)
	employees := hr.NewEmployees(dbm, departments, opts)
	reviews := hr.NewReviews(dbm, employees, opts)

	return &Store{
		Departments: departments,
		Employees:   employees,
		Reviews:     reviews,
		db:          dbm,
		cache:       cache,
		log:         log,
	}
}

// table is the schema lifecycle shared by every repository
type table interface {
	CreateTable(ctx context.Context) error
	DropTable(ctx context.Context) error
}

// tables lists the repositories in foreign key order
func (s *Store) tables() []table {
	return []table{s.Departments, s.Employees, s.Reviews}
}

// CreateTables creates departments, employees and reviews, skipping existing tables
func (s *Store) CreateTables(ctx context.Context) error {
	for _, t := range s.tables() {
		if err := t.CreateTable(ctx); err != nil {
			return err
		}
	}
	s.log.Debug("schema ready")
	return nil
}

// DropTables drops the tables in reverse foreign key order
func (s *Store) DropTables(ctx context.Context) error {
	tables := s.tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := tables[i].DropTable(ctx); err != nil {
			return err
		}
	}
	s.log.Debug("schema dropped")
	return nil
}

// Reset empties every identity map
func (s *Store) Reset() {
	s.Departments.Reset()
	s.Employees.Reset()
	s.Reviews.Reset()
}

// DB returns the database manager
func (s *Store) DB() *db.Manager {
	return s.db
}

// Close releases the database and Redis connections
func (s *Store) Close() error {
	var errs []error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
