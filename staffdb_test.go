package staffdb

import (
	"context"
	"strconv"
	"testing"

	"github.com/ammar0144/staffdb/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
)

type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	var err error
	s.ctx = context.Background()
	s.store, err = Open(nil, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateTables(s.ctx))
}

func (s *StoreTestSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StoreTestSuite) TestSchemaLifecycleIsIdempotent() {
	s.NoError(s.store.CreateTables(s.ctx))

	migrator := s.store.DB().DB().Migrator()
	for _, table := range []string{"departments", "employees", "reviews"} {
		s.True(migrator.HasTable(table), table)
	}

	s.NoError(s.store.DropTables(s.ctx))
	s.NoError(s.store.DropTables(s.ctx))
	for _, table := range []string{"departments", "employees", "reviews"} {
		s.False(migrator.HasTable(table), table)
	}
}

func (s *StoreTestSuite) TestEndToEnd() {
	d, err := s.store.Departments.Create(s.ctx, "Payroll", "Building A")
	s.Require().NoError(err)
	e, err := s.store.Employees.Create(s.ctx, "Lee", "Manager", d.ID())
	s.Require().NoError(err)
	r, err := s.store.Reviews.Create(s.ctx, 2023, "Great communicator", e.ID())
	s.Require().NoError(err)

	_, err = s.store.Reviews.Create(s.ctx, 1999, "Too early", e.ID())
	s.ErrorIs(err, ErrValidation)

	s.store.Reset()
	got, err := s.store.Reviews.FindByID(s.ctx, r.ID())
	s.Require().NoError(err)
	s.NotSame(r, got)
	s.Equal(r.Summary(), got.Summary())

	err = s.store.Departments.Delete(s.ctx, d)
	s.ErrorIs(err, ErrReferentialViolation)

	s.Require().NoError(s.store.Reviews.Delete(s.ctx, got))
	s.Require().NoError(s.store.Employees.Delete(s.ctx, e))
	s.Require().NoError(s.store.Departments.Delete(s.ctx, d))

	err = s.store.Departments.Update(s.ctx, d)
	s.ErrorIs(err, ErrNotPersisted)
}

func TestOpenWithRowCache(t *testing.T) {
	server := miniredis.RunT(t)
	port, err := strconv.Atoi(server.Port())
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Redis.Enabled = true
	cfg.Redis.Host = server.Host()
	cfg.Redis.Port = port

	scope := tally.NewTestScope("", nil)
	store, err := Open(cfg, scope)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.CreateTables(ctx); err != nil {
		t.Fatal(err)
	}
	d, err := store.Departments.Create(ctx, "Payroll", "Building A")
	if err != nil {
		t.Fatal(err)
	}

	store.Reset()
	if _, err := store.Departments.FindByID(ctx, d.ID()); err != nil {
		t.Fatal(err)
	}
	key := "staffdb:" + store.DB().DatabaseName() + ":departments:find_by_id:" + strconv.FormatInt(d.ID(), 10)
	if !server.Exists(key) {
		t.Fatalf("expected %s in redis, have %v", key, server.Keys())
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = ""
	if _, err := Open(cfg, nil); err == nil {
		t.Fatal("expected error")
	}
}
