package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type ManagerTestSuite struct {
	suite.Suite
	manager *Manager
	ctx     context.Context
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	m, err := NewManager(DefaultConfig(), nil)
	s.Require().NoError(err)
	s.manager = m
	s.ctx = context.Background()
}

func (s *ManagerTestSuite) TearDownTest() {
	s.NoError(s.manager.Close())
}

func (s *ManagerTestSuite) TestPingAndStats() {
	s.NoError(s.manager.Ping(s.ctx))

	stats, err := s.manager.Stats()
	s.NoError(err)
	s.Equal(1, stats.MaxOpenConnections)
}

func (s *ManagerTestSuite) TestDatabaseName() {
	s.True(strings.HasPrefix(s.manager.DatabaseName(), "memory_"))
	s.Equal(s.manager.DatabaseName(), s.manager.DatabaseName())

	cfg := DefaultConfig()
	cfg.Path = filepath.Join(s.T().TempDir(), "staff.db")
	m, err := NewManager(cfg, nil)
	s.Require().NoError(err)
	defer m.Close()
	s.Equal("staff", m.DatabaseName())
}

func (s *ManagerTestSuite) TestInMemoryDatabasesHaveDistinctNames() {
	other, err := NewManager(DefaultConfig(), nil)
	s.Require().NoError(err)
	defer other.Close()

	s.NotEqual(s.manager.DatabaseName(), other.DatabaseName())
}

func (s *ManagerTestSuite) TestNewManagerRejectsInvalidConfig() {
	_, err := NewManager(nil, nil)
	s.Error(err)

	cfg := DefaultConfig()
	cfg.Path = ""
	_, err = NewManager(cfg, nil)
	s.ErrorContains(err, "invalid config")
}

func (s *ManagerTestSuite) TestForeignKeysEnforced() {
	gdb := s.manager.DB().WithContext(s.ctx)
	s.Require().NoError(gdb.Exec("CREATE TABLE parents (id INTEGER PRIMARY KEY)").Error)
	s.Require().NoError(gdb.Exec(
		"CREATE TABLE children (id INTEGER PRIMARY KEY, parent_id INTEGER NOT NULL REFERENCES parents(id))",
	).Error)

	err := gdb.Exec("INSERT INTO children (parent_id) VALUES (?)", 42).Error
	s.Require().Error(err)
	s.True(IsForeignKeyViolation(err))
	s.ErrorIs(TranslateError(err), ErrForeignKeyViolation)
}

func (s *ManagerTestSuite) TestIsForeignKeyViolation() {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{gorm.ErrForeignKeyViolated, true},
		{fmt.Errorf("insert: %w", gorm.ErrForeignKeyViolated), true},
		{&mysql.MySQLError{Number: 1451, Message: "Cannot delete or update a parent row"}, true},
		{&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, false},
		{errors.New("FOREIGN KEY constraint failed"), true},
	}
	for _, tt := range tests {
		s.Equal(tt.want, IsForeignKeyViolation(tt.err), "%v", tt.err)
	}

	plain := errors.New("boom")
	s.Equal(plain, TranslateError(plain))
	s.Nil(TranslateError(nil))
}
