package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"
	"github.com/uber-go/tally/v4"
)

type row struct {
	ID   int64
	Name string
}

type ManagerTestSuite struct {
	suite.Suite
	server  *miniredis.Miniredis
	scope   tally.TestScope
	manager *Manager
	ctx     context.Context
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}

func (s *ManagerTestSuite) SetupTest() {
	s.server = miniredis.RunT(s.T())
	port, err := strconv.Atoi(s.server.Port())
	s.Require().NoError(err)

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Host = s.server.Host()
	cfg.Port = port

	s.scope = tally.NewTestScope("", nil)
	s.manager, err = NewManager(cfg, s.scope, nil)
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *ManagerTestSuite) TearDownTest() {
	s.NoError(s.manager.Close())
}

func (s *ManagerTestSuite) counter(name string, tags map[string]string) int64 {
	for _, c := range s.scope.Snapshot().Counters() {
		if c.Name() != name {
			continue
		}
		match := true
		for k, v := range tags {
			if c.Tags()[k] != v {
				match = false
			}
		}
		if match {
			return c.Value()
		}
	}
	return 0
}

func (s *ManagerTestSuite) TestPing() {
	s.True(s.manager.Enabled())
	s.NoError(s.manager.Ping(s.ctx))
}

func (s *ManagerTestSuite) TestGetMissingKey() {
	_, err := s.manager.Get(s.ctx, "memory:employees:find_by_id:1")
	s.True(IsKeyNotFound(err))
	s.EqualValues(1, s.counter("row_cache.lookup.count", map[string]string{"result": "miss"}))
}

func (s *ManagerTestSuite) TestSetAndGet() {
	s.NoError(s.manager.Set(s.ctx, "k", []byte("v")))
	s.True(s.server.Exists("staffdb:k"))

	data, err := s.manager.Get(s.ctx, "k")
	s.NoError(err)
	s.Equal([]byte("v"), data)
	s.EqualValues(1, s.counter("row_cache.lookup.count", map[string]string{"result": "hit"}))
}

func (s *ManagerTestSuite) TestDefaultTTL() {
	s.NoError(s.manager.Set(s.ctx, "k", []byte("v")))
	s.Equal(10*time.Minute, s.server.TTL("staffdb:k"))

	s.server.FastForward(11 * time.Minute)
	_, err := s.manager.Get(s.ctx, "k")
	s.True(IsKeyNotFound(err))
}

func (s *ManagerTestSuite) TestValueRoundTrip() {
	in := row{ID: 7, Name: "Ada"}
	s.NoError(s.manager.SetValue(s.ctx, "memory:employees:find_by_id:7", in))

	var out row
	s.NoError(s.manager.GetValue(s.ctx, "memory:employees:find_by_id:7", &out))
	s.Equal(in, out)

	var rows []row
	s.NoError(s.manager.Set(s.ctx, "garbage", []byte{0xc1}))
	err := s.manager.GetValue(s.ctx, "garbage", &rows)
	s.ErrorIs(err, ErrSerializationFailed)
}

func (s *ManagerTestSuite) TestInvalidatePattern() {
	for _, k := range []string{
		"memory:employees:find_by_id:1",
		"memory:employees:find_where:abc",
		"memory:reviews:find_by_id:1",
	} {
		s.NoError(s.manager.Set(s.ctx, k, []byte("x")))
	}

	s.NoError(s.manager.InvalidatePattern(s.ctx, "memory:employees:*"))

	s.False(s.server.Exists("staffdb:memory:employees:find_by_id:1"))
	s.False(s.server.Exists("staffdb:memory:employees:find_where:abc"))
	s.True(s.server.Exists("staffdb:memory:reviews:find_by_id:1"))
	s.EqualValues(2, s.counter("row_cache.keys_evicted", nil))

	s.ErrorIs(s.manager.InvalidatePattern(s.ctx, " "), ErrInvalidKey)
}

func (s *ManagerTestSuite) TestEmptyKey() {
	_, err := s.manager.Get(s.ctx, "")
	s.ErrorIs(err, ErrInvalidKey)
	s.ErrorIs(s.manager.Set(s.ctx, "", nil), ErrInvalidKey)
}

func (s *ManagerTestSuite) TestConnectionFailure() {
	s.server.Close()
	s.True(IsConnectionFailed(s.manager.Ping(s.ctx)))
}

func TestDisabledManager(t *testing.T) {
	m, err := NewManager(DefaultConfig(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Enabled() {
		t.Fatal("default config should leave the cache disabled")
	}
	if err := m.Ping(context.Background()); err != nil {
		t.Fatalf("ping on disabled cache: %v", err)
	}
	if _, err := m.Get(context.Background(), "k"); !IsCacheDisabled(err) {
		t.Fatalf("expected ErrCacheDisabled, got %v", err)
	}

	var nilManager *Manager
	if nilManager.Enabled() {
		t.Fatal("nil manager reports enabled")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty host")
	}

	cfg = DefaultConfig()
	cfg.Enabled = true
	cfg.DefaultTTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero ttl")
	}

	cfg = DefaultConfig()
	cfg.KeyPrefix = ""
	if got := cfg.prefix(); got != DefaultKeyPrefix {
		t.Fatalf("prefix = %q, want %q", got, DefaultKeyPrefix)
	}
}
