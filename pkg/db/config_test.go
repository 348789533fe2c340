package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsMemory())
	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.True(t, cfg.SkipDefaultTransaction)
	assert.Equal(t, "sqlite::memory:", cfg.Redacted())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "default sqlite",
			mutate: func(c *Config) {},
		},
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Path = "" },
			wantErr: "sqlite path is required",
		},
		{
			name:    "sqlite with a pool",
			mutate:  func(c *Config) { c.MaxOpenConns = 4 },
			wantErr: "sqlite requires max_open_conns = 1",
		},
		{
			name:    "idle above open",
			mutate:  func(c *Config) { c.MaxIdleConns = 2 },
			wantErr: "max_idle_conns cannot be greater than max_open_conns",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Driver = "oracle" },
			wantErr: `unsupported database driver "oracle"`,
		},
		{
			name: "mysql without host",
			mutate: func(c *Config) {
				*c = *DefaultMySQLConfig("", "staff", "root", "")
			},
			wantErr: "database host is required",
		},
		{
			name: "mysql with bad port",
			mutate: func(c *Config) {
				*c = *DefaultMySQLConfig("db.local", "staff", "root", "")
				c.Port = 70000
			},
			wantErr: "database port must be between 1 and 65535",
		},
		{
			name: "mysql with missing CA file",
			mutate: func(c *Config) {
				*c = *DefaultMySQLConfig("db.local", "staff", "root", "")
				c.SSL = SSLConfig{Enabled: true, CAFile: "/nonexistent/ca.pem"}
			},
			wantErr: "CA file not accessible",
		},
		{
			name: "mysql skip verify needs no files",
			mutate: func(c *Config) {
				*c = *DefaultMySQLConfig("db.local", "staff", "root", "")
				c.SSL = SSLConfig{Enabled: true, SkipVerify: true}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ":memory:?_foreign_keys=on", cfg.SQLiteDSN())

	cfg.Path = "file:staff.db?cache=shared"
	assert.Equal(t, "file:staff.db?cache=shared&_foreign_keys=on", cfg.SQLiteDSN())
	assert.False(t, cfg.IsMemory())

	cfg.Path = "file::memory:?cache=shared"
	assert.True(t, cfg.IsMemory())
}

func TestGetDSN(t *testing.T) {
	cfg := DefaultMySQLConfig("db.local", "staff", "app", "s3cret")
	cfg.Port = 3307

	dsn, err := cfg.GetDSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "app:s3cret@tcp(db.local:3307)/staff")
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	cfg.SSL = SSLConfig{Enabled: true, SkipVerify: true}
	dsn, err = cfg.GetDSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls=skip-verify")

	assert.Equal(t, "mysql://app@db.local:3307/staff", cfg.Redacted())
	assert.NotContains(t, cfg.Redacted(), "s3cret")
}

func TestParseLocation(t *testing.T) {
	assert.Equal(t, time.UTC, parseLocation(""))
	assert.Equal(t, time.UTC, parseLocation("Not/AZone"))
}
