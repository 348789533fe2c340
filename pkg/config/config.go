package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/ammar0144/staffdb/pkg/db"
	"github.com/ammar0144/staffdb/pkg/redis"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings
const (
	EnvDBDriver     = "STAFFDB_DB_DRIVER"
	EnvDBPath       = "STAFFDB_DB_PATH"
	EnvDBHost       = "STAFFDB_DB_HOST"
	EnvDBPort       = "STAFFDB_DB_PORT"
	EnvDBName       = "STAFFDB_DB_NAME"
	EnvDBUser       = "STAFFDB_DB_USER"
	EnvDBPassword   = "STAFFDB_DB_PASSWORD"
	EnvRedisEnabled = "STAFFDB_REDIS_ENABLED"
	EnvRedisAddr    = "STAFFDB_REDIS_ADDR"
	EnvLogLevel     = "STAFFDB_LOG_LEVEL"
)

// Config aggregates the settings of every staffdb component
type Config struct {
	Database db.Config     `json:"database" yaml:"database"`
	Redis    redis.Config  `json:"redis" yaml:"redis"`
	Logging  LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig selects the application log level and format
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // logrus level name
	Format string `json:"format" yaml:"format"` // text or json
}

// Default returns an in-memory SQLite configuration with the row cache off
func Default() *Config {
	return &Config{
		Database: *db.DefaultConfig(),
		Redis:    *redis.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDBDriver); ok {
		c.Database.Driver = db.Driver(strings.ToLower(v))
	}
	if v, ok := lookup(EnvDBPath); ok {
		c.Database.Path = v
	}
	if v, ok := lookup(EnvDBHost); ok {
		c.Database.Host = v
	}
	if v, ok := lookup(EnvDBPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvDBPort, v, err)
		}
		c.Database.Port = port
	}
	if v, ok := lookup(EnvDBName); ok {
		c.Database.Database = v
	}
	if v, ok := lookup(EnvDBUser); ok {
		c.Database.Username = v
	}
	if v, ok := lookup(EnvDBPassword); ok {
		c.Database.Password = v
	}
	if v, ok := lookup(EnvRedisEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRedisEnabled, v, err)
		}
		c.Redis.Enabled = enabled
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		host, portStr, err := net.SplitHostPort(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRedisAddr, v, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRedisAddr, v, err)
		}
		c.Redis.Host = host
		c.Redis.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging: unsupported format %q", c.Logging.Format)
	}
	return nil
}

// NewLogger builds the logrus logger described by the logging section
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.Logging.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Logging.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
