package db

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DefaultConfig returns an in-memory SQLite configuration.
// SQLite keeps a single open connection; an in-memory database lives
// exactly as long as that connection, so it is never recycled.
func DefaultConfig() *Config {
	return &Config{
		Driver:                 DriverSQLite,
		Path:                   MemoryPath,
		MaxOpenConns:           1,
		MaxIdleConns:           1,
		SkipDefaultTransaction: true,
		QueryTimeout:           30 * time.Second,
		Logging: LoggingConfig{
			Level:              "error",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
	}
}

// DefaultMySQLConfig returns a MySQL configuration with minimal settings
func DefaultMySQLConfig(host, database, username, password string) *Config {
	return &Config{
		Driver:                 DriverMySQL,
		Host:                   host,
		Database:               database,
		Username:               username,
		Password:               password,
		Port:                   3306,
		Charset:                "utf8mb4",
		Collation:              "utf8mb4_unicode_ci",
		TimeZone:               "UTC",
		MaxOpenConns:           25,
		MaxIdleConns:           5,
		ConnMaxLifetime:        time.Hour,
		ConnMaxIdleTime:        30 * time.Minute,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		QueryTimeout:           30 * time.Second,
		Logging: LoggingConfig{
			Level:              "error",
			SlowQueryThreshold: 200 * time.Millisecond,
		},
	}
}

// Validate checks if the database configuration is valid
func (c *Config) Validate() error {
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be at least 1")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns cannot be greater than max_open_conns")
	}

	switch c.driver() {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
		if c.MaxOpenConns != 1 {
			return fmt.Errorf("sqlite requires max_open_conns = 1, got %d", c.MaxOpenConns)
		}
	case DriverMySQL:
		if c.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("database port must be between 1 and 65535, got %d", c.Port)
		}
		if c.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Username == "" {
			return fmt.Errorf("database username is required")
		}
		if c.SSL.Enabled && !c.SSL.SkipVerify {
			if err := c.validateTLSFiles(); err != nil {
				return fmt.Errorf("TLS configuration error: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	return nil
}

// driver returns the configured driver, defaulting to SQLite
func (c *Config) driver() Driver {
	if c.Driver == "" {
		return DriverSQLite
	}
	return Driver(strings.ToLower(string(c.Driver)))
}

// IsMemory reports whether the configuration points at an in-memory SQLite database
func (c *Config) IsMemory() bool {
	if c.driver() != DriverSQLite {
		return false
	}
	return c.Path == MemoryPath || strings.Contains(c.Path, "mode=memory") || strings.HasPrefix(c.Path, "file::memory:")
}

// validateTLSFiles validates that TLS certificate files exist and are readable
func (c *Config) validateTLSFiles() error {
	if c.SSL.CAFile != "" {
		if _, err := os.Stat(c.SSL.CAFile); err != nil {
			return fmt.Errorf("CA file not accessible: %w", err)
		}
	}

	if c.SSL.CertFile != "" || c.SSL.KeyFile != "" {
		if c.SSL.CertFile == "" || c.SSL.KeyFile == "" {
			return fmt.Errorf("both CertFile and KeyFile must be provided together")
		}
		if _, err := os.Stat(c.SSL.CertFile); err != nil {
			return fmt.Errorf("client certificate file not accessible: %w", err)
		}
		if _, err := os.Stat(c.SSL.KeyFile); err != nil {
			return fmt.Errorf("client key file not accessible: %w", err)
		}
	}

	return nil
}

// SQLiteDSN returns the SQLite data source name with foreign key enforcement switched on
func (c *Config) SQLiteDSN() string {
	path := c.Path
	if path == "" {
		path = MemoryPath
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

// GetDSN returns the MySQL Data Source Name using the official MySQL driver config builder
func (c *Config) GetDSN() (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = c.Username
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.Collation = c.Collation
	cfg.Loc = parseLocation(c.TimeZone)
	cfg.ParseTime = true
	cfg.AllowNativePasswords = true
	// Report matched rows rather than changed rows so an update that
	// rewrites identical values is not mistaken for a missing row.
	cfg.ClientFoundRows = true
	if c.Charset != "" {
		cfg.Params = map[string]string{"charset": c.Charset}
	}

	if c.SSL.Enabled {
		if c.SSL.SkipVerify {
			cfg.TLSConfig = "skip-verify"
		} else {
			tlsConfig, err := c.buildTLSConfig()
			if err != nil {
				return "", err
			}
			tlsName := c.generateTLSConfigName()
			// Registering the same name twice just replaces the entry.
			_ = mysql.RegisterTLSConfig(tlsName, tlsConfig)
			cfg.TLSConfig = tlsName
		}
	}

	return cfg.FormatDSN(), nil
}

// buildTLSConfig loads the CA pool and client certificate named in SSLConfig
func (c *Config) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if c.SSL.CAFile != "" {
		caCert, err := os.ReadFile(c.SSL.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("invalid CA certificate in %s", c.SSL.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if c.SSL.CertFile != "" && c.SSL.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if c.SSL.ServerName != "" {
		tlsConfig.ServerName = c.SSL.ServerName
	}
	return tlsConfig, nil
}

// generateTLSConfigName creates a unique name for TLS config registration
// based on the SSL configuration
func (c *Config) generateTLSConfigName() string {
	h := sha256.New()
	h.Write([]byte(c.SSL.CAFile))
	h.Write([]byte(c.SSL.CertFile))
	h.Write([]byte(c.SSL.KeyFile))
	h.Write([]byte(c.SSL.ServerName))
	hash := hex.EncodeToString(h.Sum(nil))[:16]
	return fmt.Sprintf("staffdb_tls_%s", hash)
}

// Redacted returns a printable description of the connection target without credentials
func (c *Config) Redacted() string {
	switch c.driver() {
	case DriverMySQL:
		u := url.URL{Scheme: "mysql", User: url.User(c.Username), Host: fmt.Sprintf("%s:%d", c.Host, c.Port), Path: "/" + c.Database}
		return u.String()
	default:
		return "sqlite:" + c.Path
	}
}

// parseLocation parses timezone string to *time.Location
func parseLocation(tz string) *time.Location {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}
