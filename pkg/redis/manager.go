package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache key constants for consistent key generation across the application
const (
	DefaultKeyPrefix  = "staffdb"
	cacheKeySeparator = ":"
	scanBatchSize     = 100
)

// Manager manages the Redis connection backing the row cache
type Manager struct {
	config  *Config
	client  redis.UniversalClient
	metrics *Metrics
	log     *logrus.Entry
}

// NewManager creates a new Redis cache manager
func NewManager(config *Config, scope tally.Scope, log *logrus.Entry) (*Manager, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	manager := &Manager{
		config:  config,
		metrics: NewMetrics(scope),
		log:     log.WithField("component", "row_cache"),
	}
	manager.initializeClient()

	return manager, nil
}

// initializeClient sets up the Redis client based on configuration
func (m *Manager) initializeClient() {
	if !m.config.Enabled {
		return
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:            m.config.GetAddr(),
		Password:        m.config.Password,
		DB:              m.config.Database,
		PoolSize:        m.config.PoolSize,
		MinIdleConns:    m.config.MinIdleConns,
		ConnMaxLifetime: m.config.MaxConnAge,
		PoolTimeout:     m.config.PoolTimeout,
		ConnMaxIdleTime: m.config.IdleTimeout,
		ReadTimeout:     m.config.ReadTimeout,
		WriteTimeout:    m.config.WriteTimeout,
		DialTimeout:     m.config.DialTimeout,
	})
}

// Config returns the manager's configuration
func (m *Manager) Config() *Config {
	return m.config
}

// Enabled reports whether the manager talks to a Redis server
func (m *Manager) Enabled() bool {
	return m != nil && m.config.Enabled && m.client != nil
}

// Close closes the Redis connection
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// Ping tests the Redis connection.
// A disabled cache is a valid configuration and pings successfully.
func (m *Manager) Ping(ctx context.Context) error {
	if !m.config.Enabled {
		return nil
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// checkClient validates that cache is enabled and client is initialized
func (m *Manager) checkClient() error {
	if !m.config.Enabled {
		return ErrCacheDisabled
	}
	if m.client == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// key namespaces a caller key under the configured prefix
func (m *Manager) key(key string) string {
	return m.config.prefix() + cacheKeySeparator + key
}

// Get retrieves raw bytes from cache
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if err := m.checkClient(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrInvalidKey
	}

	start := time.Now()
	data, err := m.client.Get(ctx, m.key(key)).Bytes()
	since(m.metrics.Get, start)

	if errors.Is(err, redis.Nil) {
		m.metrics.CacheMiss.Inc(1)
		if m.config.Logging.LogCacheMisses {
			m.log.WithField("key", key).Debug("row cache miss")
		}
		return nil, ErrKeyNotFound
	}
	if err != nil {
		m.metrics.CacheError.Inc(1)
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	m.metrics.CacheHit.Inc(1)
	if m.config.Logging.LogCacheHits {
		m.log.WithField("key", key).Debug("row cache hit")
	}
	return data, nil
}

// Set stores raw bytes in cache with the default TTL
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithTTL(ctx, key, value, m.config.DefaultTTL)
}

// SetWithTTL stores raw bytes in cache with a custom TTL
func (m *Manager) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := m.checkClient(); err != nil {
		return err
	}
	if key == "" {
		return ErrInvalidKey
	}

	start := time.Now()
	err := m.client.Set(ctx, m.key(key), value, ttl).Err()
	since(m.metrics.Set, start)
	if err != nil {
		m.metrics.CacheError.Inc(1)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// InvalidatePattern removes keys matching a pattern using SCAN + DEL
func (m *Manager) InvalidatePattern(ctx context.Context, pattern string) error {
	if err := m.checkClient(); err != nil {
		return err
	}
	if strings.TrimSpace(pattern) == "" {
		return ErrInvalidKey
	}

	var cursor uint64
	evicted := 0
	for {
		batch, next, err := m.client.Scan(ctx, cursor, m.key(pattern), scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys with pattern %s: %w", pattern, err)
		}

		if len(batch) > 0 {
			if err := m.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("failed to delete batch: %w", err)
			}
			evicted += len(batch)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	m.metrics.Invalidation.Inc(1)
	m.metrics.KeysEvicted.Inc(int64(evicted))
	if m.config.Logging.LogInvalidations {
		m.log.WithFields(logrus.Fields{"pattern": pattern, "keys": evicted}).Debug("row cache invalidated")
	}
	return nil
}

// SetValue msgpack-encodes value and stores it under key
func (m *Manager) SetValue(ctx context.Context, key string, value interface{}) error {
	if err := m.checkClient(); err != nil {
		return err
	}

	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return m.Set(ctx, key, data)
}

// GetValue loads key and msgpack-decodes it into target.
// A missing key returns ErrKeyNotFound.
func (m *Manager) GetValue(ctx context.Context, key string, target interface{}) error {
	data, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := msgpack.Unmarshal(data, target); err != nil {
		m.metrics.CacheError.Inc(1)
		return fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return nil
}
