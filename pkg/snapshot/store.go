package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	cacheKeySeparator = ":"
	cacheKeySection   = "snap"

	// identifiers longer than this, or containing the separator, are
	// hashed into the key instead of embedded verbatim
	maxVerbatimKeyIDLen = 64
)

// Store is a Redis-backed snapshot cache. It shares last-synchronized
// entity snapshots across sessions, keyed by entity name and identifier,
// with msgpack-encoded values and a per-store TTL.
type Store struct {
	config  *Config
	client  redis.UniversalClient
	metrics *Metrics
}

// NewStore creates a new Redis snapshot store
func NewStore(config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot cache config: %w", err)
	}

	store := &Store{
		config:  config,
		metrics: NewMetrics(),
	}

	if config.Enabled {
		store.client = redis.NewClient(&redis.Options{
			Addr:            config.GetAddr(),
			Password:        config.Password,
			DB:              config.Database,
			PoolSize:        config.PoolSize,
			MinIdleConns:    config.MinIdleConns,
			ConnMaxLifetime: config.MaxConnAge,
			PoolTimeout:     config.PoolTimeout,
			ConnMaxIdleTime: config.IdleTimeout,
			ReadTimeout:     config.ReadTimeout,
			WriteTimeout:    config.WriteTimeout,
			DialTimeout:     config.DialTimeout,
		})
	}

	return store, nil
}

// Config returns the store's configuration
func (s *Store) Config() *Config {
	return s.config
}

// Metrics returns the store's metrics
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// Close closes the Redis connection
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Ping tests the Redis connection.
// Returns nil if the cache is disabled, that is a valid configuration state.
func (s *Store) Ping(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	if s.client == nil {
		return ErrClientNotInitialized
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// checkClient validates that the cache is enabled and the client is
// initialized
func (s *Store) checkClient() error {
	if !s.config.Enabled {
		return ErrCacheDisabled
	}
	if s.client == nil {
		return ErrClientNotInitialized
	}
	return nil
}

// Get retrieves a cached snapshot; a nil map with nil error means the
// snapshot is not cached
func (s *Store) Get(ctx context.Context, entityName string, id interface{}) (map[string]interface{}, error) {
	if err := s.checkClient(); err != nil {
		return nil, err
	}

	start := time.Now()
	payload, err := s.client.Get(ctx, s.keyFor(entityName, id)).Bytes()
	s.metrics.RecordGet(time.Since(start))

	if errors.Is(err, redis.Nil) {
		s.metrics.RecordCacheMiss()
		return nil, nil
	}
	if err != nil {
		s.metrics.RecordCacheError()
		return nil, fmt.Errorf("snapshot cache get: %w", err)
	}

	var data map[string]interface{}
	if err := msgpack.Unmarshal(payload, &data); err != nil {
		s.metrics.RecordCacheError()
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}

	s.metrics.RecordCacheHit()
	return data, nil
}

// Set stores a snapshot with the configured TTL
func (s *Store) Set(ctx context.Context, entityName string, id interface{}, data map[string]interface{}) error {
	if err := s.checkClient(); err != nil {
		return err
	}

	payload, err := msgpack.Marshal(data)
	if err != nil {
		s.metrics.RecordCacheError()
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}

	start := time.Now()
	err = s.client.Set(ctx, s.keyFor(entityName, id), payload, s.config.TTL).Err()
	s.metrics.RecordSet(time.Since(start))
	if err != nil {
		s.metrics.RecordCacheError()
		return fmt.Errorf("snapshot cache set: %w", err)
	}
	return nil
}

// Invalidate removes a cached snapshot
func (s *Store) Invalidate(ctx context.Context, entityName string, id interface{}) error {
	if err := s.checkClient(); err != nil {
		return err
	}

	s.metrics.RecordInvalidation()
	if err := s.client.Del(ctx, s.keyFor(entityName, id)).Err(); err != nil {
		s.metrics.RecordCacheError()
		return fmt.Errorf("snapshot cache invalidate: %w", err)
	}
	return nil
}

// keyFor builds the cache key for an entity snapshot. Short clean
// identifiers are embedded verbatim so keys stay readable in redis-cli;
// anything else is hashed.
func (s *Store) keyFor(entityName string, id interface{}) string {
	idPart := fmt.Sprintf("%v", id)
	if len(idPart) > maxVerbatimKeyIDLen || strings.Contains(idPart, cacheKeySeparator) {
		idPart = fmt.Sprintf("x%016x", xxhash.Sum64String(idPart))
	}
	return strings.Join([]string{s.config.KeyPrefix, cacheKeySection, entityName, idPart}, cacheKeySeparator)
}
