// Package orm4go provides a unit-of-work persistence core for MySQL:
// an identity map, snapshot-based change detection and ordered flushing
// of accumulated inserts, updates and deletes, with an optional
// Redis-backed snapshot cache.
package orm4go

import (
	"go.uber.org/zap"

	"github.com/ammar0144/orm4go/pkg/db"
	"github.com/ammar0144/orm4go/pkg/metadata"
	"github.com/ammar0144/orm4go/pkg/repository"
	"github.com/ammar0144/orm4go/pkg/snapshot"
	"github.com/ammar0144/orm4go/pkg/unitofwork"
)

// Config represents database configuration
type Config = db.Config

// SnapshotConfig represents snapshot cache configuration
type SnapshotConfig = snapshot.Config

// SessionConfig tunes a single unit-of-work session
type SessionConfig = unitofwork.SessionConfig

// Session is a unit-of-work session
type Session = unitofwork.Session

// ChangeSet is the per-entity delta computed by change detection
type ChangeSet = unitofwork.ChangeSet

// Lifecycle is an entity lifecycle state
type Lifecycle = unitofwork.Lifecycle

// Hooks receives lifecycle callbacks around persistence operations
type Hooks = unitofwork.Hooks

// NewRepository creates a typed repository on top of a session
func NewRepository[T any](session *Session) *repository.Repository[T] {
	return repository.New[T](session)
}

// NewManager creates a new database manager
func NewManager(config *Config) (*db.Manager, error) {
	return db.NewManager(config)
}

// NewRegistry creates an entity metadata registry
func NewRegistry() *metadata.Registry {
	return metadata.NewRegistry()
}

// NewSnapshotStore creates a Redis-backed snapshot cache
func NewSnapshotStore(config *SnapshotConfig) (*snapshot.Store, error) {
	return snapshot.NewStore(config)
}

// NewSession creates a unit-of-work session on top of a database
// manager. The snapshot store may be nil to run without the cache;
// config may be nil for defaults.
func NewSession(registry *metadata.Registry, manager *db.Manager, store *snapshot.Store, config *SessionConfig) (*Session, error) {
	sqlDB, err := manager.SqlDB()
	if err != nil {
		return nil, err
	}

	var logger *zap.Logger
	if config != nil {
		logger = config.Logger
	}
	executor := db.NewSQLExecutor(sqlDB, logger)
	loader := db.NewSQLLoader(sqlDB, logger)

	var cache unitofwork.SnapshotCache
	if store != nil {
		cache = store
	}
	return unitofwork.NewSession(registry, executor, loader, cache, config), nil
}
