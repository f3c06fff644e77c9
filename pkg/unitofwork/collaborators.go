package unitofwork

import "context"

// Executor runs parameterized statements against the store. The default
// implementation lives in pkg/db; tests substitute in-memory fakes. The
// session issues statements strictly in insert, update, delete order and
// stops at the first failure, relying on the caller to wrap the whole
// flush in one transaction boundary.
type Executor interface {
	// Insert writes a new row and returns the generated identifier,
	// when the store produced one
	Insert(ctx context.Context, table string, columns map[string]interface{}) (int64, error)

	// Update modifies the columns of the row addressed by keyColumn=key
	// and returns the affected-row count
	Update(ctx context.Context, table string, columns map[string]interface{}, keyColumn string, key interface{}) (int64, error)

	// Delete removes the row addressed by keyColumn=key and returns the
	// affected-row count
	Delete(ctx context.Context, table string, keyColumn string, key interface{}) (int64, error)
}

// Loader fetches a single row by primary key for Find misses. A nil row
// with nil error means the row does not exist.
type Loader interface {
	Load(ctx context.Context, table string, columns []string, keyColumn string, key interface{}) (map[string]interface{}, error)
}

// SnapshotCache shares last-synchronized snapshots across sessions so a
// Find in a fresh session can skip the SELECT. Implementations are best
// effort; the session ignores cache errors on writes and falls through
// to the Loader on read errors. pkg/snapshot provides the Redis-backed
// implementation.
type SnapshotCache interface {
	Get(ctx context.Context, entityName string, id interface{}) (map[string]interface{}, error)
	Set(ctx context.Context, entityName string, id interface{}, data map[string]interface{}) error
	Invalidate(ctx context.Context, entityName string, id interface{}) error
}
