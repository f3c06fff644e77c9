package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// SQLExecutor issues parameterized row-level statements against a MySQL
// connection pool. Column order within a statement is sorted by name so
// the generated SQL is deterministic and prepared-statement caches stay
// warm.
type SQLExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLExecutor creates an executor on top of an open connection pool
func NewSQLExecutor(sqlDB *sql.DB, logger *zap.Logger) *SQLExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLExecutor{db: sqlDB, logger: logger}
}

// Insert writes a new row and returns the auto-generated identifier, or
// zero when the store did not produce one
func (e *SQLExecutor) Insert(ctx context.Context, table string, columns map[string]interface{}) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert into %s: no columns", table)
	}

	names := sortedColumnNames(columns)
	query := NewBuilder(table).BuildInsert(names)
	args := columnValues(columns, names)

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		// not every table has an auto-generated key
		id = 0
	}

	e.logger.Debug("insert executed",
		zap.String("table", table),
		zap.Int("columns", len(names)),
		zap.Int64("last_insert_id", id))
	return id, nil
}

// Update modifies the columns of the row addressed by keyColumn=key and
// returns the affected-row count
func (e *SQLExecutor) Update(ctx context.Context, table string, columns map[string]interface{}, keyColumn string, key interface{}) (int64, error) {
	if len(columns) == 0 {
		return 0, nil
	}

	names := sortedColumnNames(columns)
	query := NewBuilder(table).BuildUpdate(names, keyColumn)
	args := append(columnValues(columns, names), key)

	result, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	e.logger.Debug("update executed",
		zap.String("table", table),
		zap.Int("columns", len(names)),
		zap.Int64("rows_affected", affected))
	return affected, nil
}

// Delete removes the row addressed by keyColumn=key and returns the
// affected-row count
func (e *SQLExecutor) Delete(ctx context.Context, table string, keyColumn string, key interface{}) (int64, error) {
	query := NewBuilder(table).BuildDelete(keyColumn)

	result, err := e.db.ExecContext(ctx, query, key)
	if err != nil {
		return 0, classify(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	e.logger.Debug("delete executed",
		zap.String("table", table),
		zap.Int64("rows_affected", affected))
	return affected, nil
}

func sortedColumnNames(columns map[string]interface{}) []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func columnValues(columns map[string]interface{}, names []string) []interface{} {
	values := make([]interface{}, len(names))
	for i, name := range names {
		values[i] = columns[name]
	}
	return values
}
