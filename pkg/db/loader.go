package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// SQLLoader fetches single rows by primary key. A nil row with nil error
// means the row does not exist.
type SQLLoader struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLLoader creates a loader on top of an open connection pool
func NewSQLLoader(sqlDB *sql.DB, logger *zap.Logger) *SQLLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLLoader{db: sqlDB, logger: logger}
}

// Load selects the given columns of the row addressed by keyColumn=key
// and returns them keyed by column name
func (l *SQLLoader) Load(ctx context.Context, table string, columns []string, keyColumn string, key interface{}) (map[string]interface{}, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("load from %s: no columns", table)
	}

	query, args := NewBuilder(table).
		Select(columns...).
		Where(keyColumn, Equal, key).
		Limit(1).
		BuildSelect()

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		l.logger.Debug("row not found",
			zap.String("table", table),
			zap.Any("key", key))
		return nil, nil
	}

	row, err := scanRow(rows, columns)
	if err != nil {
		return nil, err
	}
	return row, rows.Err()
}

// scanRow materializes the current result row into a column-keyed map
func scanRow(rows *sql.Rows, columns []string) (map[string]interface{}, error) {
	values := make([]interface{}, len(columns))
	targets := make([]interface{}, len(columns))
	for i := range values {
		targets[i] = &values[i]
	}

	if err := rows.Scan(targets...); err != nil {
		return nil, err
	}

	row := make(map[string]interface{}, len(columns))
	for i, name := range columns {
		row[name] = values[i]
	}
	return row, nil
}
