package db

import (
	"fmt"
	"reflect"
	"strings"
)

// Statement builder for the row-level operations the executor and loader
// issue. Values are always parameterized with ? placeholders.
//
// SECURITY WARNING:
// Table and column identifiers are NOT escaped or validated. They must
// come from trusted sources (entity metadata, hardcoded names), never
// from user input. User input belongs in condition values only, which
// are properly parameterized.

// Operator represents SQL comparison operators
type Operator string

const (
	Equal              Operator = "="
	NotEqual           Operator = "!="
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	Like               Operator = "LIKE"
	In                 Operator = "IN"
	IsNull             Operator = "IS NULL"
	IsNotNull          Operator = "IS NOT NULL"
)

// Condition represents a WHERE clause condition
type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

// Builder builds single-table statements
type Builder struct {
	table      string
	selectCols []string
	conditions []Condition
	orderBy    []string
	limit      int
}

// NewBuilder creates a new statement builder for the given table.
// SECURITY: the table parameter must be a validated, trusted identifier.
func NewBuilder(table string) *Builder {
	return &Builder{
		table:      table,
		selectCols: []string{"*"},
	}
}

// Select sets the columns to select.
// SECURITY: column names are not escaped, pass trusted identifiers only.
func (b *Builder) Select(cols ...string) *Builder {
	b.selectCols = cols
	return b
}

// Where adds a WHERE condition; multiple conditions are combined with AND
func (b *Builder) Where(field string, operator Operator, value interface{}) *Builder {
	b.conditions = append(b.conditions, Condition{
		Field:    field,
		Operator: operator,
		Value:    value,
	})
	return b
}

// OrderBy adds an ORDER BY clause
func (b *Builder) OrderBy(field string, desc bool) *Builder {
	order := field
	if desc {
		order += " DESC"
	} else {
		order += " ASC"
	}
	b.orderBy = append(b.orderBy, order)
	return b
}

// Limit sets the LIMIT clause; negative values are normalized to 0
func (b *Builder) Limit(limit int) *Builder {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b
}

// BuildSelect builds a SELECT query
func (b *Builder) BuildSelect() (string, []interface{}) {
	var query strings.Builder
	var args []interface{}

	query.WriteString("SELECT ")
	query.WriteString(strings.Join(b.selectCols, ", "))
	query.WriteString(" FROM ")
	query.WriteString(b.table)

	if len(b.conditions) > 0 {
		query.WriteString(" WHERE ")
		whereSQL, whereArgs := b.buildConditions()
		query.WriteString(whereSQL)
		args = append(args, whereArgs...)
	}

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	if b.limit > 0 {
		query.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	}

	return query.String(), args
}

// BuildInsert builds an INSERT query with one placeholder per column
func (b *Builder) BuildInsert(columns []string) string {
	var query strings.Builder
	query.WriteString("INSERT INTO ")
	query.WriteString(b.table)
	query.WriteString(" (")
	query.WriteString(strings.Join(columns, ", "))
	query.WriteString(") VALUES (")

	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	query.WriteString(strings.Join(placeholders, ", "))
	query.WriteString(")")

	return query.String()
}

// BuildUpdate builds an UPDATE query for the given SET columns keyed by
// whereField
func (b *Builder) BuildUpdate(columns []string, whereField string) string {
	var query strings.Builder
	query.WriteString("UPDATE ")
	query.WriteString(b.table)
	query.WriteString(" SET ")

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = col + " = ?"
	}
	query.WriteString(strings.Join(setClauses, ", "))

	if whereField != "" {
		query.WriteString(" WHERE ")
		query.WriteString(whereField)
		query.WriteString(" = ?")
	}

	return query.String()
}

// BuildDelete builds a DELETE query keyed by whereField
func (b *Builder) BuildDelete(whereField string) string {
	query := "DELETE FROM " + b.table
	if whereField != "" {
		query += fmt.Sprintf(" WHERE %s = ?", whereField)
	}
	return query
}

func (b *Builder) buildConditions() (string, []interface{}) {
	var parts []string
	var args []interface{}

	for _, cond := range b.conditions {
		condSQL, condArgs := buildCondition(cond)
		parts = append(parts, condSQL)
		args = append(args, condArgs...)
	}

	return strings.Join(parts, " AND "), args
}

func buildCondition(cond Condition) (string, []interface{}) {
	switch cond.Operator {
	case IsNull, IsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator), nil
	case In:
		return buildInCondition(cond)
	default:
		return fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), []interface{}{cond.Value}
	}
}

// buildInCondition expands IN conditions with one placeholder per element
func buildInCondition(cond Condition) (string, []interface{}) {
	if cond.Value == nil {
		return "1 = 0", nil
	}

	v := reflect.ValueOf(cond.Value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Sprintf("%s IN (?)", cond.Field), []interface{}{cond.Value}
	}

	length := v.Len()
	if length == 0 {
		// empty set never matches
		return "1 = 0", nil
	}

	placeholders := make([]string, length)
	args := make([]interface{}, length)
	for i := 0; i < length; i++ {
		placeholders[i] = "?"
		args[i] = v.Index(i).Interface()
	}

	return fmt.Sprintf("%s IN (%s)", cond.Field, strings.Join(placeholders, ", ")), args
}
