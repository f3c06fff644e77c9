package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		builder  *Builder
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:     "all columns",
			builder:  NewBuilder("customers"),
			wantSQL:  "SELECT * FROM customers",
			wantArgs: nil,
		},
		{
			name: "columns with condition and limit",
			builder: NewBuilder("customers").
				Select("id", "name").
				Where("id", Equal, 7).
				Limit(1),
			wantSQL:  "SELECT id, name FROM customers WHERE id = ? LIMIT 1",
			wantArgs: []interface{}{7},
		},
		{
			name: "multiple conditions joined with AND",
			builder: NewBuilder("orders").
				Where("customer_id", Equal, 7).
				Where("total", GreaterThan, 100.0),
			wantSQL:  "SELECT * FROM orders WHERE customer_id = ? AND total > ?",
			wantArgs: []interface{}{7, 100.0},
		},
		{
			name: "order by",
			builder: NewBuilder("orders").
				OrderBy("placed_at", true).
				OrderBy("id", false),
			wantSQL:  "SELECT * FROM orders ORDER BY placed_at DESC, id ASC",
			wantArgs: nil,
		},
		{
			name:     "is null",
			builder:  NewBuilder("customers").Where("deleted_at", IsNull, nil),
			wantSQL:  "SELECT * FROM customers WHERE deleted_at IS NULL",
			wantArgs: nil,
		},
		{
			name:     "in with slice",
			builder:  NewBuilder("customers").Where("id", In, []int{1, 2, 3}),
			wantSQL:  "SELECT * FROM customers WHERE id IN (?, ?, ?)",
			wantArgs: []interface{}{1, 2, 3},
		},
		{
			name:     "in with empty slice never matches",
			builder:  NewBuilder("customers").Where("id", In, []int{}),
			wantSQL:  "SELECT * FROM customers WHERE 1 = 0",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := tt.builder.BuildSelect()
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildInsert(t *testing.T) {
	sql := NewBuilder("customers").BuildInsert([]string{"email", "name", "tier"})
	assert.Equal(t, "INSERT INTO customers (email, name, tier) VALUES (?, ?, ?)", sql)
}

func TestBuildUpdate(t *testing.T) {
	sql := NewBuilder("customers").BuildUpdate([]string{"name", "tier"}, "id")
	assert.Equal(t, "UPDATE customers SET name = ?, tier = ? WHERE id = ?", sql)
}

func TestBuildDelete(t *testing.T) {
	sql := NewBuilder("customers").BuildDelete("id")
	assert.Equal(t, "DELETE FROM customers WHERE id = ?", sql)
}
