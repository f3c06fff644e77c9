package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ammar0144/orm4go/pkg/metadata"
)

type Customer struct {
	ID    uint `gorm:"primaryKey"`
	Name  string
	Email string
	Tier  string
}

type Order struct {
	ID         uint `gorm:"primaryKey"`
	CustomerID uint
	Total      float64
	PlacedAt   time.Time
}

type Invoice struct {
	ID         uint `gorm:"primaryKey"`
	Number     string
	CustomerID uint
	Customer   *Customer
}

var errBoom = errors.New("boom")

// fakeStatement is one recorded executor call
type fakeStatement struct {
	op      string
	table   string
	columns map[string]interface{}
	key     interface{}
}

// fakeExecutor records statements in call order and hands out sequential
// generated identifiers. Setting failOn makes the named operation fail,
// for every row or only for failOnKey when that is set too.
type fakeExecutor struct {
	statements []fakeStatement
	nextID     atomic.Int64
	failOn     string
	failOnKey  interface{}
}

func (e *fakeExecutor) fails(op string, key interface{}) bool {
	if e.failOn != op {
		return false
	}
	return e.failOnKey == nil || e.failOnKey == key
}

func newFakeExecutor() *fakeExecutor {
	e := &fakeExecutor{}
	e.nextID.Store(100)
	return e
}

func (e *fakeExecutor) Insert(_ context.Context, table string, columns map[string]interface{}) (int64, error) {
	if e.failOn == "insert" {
		return 0, errBoom
	}
	e.statements = append(e.statements, fakeStatement{op: "insert", table: table, columns: columns})
	return e.nextID.Add(1), nil
}

func (e *fakeExecutor) Update(_ context.Context, table string, columns map[string]interface{}, _ string, key interface{}) (int64, error) {
	if e.fails("update", key) {
		return 0, errBoom
	}
	e.statements = append(e.statements, fakeStatement{op: "update", table: table, columns: columns, key: key})
	return 1, nil
}

func (e *fakeExecutor) Delete(_ context.Context, table string, _ string, key interface{}) (int64, error) {
	if e.fails("delete", key) {
		return 0, errBoom
	}
	e.statements = append(e.statements, fakeStatement{op: "delete", table: table, key: key})
	return 1, nil
}

func (e *fakeExecutor) ops() []string {
	ops := make([]string, len(e.statements))
	for i, s := range e.statements {
		ops[i] = s.op
	}
	return ops
}

// fakeLoader serves rows from an in-memory table map keyed by table name
// and stringified key
type fakeLoader struct {
	rows  map[string]map[string]map[string]interface{}
	loads int
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{rows: make(map[string]map[string]map[string]interface{})}
}

func (l *fakeLoader) put(table string, key interface{}, row map[string]interface{}) {
	if l.rows[table] == nil {
		l.rows[table] = make(map[string]map[string]interface{})
	}
	l.rows[table][fmt.Sprintf("%v", key)] = row
}

func (l *fakeLoader) Load(_ context.Context, table string, _ []string, _ string, key interface{}) (map[string]interface{}, error) {
	l.loads++
	row, ok := l.rows[table][fmt.Sprintf("%v", key)]
	if !ok {
		return nil, nil
	}
	return row, nil
}

// fakeSnapshotCache is an in-memory SnapshotCache
type fakeSnapshotCache struct {
	data map[string]map[string]interface{}
}

func newFakeSnapshotCache() *fakeSnapshotCache {
	return &fakeSnapshotCache{data: make(map[string]map[string]interface{})}
}

func (c *fakeSnapshotCache) cacheKey(entityName string, id interface{}) string {
	return fmt.Sprintf("%s:%v", entityName, id)
}

func (c *fakeSnapshotCache) Get(_ context.Context, entityName string, id interface{}) (map[string]interface{}, error) {
	return c.data[c.cacheKey(entityName, id)], nil
}

func (c *fakeSnapshotCache) Set(_ context.Context, entityName string, id interface{}, data map[string]interface{}) error {
	c.data[c.cacheKey(entityName, id)] = data
	return nil
}

func (c *fakeSnapshotCache) Invalidate(_ context.Context, entityName string, id interface{}) error {
	delete(c.data, c.cacheKey(entityName, id))
	return nil
}

// recordingHooks logs callback order; pre-hooks named in vetoes fail
type recordingHooks struct {
	NopHooks
	calls  []string
	vetoes map[string]error
}

func (h *recordingHooks) record(name string) error {
	h.calls = append(h.calls, name)
	if h.vetoes != nil {
		return h.vetoes[name]
	}
	return nil
}

func (h *recordingHooks) PrePersist(context.Context, interface{}) error {
	return h.record("pre-persist")
}

func (h *recordingHooks) PostPersist(context.Context, interface{}) error {
	return h.record("post-persist")
}

func (h *recordingHooks) PreUpdate(context.Context, interface{}, ChangeSet) error {
	return h.record("pre-update")
}

func (h *recordingHooks) PostUpdate(context.Context, interface{}, ChangeSet) error {
	return h.record("post-update")
}

func (h *recordingHooks) PreRemove(context.Context, interface{}) error {
	return h.record("pre-remove")
}

func (h *recordingHooks) PostRemove(context.Context, interface{}) error {
	return h.record("post-remove")
}

func (h *recordingHooks) PreFlush(context.Context) error {
	return h.record("pre-flush")
}

func (h *recordingHooks) PostFlush(context.Context) error {
	return h.record("post-flush")
}

func newTestRegistry() *metadata.Registry {
	return metadata.NewRegistry()
}
