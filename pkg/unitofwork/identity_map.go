package unitofwork

import (
	"fmt"
	"time"
)

// identityKey addresses one slot per (entity type, identifier) pair.
// Identifiers are normalized to strings so int, int64 and string keys
// for the same row land on the same slot.
type identityKey struct {
	entityName string
	id         string
}

func newIdentityKey(entityName string, id interface{}) identityKey {
	return identityKey{entityName: entityName, id: fmt.Sprintf("%v", id)}
}

// IdentityMap guarantees at most one tracked instance per (type,
// identifier) for the lifetime of the map: repeated lookups for the same
// id return the same object reference, never a fresh copy.
//
// The map belongs to exactly one session and is mutated only by that
// session's own calls, so it carries no locking. Entities are held by
// strong reference; long-running batches bound memory with Clear, which
// is also the session-level contract (see the package documentation for
// the weak-reference trade-off).
type IdentityMap struct {
	entities map[identityKey]interface{}
	keys     map[interface{}]identityKey
	states   map[interface{}]*EntityState
	accessed map[interface{}]time.Time

	// order preserves first-tracked order so EntitiesByState and flush
	// phases are deterministic
	order []interface{}
}

// NewIdentityMap creates an empty identity map
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		entities: make(map[identityKey]interface{}),
		keys:     make(map[interface{}]identityKey),
		states:   make(map[interface{}]*EntityState),
		accessed: make(map[interface{}]time.Time),
	}
}

// Add registers an entity. When an identifier is supplied the (type, id)
// slot is claimed; entities without one (NEW) are tracked by state only
// until Index is called after their insert. A slot already held by a
// different live instance is a uniqueness violation and is rejected with
// an IdentityConflictError before any bookkeeping changes. Re-adding an
// already-tracked entity refreshes access bookkeeping, not identity.
func (m *IdentityMap) Add(entity interface{}, state *EntityState, id interface{}) error {
	var key identityKey
	if id != nil {
		key = newIdentityKey(state.EntityName, id)
		if existing, occupied := m.entities[key]; occupied && existing != entity {
			return &IdentityConflictError{EntityName: state.EntityName, ID: id}
		}
	}

	if _, tracked := m.states[entity]; !tracked {
		m.order = append(m.order, entity)
	}
	m.states[entity] = state
	m.accessed[entity] = time.Now().UTC()

	if id != nil {
		m.entities[key] = entity
		m.keys[entity] = key
	}
	return nil
}

// Index claims the (type, id) slot for an already-tracked entity, used
// when a generated identifier becomes known after an insert
func (m *IdentityMap) Index(entity interface{}, id interface{}) error {
	state, ok := m.states[entity]
	if !ok {
		return fmt.Errorf("cannot index entity: %w", ErrNotTracked)
	}
	key := newIdentityKey(state.EntityName, id)
	m.entities[key] = entity
	m.keys[entity] = key
	return nil
}

// Get returns the live tracked instance for (type, id), or nil
func (m *IdentityMap) Get(entityName string, id interface{}) (interface{}, bool) {
	entity, ok := m.entities[newIdentityKey(entityName, id)]
	if !ok {
		return nil, false
	}
	m.accessed[entity] = time.Now().UTC()
	return entity, true
}

// Contains reports whether the entity is tracked
func (m *IdentityMap) Contains(entity interface{}) bool {
	_, ok := m.states[entity]
	return ok
}

// Remove purges both the (type, id) slot and the state record
func (m *IdentityMap) Remove(entity interface{}) {
	if key, ok := m.keys[entity]; ok {
		if m.entities[key] == entity {
			delete(m.entities, key)
		}
		delete(m.keys, entity)
	}
	if _, ok := m.states[entity]; ok {
		delete(m.states, entity)
		delete(m.accessed, entity)
		m.dropFromOrder(entity)
	}
}

// Unindex releases the (type, id) slot while keeping the state record,
// used on detach so the instance stops answering Find without losing its
// lifecycle bookkeeping
func (m *IdentityMap) Unindex(entity interface{}) {
	if key, ok := m.keys[entity]; ok {
		if m.entities[key] == entity {
			delete(m.entities, key)
		}
		delete(m.keys, entity)
	}
}

// TrackedEntities returns all tracked entities of the given type in
// first-tracked order; an empty name matches everything
func (m *IdentityMap) TrackedEntities(entityName string) []interface{} {
	var out []interface{}
	for _, entity := range m.order {
		if state, ok := m.states[entity]; ok {
			if entityName == "" || state.EntityName == entityName {
				out = append(out, entity)
			}
		}
	}
	return out
}

// Metadata returns the entity's tracking record, or nil when untracked
func (m *IdentityMap) Metadata(entity interface{}) *EntityState {
	return m.states[entity]
}

// UpdateMetadata replaces the tracking record. It fails for entities
// that were never added; silent record creation would hide bugs.
func (m *IdentityMap) UpdateMetadata(entity interface{}, state *EntityState) error {
	if _, ok := m.states[entity]; !ok {
		return fmt.Errorf("cannot update metadata: %w", ErrNotTracked)
	}
	m.states[entity] = state
	return nil
}

// EntitiesByState returns all tracked entities in the given lifecycle,
// in first-tracked order
func (m *IdentityMap) EntitiesByState(lifecycle Lifecycle) []interface{} {
	var out []interface{}
	for _, entity := range m.order {
		if state, ok := m.states[entity]; ok && state.Lifecycle == lifecycle {
			out = append(out, entity)
		}
	}
	return out
}

// Len returns the number of tracked entities
func (m *IdentityMap) Len() int {
	return len(m.states)
}

// Clear drops all tracked entities of the given type, or everything
// when entityName is empty
func (m *IdentityMap) Clear(entityName string) {
	if entityName == "" {
		m.entities = make(map[identityKey]interface{})
		m.keys = make(map[interface{}]identityKey)
		m.states = make(map[interface{}]*EntityState)
		m.accessed = make(map[interface{}]time.Time)
		m.order = nil
		return
	}
	var victims []interface{}
	for entity, state := range m.states {
		if state.EntityName == entityName {
			victims = append(victims, entity)
		}
	}
	for _, entity := range victims {
		m.Remove(entity)
	}
}

func (m *IdentityMap) dropFromOrder(entity interface{}) {
	for i, e := range m.order {
		if e == entity {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
