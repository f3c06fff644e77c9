package metadata

import (
	"fmt"
	"reflect"
	"time"
)

// RelationKind classifies a mapped relation property
type RelationKind string

const (
	RelationNone      RelationKind = ""
	RelationHasOne    RelationKind = "has_one"
	RelationHasMany   RelationKind = "has_many"
	RelationBelongsTo RelationKind = "belongs_to"
	RelationManyMany  RelationKind = "many_to_many"
)

// Property describes one mapped property of an entity type
type Property struct {
	// Name is the Go struct field name
	Name string

	// Column is the database column name; empty for pure relation properties
	Column string

	// Relation classifies relation properties (has_one, has_many, ...)
	Relation RelationKind

	// Identifier marks the primary key property
	Identifier bool

	// AutoIncrement marks store-generated identifiers
	AutoIncrement bool

	// Creatable/Updatable mirror the schema flags and control which
	// columns participate in INSERT and UPDATE statements
	Creatable bool
	Updatable bool

	index     []int
	fieldType reflect.Type
}

// IsColumn reports whether the property maps to a storage column
func (p *Property) IsColumn() bool {
	return p.Column != "" && p.Relation == RelationNone
}

// Type returns the Go type of the property
func (p *Property) Type() reflect.Type {
	return p.fieldType
}

// EntityMetadata is the cached descriptor for one entity type.
// It is built once per type by the Registry and replaces per-call
// reflection walks with direct field-index access.
type EntityMetadata struct {
	// EntityName is the bare struct name, used as the identity-map type tag
	EntityName string

	// TableName is the storage table resolved by the naming strategy
	TableName string

	// Identifier is the primary key property; nil for value types
	Identifier *Property

	// Properties lists all mapped properties in declaration order
	Properties []*Property

	goType reflect.Type
	byName map[string]*Property
}

// Type returns the underlying struct type (never a pointer type)
func (m *EntityMetadata) Type() reflect.Type {
	return m.goType
}

// Property returns the named property descriptor or nil
func (m *EntityMetadata) Property(name string) *Property {
	return m.byName[name]
}

// NewInstance allocates a fresh pointer instance of the entity type
func (m *EntityMetadata) NewInstance() interface{} {
	return reflect.New(m.goType).Interface()
}

// Get reads the property value from an entity instance
func (m *EntityMetadata) Get(entity interface{}, p *Property) (interface{}, error) {
	v, err := m.structValue(entity)
	if err != nil {
		return nil, err
	}
	fv := v.FieldByIndex(p.index)
	if !fv.IsValid() {
		return nil, fmt.Errorf("property %s.%s: %w", m.EntityName, p.Name, ErrUnknownProperty)
	}
	return fv.Interface(), nil
}

// Set writes the property value onto an entity instance, converting
// compatible kinds (driver integers, []byte strings, temporal values)
func (m *EntityMetadata) Set(entity interface{}, p *Property, value interface{}) error {
	v, err := m.structValue(entity)
	if err != nil {
		return err
	}
	fv := v.FieldByIndex(p.index)
	if !fv.CanSet() {
		return fmt.Errorf("property %s.%s is not settable", m.EntityName, p.Name)
	}
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	return assign(fv, value, m.EntityName, p.Name)
}

// IdentifierValue extracts the identifier of an entity instance.
// The second return is false when the identifier is absent (zero/nil)
func (m *EntityMetadata) IdentifierValue(entity interface{}) (interface{}, bool, error) {
	if m.Identifier == nil {
		return nil, false, fmt.Errorf("entity %s: %w", m.EntityName, ErrNoIdentifier)
	}
	v, err := m.structValue(entity)
	if err != nil {
		return nil, false, err
	}
	fv := v.FieldByIndex(m.Identifier.index)
	if fv.IsZero() {
		return nil, false, nil
	}
	return fv.Interface(), true, nil
}

// SetIdentifier writes a store-generated identifier back onto the entity
func (m *EntityMetadata) SetIdentifier(entity interface{}, id interface{}) error {
	if m.Identifier == nil {
		return fmt.Errorf("entity %s: %w", m.EntityName, ErrNoIdentifier)
	}
	return m.Set(entity, m.Identifier, id)
}

// structValue dereferences a pointer entity down to its addressable struct value
func (m *EntityMetadata) structValue(entity interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, fmt.Errorf("entity %s: %w", m.EntityName, ErrNotAPointer)
	}
	v = v.Elem()
	if v.Type() != m.goType {
		return reflect.Value{}, fmt.Errorf("entity type %s does not match metadata for %s: %w",
			v.Type(), m.EntityName, ErrTypeMismatch)
	}
	return v, nil
}

// assign converts and sets a value onto a struct field. Driver results
// come back as int64/float64/[]byte/time.Time regardless of the declared
// Go type, so narrowing conversions are applied where they are lossless.
func assign(fv reflect.Value, value interface{}, entityName, propName string) error {
	vv := reflect.ValueOf(value)
	ft := fv.Type()

	if vv.Type().AssignableTo(ft) {
		fv.Set(vv)
		return nil
	}
	if vv.Type().ConvertibleTo(ft) && convertCompatible(vv.Type(), ft) {
		fv.Set(vv.Convert(ft))
		return nil
	}

	// pointer targets take the converted element
	if ft.Kind() == reflect.Ptr {
		elem := reflect.New(ft.Elem())
		if err := assign(elem.Elem(), value, entityName, propName); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	// []byte from the driver for string columns
	if b, ok := value.([]byte); ok && ft.Kind() == reflect.String {
		fv.SetString(string(b))
		return nil
	}

	return fmt.Errorf("property %s.%s: cannot assign %T to %s: %w",
		entityName, propName, value, ft, ErrTypeMismatch)
}

// convertCompatible restricts reflect conversions to same-family kinds so
// an int64 is never silently stuffed into a string column
func convertCompatible(from, to reflect.Type) bool {
	if from == timeType || to == timeType {
		return from == to
	}
	fk, tk := from.Kind(), to.Kind()
	switch {
	case isIntKind(fk) && (isIntKind(tk) || isUintKind(tk)):
		return true
	case isUintKind(fk) && (isIntKind(tk) || isUintKind(tk)):
		return true
	case isFloatKind(fk) && isFloatKind(tk):
		return true
	case isIntKind(fk) && isFloatKind(tk):
		return true
	case fk == reflect.String && tk == reflect.String:
		return true
	}
	return false
}

var timeType = reflect.TypeOf(time.Time{})

func isIntKind(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUintKind(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
