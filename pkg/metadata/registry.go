package metadata

import (
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm/schema"
)

// Registry builds and caches EntityMetadata descriptors per Go type.
// Descriptors are produced once through GORM's schema parser, so property
// walks during change detection and flushing are direct field-index reads
// instead of repeated reflection over struct tags.
//
// A Registry is safe for concurrent use and is meant to be shared by all
// sessions against the same model set.
type Registry struct {
	namer      schema.Namer
	parseCache *sync.Map

	mu     sync.RWMutex
	byType map[reflect.Type]*EntityMetadata
	byName map[string]*EntityMetadata
}

// NewRegistry creates an empty metadata registry using GORM's default
// naming strategy for table and column names
func NewRegistry() *Registry {
	return &Registry{
		namer:      schema.NamingStrategy{},
		parseCache: &sync.Map{},
		byType:     make(map[reflect.Type]*EntityMetadata),
		byName:     make(map[string]*EntityMetadata),
	}
}

// Of resolves metadata for an entity instance or prototype pointer
func (r *Registry) Of(entity interface{}) (*EntityMetadata, error) {
	if entity == nil {
		return nil, fmt.Errorf("nil entity: %w", ErrNotAPointer)
	}
	return r.OfType(reflect.TypeOf(entity))
}

// OfType resolves metadata for a struct or struct-pointer type,
// building and caching the descriptor on first use
func (r *Registry) OfType(t reflect.Type) (*EntityMetadata, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %v: %w", t, ErrNotAStruct)
	}

	r.mu.RLock()
	meta, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return meta, nil
	}

	meta, err := r.parse(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.byType[t]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.byType[t] = meta
	r.byName[meta.EntityName] = meta
	r.mu.Unlock()
	return meta, nil
}

// ByName resolves metadata by entity name. Only types previously seen by
// Of/OfType are known; there is no global type scan.
func (r *Registry) ByName(name string) (*EntityMetadata, error) {
	r.mu.RLock()
	meta, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("entity %q: %w", name, ErrUnknownEntity)
	}
	return meta, nil
}

// Probe resolves metadata for a type without surfacing parse failures.
// The change detector uses it to classify arbitrary struct pointers:
// a type that cannot be parsed, or parses without a primary key, is a
// value object rather than an entity reference.
func (r *Registry) Probe(t reflect.Type) *EntityMetadata {
	meta, err := r.OfType(t)
	if err != nil {
		return nil
	}
	return meta
}

// parse builds an EntityMetadata from the GORM schema of the type
func (r *Registry) parse(t reflect.Type) (*EntityMetadata, error) {
	model := reflect.New(t).Interface()
	sch, err := schema.Parse(model, r.parseCache, r.namer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema for %s: %w", t.Name(), err)
	}

	meta := &EntityMetadata{
		EntityName: sch.Name,
		TableName:  sch.Table,
		goType:     t,
		byName:     make(map[string]*Property),
	}

	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		p := &Property{
			Name:          f.Name,
			Column:        f.DBName,
			Identifier:    f.PrimaryKey,
			AutoIncrement: f.AutoIncrement,
			Creatable:     f.Creatable,
			Updatable:     f.Updatable,
			index:         f.StructField.Index,
			fieldType:     f.StructField.Type,
		}
		meta.Properties = append(meta.Properties, p)
		meta.byName[p.Name] = p
		if p.Identifier && meta.Identifier == nil {
			meta.Identifier = p
		}
	}

	for _, rel := range sch.Relationships.Relations {
		if rel.Field == nil || meta.byName[rel.Field.Name] != nil {
			continue
		}
		p := &Property{
			Name:      rel.Field.Name,
			Relation:  relationKind(rel.Type),
			index:     rel.Field.StructField.Index,
			fieldType: rel.Field.StructField.Type,
		}
		meta.Properties = append(meta.Properties, p)
		meta.byName[p.Name] = p
	}

	return meta, nil
}

func relationKind(t schema.RelationshipType) RelationKind {
	switch t {
	case schema.HasOne:
		return RelationHasOne
	case schema.HasMany:
		return RelationHasMany
	case schema.BelongsTo:
		return RelationBelongsTo
	case schema.Many2Many:
		return RelationManyMany
	default:
		return RelationNone
	}
}
