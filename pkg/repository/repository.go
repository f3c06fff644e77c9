package repository

import (
	"context"
	"fmt"

	"github.com/ammar0144/orm4go/pkg/unitofwork"
)

// Repository is a typed convenience wrapper around a unit-of-work
// session. It exists so application code works with *T instead of
// interface{}; every call delegates to the session, so entities reached
// through a Repository and through the Session directly share the same
// identity map and worklists.
//
// Like the session it wraps, a Repository is not safe for concurrent use.
type Repository[T any] struct {
	session *unitofwork.Session
}

// New creates a typed repository on top of an existing session
func New[T any](session *unitofwork.Session) *Repository[T] {
	return &Repository[T]{session: session}
}

// Session returns the underlying unit-of-work session
func (r *Repository[T]) Session() *unitofwork.Session {
	return r.session
}

// Find returns the entity with the given identifier, or nil when no such
// row exists. Repeated calls for the same identifier return the same
// instance.
func (r *Repository[T]) Find(ctx context.Context, id interface{}) (*T, error) {
	var prototype T
	entity, err := r.session.Find(ctx, &prototype, id)
	if err != nil || entity == nil {
		return nil, err
	}
	typed, ok := entity.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected entity type %T", entity)
	}
	return typed, nil
}

// Persist registers a new entity for insertion on the next Flush
func (r *Repository[T]) Persist(ctx context.Context, entity *T) error {
	return r.session.Persist(ctx, entity)
}

// Remove schedules a managed entity for deletion on the next Flush
func (r *Repository[T]) Remove(ctx context.Context, entity *T) error {
	return r.session.Remove(ctx, entity)
}

// Detach releases an entity from tracking without touching the store
func (r *Repository[T]) Detach(entity *T) error {
	return r.session.Detach(entity)
}

// Merge folds the state of a detached or foreign instance into the
// session and returns the managed instance
func (r *Repository[T]) Merge(ctx context.Context, entity *T) (*T, error) {
	managed, err := r.session.Merge(ctx, entity)
	if err != nil {
		return nil, err
	}
	typed, ok := managed.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected entity type %T", managed)
	}
	return typed, nil
}

// Contains reports whether the entity is tracked by the session
func (r *Repository[T]) Contains(entity *T) bool {
	return r.session.Contains(entity)
}

// HasChanges reports whether the entity has unflushed modifications
func (r *Repository[T]) HasChanges(entity *T) (bool, error) {
	return r.session.HasChanges(entity)
}

// Changes returns the entity's pending delta relative to its last
// synchronized snapshot
func (r *Repository[T]) Changes(entity *T) (unitofwork.ChangeSet, error) {
	return r.session.Changes(entity)
}

// Flush synchronizes all pending work in the session, not only entities
// of this repository's type
func (r *Repository[T]) Flush(ctx context.Context) error {
	return r.session.Flush(ctx)
}
