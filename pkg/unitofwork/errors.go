package unitofwork

import (
	"errors"
	"fmt"
)

// Sentinel errors for session bookkeeping
var (
	// ErrNotTracked is returned when an operation requires an entity the
	// session has never seen
	ErrNotTracked = errors.New("entity is not tracked by this session")

	// ErrNotManaged is returned when an operation is only legal for
	// MANAGED entities
	ErrNotManaged = errors.New("entity is not managed by this session")

	// ErrDetached is returned when Persist is called on a detached
	// entity; re-attaching requires Merge
	ErrDetached = errors.New("entity is detached; use Merge to re-attach")

	// ErrNoLoader is returned when Find misses every cache and no row
	// loader was configured for the session
	ErrNoLoader = errors.New("session has no row loader configured")
)

// IdentityConflictError reports an attempt to track a second live
// instance under a (type, identifier) slot that is already occupied. The
// tracked instance stays authoritative; values carried by the foreign
// instance are folded in through Merge.
type IdentityConflictError struct {
	EntityName string
	ID         interface{}
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identifier %v of %s is already tracked by another instance", e.ID, e.EntityName)
}

// IsIdentityConflict checks if an error is an IdentityConflictError
func IsIdentityConflict(err error) bool {
	var target *IdentityConflictError
	return errors.As(err, &target)
}

// IllegalTransitionError reports a lifecycle transition outside the
// allowed set. It is always surfaced, never swallowed.
type IllegalTransitionError struct {
	EntityName string
	From       Lifecycle
	To         Lifecycle
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition for %s: %s -> %s", e.EntityName, e.From, e.To)
}

// IsIllegalTransition checks if an error is an IllegalTransitionError
func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}

// UnidentifiableEntityError reports an operation that required an
// extractable identifier on an entity that has none
type UnidentifiableEntityError struct {
	EntityName string
	Operation  string
}

func (e *UnidentifiableEntityError) Error() string {
	return fmt.Sprintf("%s requires an identifier on entity %s but none is set", e.Operation, e.EntityName)
}

// IsUnidentifiable checks if an error is an UnidentifiableEntityError
func IsUnidentifiable(err error) bool {
	var target *UnidentifiableEntityError
	return errors.As(err, &target)
}

// PersistenceError reports a failed statement execution during flush,
// carrying enough context to log or retry. A failed flush leaves change
// sets and worklists intact, so calling Flush again is safe.
type PersistenceError struct {
	EntityName string
	Operation  string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed for entity %s: %v", e.Operation, e.EntityName, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistenceFailure checks if an error is a PersistenceError
func IsPersistenceFailure(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// HydrationError reports a load that could not populate an entity
// property. It is fatal for the single Find that raised it, not for the
// session.
type HydrationError struct {
	EntityName string
	Property   string
	Err        error
}

func (e *HydrationError) Error() string {
	return fmt.Sprintf("failed to hydrate %s.%s: %v", e.EntityName, e.Property, e.Err)
}

func (e *HydrationError) Unwrap() error {
	return e.Err
}

// ValidationError reports a pre-hook veto. The flush aborts before the
// vetoed statement runs; a pre-flush veto aborts before any statement.
type ValidationError struct {
	EntityName string
	Hook       string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.EntityName == "" {
		return fmt.Sprintf("%s hook rejected flush: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("%s hook rejected entity %s: %v", e.Hook, e.EntityName, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
