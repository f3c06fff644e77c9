package metadata

import "errors"

// Sentinel errors for metadata resolution
var (
	// ErrNotAPointer is returned when an entity is not a non-nil struct pointer
	ErrNotAPointer = errors.New("entity must be a non-nil struct pointer")

	// ErrNotAStruct is returned when a type cannot be parsed as an entity
	ErrNotAStruct = errors.New("entity type must be a struct")

	// ErrNoIdentifier is returned when an operation requires a primary key
	// but the entity type declares none
	ErrNoIdentifier = errors.New("entity type has no identifier property")

	// ErrUnknownProperty is returned for lookups of unmapped properties
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownEntity is returned when a type tag resolves to no registered metadata
	ErrUnknownEntity = errors.New("entity type not registered")

	// ErrTypeMismatch is returned when a value cannot be assigned to a property
	ErrTypeMismatch = errors.New("property type mismatch")
)

// IsNoIdentifier checks if an error is ErrNoIdentifier
func IsNoIdentifier(err error) bool {
	return errors.Is(err, ErrNoIdentifier)
}

// IsUnknownEntity checks if an error is ErrUnknownEntity
func IsUnknownEntity(err error) bool {
	return errors.Is(err, ErrUnknownEntity)
}
