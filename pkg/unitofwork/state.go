package unitofwork

import "time"

// Lifecycle is the stage of an entity's relationship to the store
type Lifecycle int

const (
	// StateNew marks an entity that exists only in memory, without a
	// persisted identifier
	StateNew Lifecycle = iota

	// StateManaged marks a tracked entity synchronized with the store as
	// of its last load or flush
	StateManaged

	// StateDetached marks an entity whose tracking was explicitly stopped
	StateDetached

	// StateRemoved marks an entity scheduled for deletion, not yet flushed
	StateRemoved
)

// String returns the lifecycle name
func (l Lifecycle) String() string {
	switch l {
	case StateNew:
		return "NEW"
	case StateManaged:
		return "MANAGED"
	case StateDetached:
		return "DETACHED"
	case StateRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// legalTransitions is the full allowed set. REMOVED has no outgoing
// transition: a flushed deletion purges the entry instead.
var legalTransitions = map[Lifecycle][]Lifecycle{
	StateNew:      {StateManaged},
	StateManaged:  {StateRemoved, StateDetached},
	StateDetached: {StateManaged},
	StateRemoved:  {},
}

// CanTransition is a pure predicate over the lifecycle pair
func CanTransition(from, to Lifecycle) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// EntityState is the per-entity tracking record. States are immutable:
// every transition or snapshot refresh produces a replacement record, so
// snapshots taken for comparison are never mutated underneath a flush.
type EntityState struct {
	// EntityName is the type tag of the tracked entity
	EntityName string

	// Lifecycle is the current stage
	Lifecycle Lifecycle

	// OriginalData maps property names to their last-synchronized values
	OriginalData map[string]interface{}

	// LoadedAt records when tracking began
	LoadedAt time.Time

	// LastModified records the most recent transition or snapshot refresh
	LastModified time.Time
}

// NewEntityState creates the initial tracking record for an entity
func NewEntityState(entityName string, lifecycle Lifecycle, snapshot map[string]interface{}) *EntityState {
	now := time.Now().UTC()
	return &EntityState{
		EntityName:   entityName,
		Lifecycle:    lifecycle,
		OriginalData: copySnapshot(snapshot),
		LoadedAt:     now,
	}
}

// Transition returns a replacement record in the target lifecycle, or an
// IllegalTransitionError when the pair is not in the allowed set. Illegal
// transitions fail loudly: silently ignoring them masks application bugs
// that end in lost writes.
func (s *EntityState) Transition(to Lifecycle) (*EntityState, error) {
	if !CanTransition(s.Lifecycle, to) {
		return nil, &IllegalTransitionError{
			EntityName: s.EntityName,
			From:       s.Lifecycle,
			To:         to,
		}
	}
	next := s.clone()
	next.Lifecycle = to
	next.LastModified = time.Now().UTC()
	return next, nil
}

// WithSnapshot returns a replacement record carrying a fresh
// last-synchronized snapshot
func (s *EntityState) WithSnapshot(snapshot map[string]interface{}) *EntityState {
	next := s.clone()
	next.OriginalData = copySnapshot(snapshot)
	next.LastModified = time.Now().UTC()
	return next
}

func (s *EntityState) clone() *EntityState {
	cp := *s
	cp.OriginalData = copySnapshot(s.OriginalData)
	return &cp
}

func copySnapshot(snapshot map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(snapshot))
	for k, v := range snapshot {
		cp[k] = v
	}
	return cp
}
