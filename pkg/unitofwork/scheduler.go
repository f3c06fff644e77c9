package unitofwork

import "fmt"

// scheduleKind identifies which worklist holds an entity
type scheduleKind int

const (
	scheduleNone scheduleKind = iota
	scheduleInsert
	scheduleUpdate
	scheduleDelete
)

// SchedulerStatistics are the current worklist sizes
type SchedulerStatistics struct {
	Insertions int `json:"insertions"`
	Updates    int `json:"updates"`
	Deletions  int `json:"deletions"`
}

// Scheduler keeps the three pending-operation worklists consulted at
// flush time. Entities are keyed by identity, not value, and each entity
// is present in at most one worklist at a time: moving an entity between
// worklists removes it from the others atomically, which is what prevents
// issuing both an INSERT and an UPDATE for the same new row.
//
// Worklists preserve scheduling order so flush phases are deterministic.
type Scheduler struct {
	insertions []interface{}
	updates    []interface{}
	deletions  []interface{}
	scheduled  map[interface{}]scheduleKind

	identity   *IdentityMap
	identifier func(entity interface{}) (interface{}, bool, error)
}

// NewScheduler creates a scheduler bound to a session's identity map.
// The identifier func extracts an entity's id; scheduling decisions need
// it to reject inserts of rows that already carry one.
func NewScheduler(identity *IdentityMap, identifier func(entity interface{}) (interface{}, bool, error)) *Scheduler {
	return &Scheduler{
		scheduled:  make(map[interface{}]scheduleKind),
		identity:   identity,
		identifier: identifier,
	}
}

// ScheduleForInsertion queues an entity for INSERT. Re-scheduling is a
// no-op, as is scheduling an entity that already carries an identifier:
// a row with an id cannot be a fresh insert.
func (s *Scheduler) ScheduleForInsertion(entity interface{}) error {
	if s.scheduled[entity] == scheduleInsert {
		return nil
	}
	if _, present, err := s.identifier(entity); err != nil {
		return fmt.Errorf("cannot schedule insertion: %w", err)
	} else if present {
		return nil
	}
	s.unschedule(entity)
	s.insertions = append(s.insertions, entity)
	s.scheduled[entity] = scheduleInsert
	return nil
}

// ScheduleForUpdate queues a MANAGED entity for UPDATE. Idempotent; an
// entity already queued for insertion or deletion stays where it is, the
// insert or delete already covers the pending change.
func (s *Scheduler) ScheduleForUpdate(entity interface{}) error {
	switch s.scheduled[entity] {
	case scheduleUpdate, scheduleInsert, scheduleDelete:
		return nil
	}
	state := s.identity.Metadata(entity)
	if state == nil {
		return fmt.Errorf("cannot schedule update: %w", ErrNotTracked)
	}
	if state.Lifecycle != StateManaged {
		return fmt.Errorf("cannot schedule update for %s entity %s: %w",
			state.Lifecycle, state.EntityName, ErrNotManaged)
	}
	s.updates = append(s.updates, entity)
	s.scheduled[entity] = scheduleUpdate
	return nil
}

// ScheduleForDeletion queues a MANAGED entity for DELETE and transitions
// it to REMOVED, which blocks any further update scheduling. Entities
// pending insertion cannot be scheduled: they have no row to delete.
func (s *Scheduler) ScheduleForDeletion(entity interface{}) error {
	if s.scheduled[entity] == scheduleDelete {
		return nil
	}
	if s.scheduled[entity] == scheduleInsert {
		state := s.identity.Metadata(entity)
		return &IllegalTransitionError{EntityName: state.EntityName, From: StateNew, To: StateRemoved}
	}
	state := s.identity.Metadata(entity)
	if state == nil {
		return fmt.Errorf("cannot schedule deletion: %w", ErrNotTracked)
	}
	next, err := state.Transition(StateRemoved)
	if err != nil {
		return err
	}
	if err := s.identity.UpdateMetadata(entity, next); err != nil {
		return err
	}
	s.unschedule(entity)
	s.deletions = append(s.deletions, entity)
	s.scheduled[entity] = scheduleDelete
	return nil
}

// RemoveFromSchedule drops an entity from every worklist, used during
// detach and merge to keep bookkeeping consistent
func (s *Scheduler) RemoveFromSchedule(entity interface{}) {
	s.unschedule(entity)
}

// IsScheduledForInsertion reports whether the entity is pending INSERT
func (s *Scheduler) IsScheduledForInsertion(entity interface{}) bool {
	return s.scheduled[entity] == scheduleInsert
}

// IsScheduled reports whether the entity is in any worklist
func (s *Scheduler) IsScheduled(entity interface{}) bool {
	return s.scheduled[entity] != scheduleNone
}

// Insertions returns the pending inserts in scheduling order
func (s *Scheduler) Insertions() []interface{} {
	return append([]interface{}(nil), s.insertions...)
}

// Updates returns the pending updates in scheduling order
func (s *Scheduler) Updates() []interface{} {
	return append([]interface{}(nil), s.updates...)
}

// Deletions returns the pending deletes in scheduling order
func (s *Scheduler) Deletions() []interface{} {
	return append([]interface{}(nil), s.deletions...)
}

// Statistics returns the current worklist sizes
func (s *Scheduler) Statistics() SchedulerStatistics {
	return SchedulerStatistics{
		Insertions: len(s.insertions),
		Updates:    len(s.updates),
		Deletions:  len(s.deletions),
	}
}

// Clear empties all worklists after a fully successful flush
func (s *Scheduler) Clear() {
	s.insertions = nil
	s.updates = nil
	s.deletions = nil
	s.scheduled = make(map[interface{}]scheduleKind)
}

func (s *Scheduler) unschedule(entity interface{}) {
	switch s.scheduled[entity] {
	case scheduleInsert:
		s.insertions = dropEntity(s.insertions, entity)
	case scheduleUpdate:
		s.updates = dropEntity(s.updates, entity)
	case scheduleDelete:
		s.deletions = dropEntity(s.deletions, entity)
	}
	delete(s.scheduled, entity)
}

func dropEntity(list []interface{}, entity interface{}) []interface{} {
	for i, e := range list {
		if e == entity {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
