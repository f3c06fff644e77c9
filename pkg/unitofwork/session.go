package unitofwork

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ammar0144/orm4go/pkg/metadata"
)

// SessionConfig tunes an individual session
type SessionConfig struct {
	// Detector configures change detection (float epsilon)
	Detector DetectorConfig `json:"detector" yaml:"detector"`

	// Hooks receives lifecycle notifications; nil selects NopHooks
	Hooks Hooks `json:"-" yaml:"-"`

	// Logger receives structured flush diagnostics; nil selects a no-op
	Logger *zap.Logger `json:"-" yaml:"-"`
}

// Session is one unit of work: an identity map, a scheduler and a change
// detector cooperating over a single logical store conversation. Persist,
// Remove, Detach and Merge record intent; Flush turns accumulated intent
// into ordered statements through the Executor.
//
// A Session is deliberately not safe for concurrent use. It models one
// request or one batch job; a second goroutine gets its own Session
// against the same Registry and Executor.
type Session struct {
	id        string
	registry  *metadata.Registry
	identity  *IdentityMap
	scheduler *Scheduler
	detector  *Detector
	executor  Executor
	loader    Loader
	snapshots SnapshotCache
	hooks     Hooks
	logger    *zap.Logger
	metrics   *Metrics

	// changeSets holds the deltas computed by the last flush attempt;
	// cleared only when the flush fully succeeds so a failed flush stays
	// retryable
	changeSets map[interface{}]ChangeSet

	// pending accumulates the identity-map and cache side effects of the
	// update and delete phases; they are applied only once every
	// statement of the flush has succeeded
	pending []pendingSync
}

// NewSession creates a unit-of-work session. loader and snapshots may be
// nil: without a loader Find only answers from the identity map and
// snapshot cache, and without a snapshot cache Find goes straight to the
// loader. config may be nil for defaults.
func NewSession(registry *metadata.Registry, executor Executor, loader Loader, snapshots SnapshotCache, config *SessionConfig) *Session {
	if config == nil {
		config = &SessionConfig{}
	}
	hooks := config.Hooks
	if hooks == nil {
		hooks = NopHooks{}
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessionID := uuid.NewString()
	s := &Session{
		id:         sessionID,
		registry:   registry,
		identity:   NewIdentityMap(),
		detector:   NewDetector(registry, &config.Detector),
		executor:   executor,
		loader:     loader,
		snapshots:  snapshots,
		hooks:      hooks,
		logger:     logger.With(zap.String("session_id", sessionID)),
		metrics:    NewMetrics(),
		changeSets: make(map[interface{}]ChangeSet),
	}
	s.scheduler = NewScheduler(s.identity, s.identifierOf)
	return s
}

// ID returns the session's correlation id
func (s *Session) ID() string {
	return s.id
}

// Metrics returns the session's performance counters
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Statistics returns the current scheduler worklist sizes
func (s *Session) Statistics() SchedulerStatistics {
	return s.scheduler.Statistics()
}

// Contains reports whether the entity is tracked and visible to this
// session. Detached entities keep their state record for Merge but are
// invisible here, matching their exclusion from Find and flush.
func (s *Session) Contains(entity interface{}) bool {
	state := s.identity.Metadata(entity)
	return state != nil && state.Lifecycle != StateDetached
}

// LifecycleOf returns the entity's lifecycle state, when tracked
func (s *Session) LifecycleOf(entity interface{}) (Lifecycle, bool) {
	state := s.identity.Metadata(entity)
	if state == nil {
		return 0, false
	}
	return state.Lifecycle, true
}

// Persist starts tracking an entity and schedules it for insertion. An
// entity that already carries an application-assigned identifier is
// attached as MANAGED instead: it has identity, so it cannot be a fresh
// insert. Persisting a removed entity is an illegal transition, and a
// detached one must be re-attached through Merge.
func (s *Session) Persist(ctx context.Context, entity interface{}) error {
	meta, err := s.registry.Of(entity)
	if err != nil {
		return err
	}
	if meta.Identifier == nil {
		return &UnidentifiableEntityError{EntityName: meta.EntityName, Operation: "persist"}
	}

	if state := s.identity.Metadata(entity); state != nil {
		switch state.Lifecycle {
		case StateNew, StateManaged:
			return nil
		case StateDetached:
			return fmt.Errorf("cannot persist %s: %w", meta.EntityName, ErrDetached)
		case StateRemoved:
			return &IllegalTransitionError{EntityName: meta.EntityName, From: StateRemoved, To: StateManaged}
		}
	}

	if err := s.hooks.PrePersist(ctx, entity); err != nil {
		return &ValidationError{EntityName: meta.EntityName, Hook: "pre-persist", Err: err}
	}

	id, present, err := meta.IdentifierValue(entity)
	if err != nil {
		return err
	}
	if present {
		snapshot, err := s.detector.ExtractCurrentData(entity)
		if err != nil {
			return err
		}
		if err := s.identity.Add(entity, NewEntityState(meta.EntityName, StateManaged, snapshot), id); err != nil {
			return err
		}
		s.logger.Debug("attached entity with assigned identifier",
			zap.String("entity", meta.EntityName), zap.Any("id", id))
		return nil
	}

	if err := s.identity.Add(entity, NewEntityState(meta.EntityName, StateNew, nil), nil); err != nil {
		return err
	}
	return s.scheduler.ScheduleForInsertion(entity)
}

// Remove schedules a managed entity for deletion. Removing a NEW entity
// simply cancels its pending insert; removing an already-removed entity
// is idempotent.
func (s *Session) Remove(ctx context.Context, entity interface{}) error {
	state := s.identity.Metadata(entity)
	if state == nil {
		return fmt.Errorf("cannot remove untracked entity: %w", ErrNotTracked)
	}

	switch state.Lifecycle {
	case StateRemoved:
		return nil
	case StateNew:
		s.scheduler.RemoveFromSchedule(entity)
		s.identity.Remove(entity)
		delete(s.changeSets, entity)
		return nil
	case StateDetached:
		return &IllegalTransitionError{EntityName: state.EntityName, From: StateDetached, To: StateRemoved}
	}

	if err := s.hooks.PreRemove(ctx, entity); err != nil {
		return &ValidationError{EntityName: state.EntityName, Hook: "pre-remove", Err: err}
	}
	return s.scheduler.ScheduleForDeletion(entity)
}

// Detach stops tracking an entity: it leaves every worklist, stops
// answering Find and becomes invisible to change detection until merged
// back. Detaching an untracked entity is a no-op.
func (s *Session) Detach(entity interface{}) error {
	state := s.identity.Metadata(entity)
	if state == nil {
		return nil
	}

	switch state.Lifecycle {
	case StateDetached:
		return nil
	case StateNew:
		s.scheduler.RemoveFromSchedule(entity)
		s.identity.Remove(entity)
		delete(s.changeSets, entity)
		return nil
	case StateRemoved:
		return &IllegalTransitionError{EntityName: state.EntityName, From: StateRemoved, To: StateDetached}
	}

	next, err := state.Transition(StateDetached)
	if err != nil {
		return err
	}
	s.scheduler.RemoveFromSchedule(entity)
	delete(s.changeSets, entity)
	if err := s.identity.UpdateMetadata(entity, next); err != nil {
		return err
	}
	s.identity.Unindex(entity)
	return nil
}

// Merge re-attaches a detached entity. When the session already tracks a
// managed instance under the same identifier, the detached values are
// copied onto it (identifier excluded) and the managed instance is
// returned; otherwise the given instance itself becomes managed again.
// Entities without an extractable identifier are rejected.
func (s *Session) Merge(ctx context.Context, entity interface{}) (interface{}, error) {
	meta, err := s.registry.Of(entity)
	if err != nil {
		return nil, err
	}
	id, present, err := meta.IdentifierValue(entity)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, &UnidentifiableEntityError{EntityName: meta.EntityName, Operation: "merge"}
	}

	if managed, ok := s.identity.Get(meta.EntityName, id); ok && managed != entity {
		for _, p := range meta.Properties {
			if p.Identifier {
				continue
			}
			v, err := meta.Get(entity, p)
			if err != nil {
				return nil, err
			}
			if err := meta.Set(managed, p, v); err != nil {
				return nil, err
			}
		}
		s.logger.Debug("merged detached values onto managed instance",
			zap.String("entity", meta.EntityName), zap.Any("id", id))
		return managed, nil
	}

	if state := s.identity.Metadata(entity); state != nil {
		if state.Lifecycle == StateManaged {
			return entity, nil
		}
		next, err := state.Transition(StateManaged)
		if err != nil {
			return nil, err
		}
		if err := s.identity.UpdateMetadata(entity, next); err != nil {
			return nil, err
		}
		if err := s.identity.Index(entity, id); err != nil {
			return nil, err
		}
		return entity, nil
	}

	// instance detached from another session: re-register with an empty
	// snapshot, so the next flush writes all of its columns
	if err := s.identity.Add(entity, NewEntityState(meta.EntityName, StateManaged, nil), id); err != nil {
		return nil, err
	}
	return entity, nil
}

// Find returns the entity of the prototype's type with the given
// identifier. An identity-map hit returns the already-tracked instance,
// never a fresh copy; misses consult the snapshot cache and then the row
// loader, registering the hydrated instance as MANAGED. A nil, nil
// return means the row does not exist.
func (s *Session) Find(ctx context.Context, prototype interface{}, id interface{}) (interface{}, error) {
	meta, err := s.registry.Of(prototype)
	if err != nil {
		return nil, err
	}
	if meta.Identifier == nil {
		return nil, &UnidentifiableEntityError{EntityName: meta.EntityName, Operation: "find"}
	}

	if entity, ok := s.identity.Get(meta.EntityName, id); ok {
		s.metrics.RecordIdentityHit()
		return entity, nil
	}
	s.metrics.RecordIdentityMiss()

	if s.snapshots != nil {
		data, err := s.snapshots.Get(ctx, meta.EntityName, id)
		if err == nil && data != nil {
			entity, err := s.hydrateFromSnapshot(meta, data)
			if err == nil {
				snapshot, err := s.detector.ExtractCurrentData(entity)
				if err != nil {
					return nil, err
				}
				if err := s.identity.Add(entity, NewEntityState(meta.EntityName, StateManaged, snapshot), id); err != nil {
					return nil, err
				}
				s.logger.Debug("hydrated entity from snapshot cache",
					zap.String("entity", meta.EntityName), zap.Any("id", id))
				return entity, nil
			}
			// a snapshot the codec mangled is not fatal for the Find
			s.logger.Debug("cached snapshot unusable, falling back to loader",
				zap.String("entity", meta.EntityName), zap.Error(err))
		}
	}

	if s.loader == nil {
		return nil, fmt.Errorf("find %s: %w", meta.EntityName, ErrNoLoader)
	}

	columns := make([]string, 0, len(meta.Properties))
	for _, p := range meta.Properties {
		if p.IsColumn() {
			columns = append(columns, p.Column)
		}
	}
	row, err := s.loader.Load(ctx, meta.TableName, columns, meta.Identifier.Column, id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", meta.EntityName, err)
	}
	if row == nil {
		return nil, nil
	}

	entity := meta.NewInstance()
	for _, p := range meta.Properties {
		if !p.IsColumn() {
			continue
		}
		value, ok := row[p.Column]
		if !ok {
			continue
		}
		if err := meta.Set(entity, p, value); err != nil {
			return nil, &HydrationError{EntityName: meta.EntityName, Property: p.Name, Err: err}
		}
	}

	snapshot, err := s.detector.ExtractCurrentData(entity)
	if err != nil {
		return nil, err
	}
	if err := s.identity.Add(entity, NewEntityState(meta.EntityName, StateManaged, snapshot), id); err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, meta, id, snapshot)
	return entity, nil
}

// HasChanges reports whether the entity's current values differ from its
// last-synchronized snapshot. Untracked and detached entities report
// false.
func (s *Session) HasChanges(entity interface{}) (bool, error) {
	cs, err := s.Changes(entity)
	if err != nil {
		return false, err
	}
	return !cs.Empty(), nil
}

// Changes computes the entity's current ChangeSet on demand
func (s *Session) Changes(entity interface{}) (ChangeSet, error) {
	state := s.identity.Metadata(entity)
	if state == nil || state.Lifecycle == StateDetached {
		return ChangeSet{}, nil
	}
	return s.detector.ComputeChangeSet(entity, state.OriginalData)
}

// Clear drops tracked entities of the given type, or everything when
// entityName is empty, along with their pending scheduling. Long-running
// batches call this periodically to bound memory growth.
func (s *Session) Clear(entityName string) {
	if entityName == "" {
		s.identity.Clear("")
		s.scheduler.Clear()
		s.changeSets = make(map[interface{}]ChangeSet)
		return
	}
	for _, entity := range s.identity.TrackedEntities(entityName) {
		s.scheduler.RemoveFromSchedule(entity)
		delete(s.changeSets, entity)
	}
	s.identity.Clear(entityName)
}

// identifierOf adapts metadata identifier extraction for the scheduler
func (s *Session) identifierOf(entity interface{}) (interface{}, bool, error) {
	meta, err := s.registry.Of(entity)
	if err != nil {
		return nil, false, err
	}
	if meta.Identifier == nil {
		return nil, false, &UnidentifiableEntityError{EntityName: meta.EntityName, Operation: "schedule"}
	}
	return meta.IdentifierValue(entity)
}

// hydrateFromSnapshot rebuilds an entity instance from a cached
// property-name snapshot
func (s *Session) hydrateFromSnapshot(meta *metadata.EntityMetadata, data map[string]interface{}) (interface{}, error) {
	entity := meta.NewInstance()
	for name, value := range data {
		p := meta.Property(name)
		if p == nil || !p.IsColumn() || value == nil {
			continue
		}
		if err := meta.Set(entity, p, value); err != nil {
			return nil, &HydrationError{EntityName: meta.EntityName, Property: name, Err: err}
		}
	}
	return entity, nil
}

// cacheSnapshot writes a snapshot to the shared cache, best effort.
// Only column properties are cached: relation values do not survive the
// cache codec as their Go types, and the loader never produces them
// either.
func (s *Session) cacheSnapshot(ctx context.Context, meta *metadata.EntityMetadata, id interface{}, snapshot map[string]interface{}) {
	if s.snapshots == nil || id == nil {
		return
	}
	columns := make(map[string]interface{}, len(snapshot))
	for name, value := range snapshot {
		if p := meta.Property(name); p != nil && p.IsColumn() {
			columns[name] = value
		}
	}
	if err := s.snapshots.Set(ctx, meta.EntityName, id, columns); err != nil {
		s.logger.Debug("snapshot cache write failed",
			zap.String("entity", meta.EntityName), zap.Error(err))
	}
}

// invalidateSnapshot drops a snapshot from the shared cache, best effort
func (s *Session) invalidateSnapshot(ctx context.Context, entityName string, id interface{}) {
	if s.snapshots == nil || id == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx, entityName, id); err != nil {
		s.logger.Debug("snapshot cache invalidation failed",
			zap.String("entity", entityName), zap.Error(err))
	}
}
