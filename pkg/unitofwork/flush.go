package unitofwork

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ammar0144/orm4go/pkg/metadata"
)

// Flush synchronizes all accumulated intent with the store:
//
//  1. pre-flush hook
//  2. change-set computation; dirty MANAGED entities are auto-scheduled
//     for update, a mutation is itself evidence that an update is owed
//  3. inserts, in scheduling order
//  4. updates, changed columns only
//  5. deletes
//  6. post-flush hook
//  7. cleanup of change sets and worklists
//
// Inserts always precede updates, which always precede deletes, so a row
// inserted in this batch can be referenced by an update and nothing still
// referenced is deleted early. There is no per-row dependency graph
// across inserts: relation owners must enqueue referenced entities ahead
// of the rows that need them (see the package documentation).
//
// The first failing statement aborts the flush with a PersistenceError
// and discards the snapshot refreshes accumulated by the update and
// delete phases. Change sets and worklists are only cleared on full
// success, so once the caller rolls back its transaction the next Flush
// recomputes the outstanding deltas and reissues the updates and
// deletes. Insertions that completed before the failure keep their
// generated identifiers and are not issued again.
func (s *Session) Flush(ctx context.Context) error {
	start := time.Now()
	s.pending = nil

	if err := s.flushPhases(ctx); err != nil {
		s.metrics.RecordFlushFailure()
		s.pending = nil
		s.logger.Error("flush failed", zap.Error(err))
		return err
	}
	stats := s.scheduler.Statistics()
	s.applyPending(ctx)

	hookErr := s.hooks.PostFlush(ctx)

	// statements are committed at this point; cleanup happens even when
	// the post-flush hook complains
	s.changeSets = make(map[interface{}]ChangeSet)
	s.scheduler.Clear()
	s.metrics.RecordFlush(time.Since(start))

	s.logger.Debug("flush completed",
		zap.Int("insertions", stats.Insertions),
		zap.Int("updates", stats.Updates),
		zap.Int("deletions", stats.Deletions),
		zap.Duration("elapsed", time.Since(start)))

	if hookErr != nil {
		return fmt.Errorf("post-flush hook: %w", hookErr)
	}
	return nil
}

// pendingSync is one deferred identity-map side effect of a flushed
// statement: a snapshot refresh after an update, or the purge after a
// delete. Deferring them keeps a failed flush retryable; the caller's
// rollback has then discarded the statements, and the stale snapshots
// make the next attempt recompute and reissue the same work.
type pendingSync struct {
	entity   interface{}
	meta     *metadata.EntityMetadata
	id       interface{}
	snapshot map[string]interface{}
	removed  bool
}

// applyPending commits the deferred side effects once every statement of
// the flush has succeeded
func (s *Session) applyPending(ctx context.Context) {
	for _, p := range s.pending {
		if p.removed {
			s.identity.Remove(p.entity)
			s.invalidateSnapshot(ctx, p.meta.EntityName, p.id)
			continue
		}
		state := s.identity.Metadata(p.entity)
		if state == nil {
			continue
		}
		if err := s.identity.UpdateMetadata(p.entity, state.WithSnapshot(p.snapshot)); err != nil {
			continue
		}
		s.cacheSnapshot(ctx, p.meta, p.id, p.snapshot)
	}
	s.pending = nil
}

// flushPhases runs the vetoable and failable part of a flush: the
// pre-flush hook, change-set computation and the three statement phases
func (s *Session) flushPhases(ctx context.Context) error {
	if err := s.hooks.PreFlush(ctx); err != nil {
		return &ValidationError{Hook: "pre-flush", Err: err}
	}
	if err := s.computeChangeSets(); err != nil {
		return err
	}
	if err := s.executeInsertions(ctx); err != nil {
		return err
	}
	if err := s.executeUpdates(ctx); err != nil {
		return err
	}
	return s.executeDeletions(ctx)
}

// computeChangeSets recomputes deltas for every NEW and MANAGED entity
// and schedules updates for dirty managed ones
func (s *Session) computeChangeSets() error {
	for _, entity := range s.identity.EntitiesByState(StateNew) {
		state := s.identity.Metadata(entity)
		cs, err := s.detector.ComputeChangeSet(entity, state.OriginalData)
		if err != nil {
			return err
		}
		s.changeSets[entity] = cs
		s.metrics.RecordChangeSet(!cs.Empty())
	}
	for _, entity := range s.identity.EntitiesByState(StateManaged) {
		state := s.identity.Metadata(entity)
		cs, err := s.detector.ComputeChangeSet(entity, state.OriginalData)
		if err != nil {
			return err
		}
		s.changeSets[entity] = cs
		s.metrics.RecordChangeSet(!cs.Empty())
		if cs.Empty() {
			continue
		}
		if err := s.scheduler.ScheduleForUpdate(entity); err != nil && !errors.Is(err, ErrNotManaged) {
			return err
		}
	}
	return nil
}

func (s *Session) executeInsertions(ctx context.Context) error {
	for _, entity := range s.scheduler.Insertions() {
		state := s.identity.Metadata(entity)
		if state == nil || state.Lifecycle != StateNew {
			// already handled by an earlier, partially failed flush
			continue
		}
		meta, err := s.registry.Of(entity)
		if err != nil {
			return err
		}

		columns, err := s.insertColumns(meta, entity)
		if err != nil {
			return err
		}
		generated, err := s.executor.Insert(ctx, meta.TableName, columns)
		if err != nil {
			return &PersistenceError{EntityName: meta.EntityName, Operation: "insert", Err: err}
		}
		s.metrics.RecordInsert()

		if meta.Identifier.AutoIncrement && generated != 0 {
			if err := meta.SetIdentifier(entity, generated); err != nil {
				return &PersistenceError{EntityName: meta.EntityName, Operation: "insert", Err: err}
			}
		}
		id, present, err := meta.IdentifierValue(entity)
		if err != nil {
			return err
		}
		if !present {
			return &PersistenceError{
				EntityName: meta.EntityName,
				Operation:  "insert",
				Err:        errors.New("no identifier available after insert"),
			}
		}

		snapshot, err := s.detector.ExtractCurrentData(entity)
		if err != nil {
			return err
		}
		next, err := state.Transition(StateManaged)
		if err != nil {
			return err
		}
		if err := s.identity.UpdateMetadata(entity, next.WithSnapshot(snapshot)); err != nil {
			return err
		}
		if err := s.identity.Index(entity, id); err != nil {
			return err
		}
		s.cacheSnapshot(ctx, meta, id, snapshot)

		if err := s.hooks.PostPersist(ctx, entity); err != nil {
			return fmt.Errorf("post-persist hook for %s: %w", meta.EntityName, err)
		}
	}
	return nil
}

func (s *Session) executeUpdates(ctx context.Context) error {
	for _, entity := range s.scheduler.Updates() {
		state := s.identity.Metadata(entity)
		if state == nil || state.Lifecycle != StateManaged {
			continue
		}
		cs, computed := s.changeSets[entity]
		if !computed || cs.Empty() {
			continue
		}
		meta, err := s.registry.Of(entity)
		if err != nil {
			return err
		}
		id, present, err := meta.IdentifierValue(entity)
		if err != nil {
			return err
		}
		if !present {
			return &UnidentifiableEntityError{EntityName: meta.EntityName, Operation: "update"}
		}

		if err := s.hooks.PreUpdate(ctx, entity, cs); err != nil {
			return &ValidationError{EntityName: meta.EntityName, Hook: "pre-update", Err: err}
		}

		// only the changed columns, never the full row
		columns := make(map[string]interface{})
		for name, change := range cs.Changes() {
			p := meta.Property(name)
			if p == nil || !p.IsColumn() || p.Identifier || !p.Updatable {
				continue
			}
			columns[p.Column] = change.New
		}
		if len(columns) > 0 {
			if _, err := s.executor.Update(ctx, meta.TableName, columns, meta.Identifier.Column, id); err != nil {
				return &PersistenceError{EntityName: meta.EntityName, Operation: "update", Err: err}
			}
			s.metrics.RecordUpdate()
		}

		snapshot, err := s.detector.ExtractCurrentData(entity)
		if err != nil {
			return err
		}
		// the snapshot refresh is deferred until the whole flush
		// succeeds; a rolled-back update must stay owed
		s.pending = append(s.pending, pendingSync{entity: entity, meta: meta, id: id, snapshot: snapshot})

		if err := s.hooks.PostUpdate(ctx, entity, cs); err != nil {
			return fmt.Errorf("post-update hook for %s: %w", meta.EntityName, err)
		}
	}
	return nil
}

func (s *Session) executeDeletions(ctx context.Context) error {
	for _, entity := range s.scheduler.Deletions() {
		state := s.identity.Metadata(entity)
		if state == nil {
			continue
		}
		meta, err := s.registry.Of(entity)
		if err != nil {
			return err
		}
		id, present, err := meta.IdentifierValue(entity)
		if err != nil {
			return err
		}
		if !present {
			return &UnidentifiableEntityError{EntityName: meta.EntityName, Operation: "delete"}
		}

		if _, err := s.executor.Delete(ctx, meta.TableName, meta.Identifier.Column, id); err != nil {
			return &PersistenceError{EntityName: meta.EntityName, Operation: "delete", Err: err}
		}
		s.metrics.RecordDelete()

		// the purge is deferred for the same reason as update snapshot
		// refreshes; a rolled-back delete must stay scheduled
		s.pending = append(s.pending, pendingSync{entity: entity, meta: meta, id: id, removed: true})

		if err := s.hooks.PostRemove(ctx, entity); err != nil {
			return fmt.Errorf("post-remove hook for %s: %w", meta.EntityName, err)
		}
	}
	return nil
}

// insertColumns collects the creatable column values of an entity,
// leaving a store-generated identifier out while it is still unset
func (s *Session) insertColumns(meta *metadata.EntityMetadata, entity interface{}) (map[string]interface{}, error) {
	columns := make(map[string]interface{}, len(meta.Properties))
	for _, p := range meta.Properties {
		if !p.IsColumn() || !p.Creatable {
			continue
		}
		value, err := meta.Get(entity, p)
		if err != nil {
			return nil, err
		}
		value = flattenNil(value)
		if p.Identifier && p.AutoIncrement {
			// unset auto-increment ids are left to the store
			if _, present, err := meta.IdentifierValue(entity); err != nil || !present {
				continue
			}
		}
		columns[p.Column] = value
	}
	return columns, nil
}
