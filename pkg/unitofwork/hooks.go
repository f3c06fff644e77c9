package unitofwork

import "context"

// Hooks receives lifecycle notifications around session operations and
// flush phases. A non-nil error from any pre-hook vetoes the operation:
// Persist/Remove refuse the entity, and during flush the whole batch is
// aborted before any statement runs so atomicity expectations hold.
// Post-hooks run after the corresponding statement succeeded; errors
// they return are propagated but cannot undo committed work.
type Hooks interface {
	PrePersist(ctx context.Context, entity interface{}) error
	PostPersist(ctx context.Context, entity interface{}) error
	PreUpdate(ctx context.Context, entity interface{}, changes ChangeSet) error
	PostUpdate(ctx context.Context, entity interface{}, changes ChangeSet) error
	PreRemove(ctx context.Context, entity interface{}) error
	PostRemove(ctx context.Context, entity interface{}) error
	PreFlush(ctx context.Context) error
	PostFlush(ctx context.Context) error
}

// NopHooks is the default no-op dispatcher
type NopHooks struct{}

func (NopHooks) PrePersist(context.Context, interface{}) error             { return nil }
func (NopHooks) PostPersist(context.Context, interface{}) error            { return nil }
func (NopHooks) PreUpdate(context.Context, interface{}, ChangeSet) error   { return nil }
func (NopHooks) PostUpdate(context.Context, interface{}, ChangeSet) error  { return nil }
func (NopHooks) PreRemove(context.Context, interface{}) error              { return nil }
func (NopHooks) PostRemove(context.Context, interface{}) error             { return nil }
func (NopHooks) PreFlush(context.Context) error                            { return nil }
func (NopHooks) PostFlush(context.Context) error                           { return nil }
