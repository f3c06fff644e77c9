package unitofwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerIdentifier(entity interface{}) (interface{}, bool, error) {
	c := entity.(*Customer)
	if c.ID == 0 {
		return nil, false, nil
	}
	return c.ID, true, nil
}

func newTestScheduler() (*Scheduler, *IdentityMap) {
	identity := NewIdentityMap()
	return NewScheduler(identity, customerIdentifier), identity
}

func TestScheduleForInsertion(t *testing.T) {
	scheduler, identity := newTestScheduler()
	customer := &Customer{Name: "Robin"}
	identity.Add(customer, NewEntityState("Customer", StateNew, nil), nil)

	require.NoError(t, scheduler.ScheduleForInsertion(customer))
	require.NoError(t, scheduler.ScheduleForInsertion(customer))

	assert.Len(t, scheduler.Insertions(), 1)
	assert.True(t, scheduler.IsScheduledForInsertion(customer))
}

func TestScheduleForInsertionRejectsIdentifiedEntity(t *testing.T) {
	scheduler, identity := newTestScheduler()
	customer := &Customer{ID: 7}
	identity.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(7))

	require.NoError(t, scheduler.ScheduleForInsertion(customer))
	assert.Empty(t, scheduler.Insertions())
	assert.False(t, scheduler.IsScheduled(customer))
}

func TestScheduleForUpdateRequiresManaged(t *testing.T) {
	scheduler, identity := newTestScheduler()

	fresh := &Customer{}
	identity.Add(fresh, NewEntityState("Customer", StateNew, nil), nil)
	err := scheduler.ScheduleForUpdate(fresh)
	assert.ErrorIs(t, err, ErrNotManaged)

	untracked := &Customer{ID: 3}
	err = scheduler.ScheduleForUpdate(untracked)
	assert.ErrorIs(t, err, ErrNotTracked)

	managed := &Customer{ID: 7}
	identity.Add(managed, NewEntityState("Customer", StateManaged, nil), uint(7))
	require.NoError(t, scheduler.ScheduleForUpdate(managed))
	require.NoError(t, scheduler.ScheduleForUpdate(managed))
	assert.Len(t, scheduler.Updates(), 1)
}

func TestWorklistsAreMutuallyExclusive(t *testing.T) {
	scheduler, identity := newTestScheduler()
	customer := &Customer{ID: 7}
	identity.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(7))

	require.NoError(t, scheduler.ScheduleForUpdate(customer))
	require.NoError(t, scheduler.ScheduleForDeletion(customer))

	assert.Empty(t, scheduler.Updates())
	assert.Len(t, scheduler.Deletions(), 1)

	// removed entities take no further updates
	err := scheduler.ScheduleForUpdate(customer)
	assert.NoError(t, err)
	assert.Empty(t, scheduler.Updates())
}

func TestScheduleForDeletionOfPendingInsert(t *testing.T) {
	scheduler, identity := newTestScheduler()
	customer := &Customer{}
	identity.Add(customer, NewEntityState("Customer", StateNew, nil), nil)
	require.NoError(t, scheduler.ScheduleForInsertion(customer))

	err := scheduler.ScheduleForDeletion(customer)
	var illegal *IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, StateNew, illegal.From)
	assert.Equal(t, StateRemoved, illegal.To)
}

func TestScheduleForDeletionTransitionsState(t *testing.T) {
	scheduler, identity := newTestScheduler()
	customer := &Customer{ID: 7}
	identity.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(7))

	require.NoError(t, scheduler.ScheduleForDeletion(customer))
	require.NoError(t, scheduler.ScheduleForDeletion(customer))

	assert.Len(t, scheduler.Deletions(), 1)
	assert.Equal(t, StateRemoved, identity.Metadata(customer).Lifecycle)
}

func TestSchedulerStatisticsAndClear(t *testing.T) {
	scheduler, identity := newTestScheduler()

	fresh := &Customer{}
	identity.Add(fresh, NewEntityState("Customer", StateNew, nil), nil)
	require.NoError(t, scheduler.ScheduleForInsertion(fresh))

	managed := &Customer{ID: 7}
	identity.Add(managed, NewEntityState("Customer", StateManaged, nil), uint(7))
	require.NoError(t, scheduler.ScheduleForUpdate(managed))

	stats := scheduler.Statistics()
	assert.Equal(t, 1, stats.Insertions)
	assert.Equal(t, 1, stats.Updates)
	assert.Equal(t, 0, stats.Deletions)

	scheduler.Clear()
	assert.Equal(t, SchedulerStatistics{}, scheduler.Statistics())
	assert.False(t, scheduler.IsScheduled(fresh))
}
