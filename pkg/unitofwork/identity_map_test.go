package unitofwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityMapAddAndGet(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{ID: 1, Name: "Robin"}

	m.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(1))

	got, ok := m.Get("Customer", uint(1))
	require.True(t, ok)
	assert.Same(t, customer, got)
	assert.True(t, m.Contains(customer))
	assert.Equal(t, 1, m.Len())
}

func TestIdentityMapNormalizesKeyTypes(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{ID: 1}

	m.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(1))

	// drivers and callers disagree about integer widths
	got, ok := m.Get("Customer", int64(1))
	require.True(t, ok)
	assert.Same(t, customer, got)
}

func TestIdentityMapRejectsSecondInstanceForSameSlot(t *testing.T) {
	m := NewIdentityMap()
	first := &Customer{ID: 1, Name: "Robin"}
	second := &Customer{ID: 1, Name: "Impostor"}

	require.NoError(t, m.Add(first, NewEntityState("Customer", StateManaged, nil), uint(1)))

	err := m.Add(second, NewEntityState("Customer", StateManaged, nil), uint(1))
	require.Error(t, err)
	var conflict *IdentityConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Customer", conflict.EntityName)
	assert.True(t, IsIdentityConflict(err))

	got, ok := m.Get("Customer", uint(1))
	require.True(t, ok)
	assert.Same(t, first, got)

	// the rejected duplicate is not tracked at all
	assert.False(t, m.Contains(second))

	// re-adding the owner is bookkeeping, not a conflict
	require.NoError(t, m.Add(first, NewEntityState("Customer", StateManaged, nil), uint(1)))
}

func TestIdentityMapIndexAfterInsert(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{}

	m.Add(customer, NewEntityState("Customer", StateNew, nil), nil)
	_, ok := m.Get("Customer", uint(1))
	assert.False(t, ok)

	require.NoError(t, m.Index(customer, uint(1)))

	got, ok := m.Get("Customer", uint(1))
	require.True(t, ok)
	assert.Same(t, customer, got)
}

func TestIdentityMapRemove(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{ID: 1}

	m.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(1))
	m.Remove(customer)

	assert.False(t, m.Contains(customer))
	_, ok := m.Get("Customer", uint(1))
	assert.False(t, ok)
	assert.Nil(t, m.Metadata(customer))
	assert.Zero(t, m.Len())
}

func TestIdentityMapUnindexKeepsTracking(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{ID: 1}

	m.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(1))
	m.Unindex(customer)

	_, ok := m.Get("Customer", uint(1))
	assert.False(t, ok)
	assert.True(t, m.Contains(customer))
}

func TestIdentityMapUpdateMetadata(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{ID: 1}

	err := m.UpdateMetadata(customer, NewEntityState("Customer", StateManaged, nil))
	assert.ErrorIs(t, err, ErrNotTracked)

	m.Add(customer, NewEntityState("Customer", StateNew, nil), nil)
	next := NewEntityState("Customer", StateManaged, nil)
	require.NoError(t, m.UpdateMetadata(customer, next))
	assert.Equal(t, StateManaged, m.Metadata(customer).Lifecycle)
}

func TestIdentityMapEntitiesByStatePreservesOrder(t *testing.T) {
	m := NewIdentityMap()
	first := &Customer{ID: 1}
	second := &Customer{ID: 2}
	third := &Customer{ID: 3}

	m.Add(first, NewEntityState("Customer", StateNew, nil), nil)
	m.Add(second, NewEntityState("Customer", StateManaged, nil), uint(2))
	m.Add(third, NewEntityState("Customer", StateNew, nil), nil)

	fresh := m.EntitiesByState(StateNew)
	require.Len(t, fresh, 2)
	assert.Same(t, first, fresh[0])
	assert.Same(t, third, fresh[1])
}

func TestIdentityMapClearByName(t *testing.T) {
	m := NewIdentityMap()
	customer := &Customer{ID: 1}
	order := &Order{ID: 9}

	m.Add(customer, NewEntityState("Customer", StateManaged, nil), uint(1))
	m.Add(order, NewEntityState("Order", StateManaged, nil), uint(9))

	m.Clear("Customer")
	assert.False(t, m.Contains(customer))
	assert.True(t, m.Contains(order))

	m.Clear("")
	assert.Zero(t, m.Len())
}
