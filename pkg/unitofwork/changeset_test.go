package unitofwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyChangeClassification(t *testing.T) {
	tests := []struct {
		name         string
		change       PropertyChange
		addition     bool
		removal      bool
		modification bool
	}{
		{"addition", PropertyChange{Property: "Name", Old: nil, New: "Robin"}, true, false, false},
		{"removal", PropertyChange{Property: "Name", Old: "Robin", New: nil}, false, true, false},
		{"modification", PropertyChange{Property: "Name", Old: "Robin", New: "Sam"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.addition, tt.change.IsAddition())
			assert.Equal(t, tt.removal, tt.change.IsRemoval())
			assert.Equal(t, tt.modification, tt.change.IsModification())
		})
	}
}

func TestChangeSetAccessors(t *testing.T) {
	cs := NewChangeSet("Customer", map[string]PropertyChange{
		"Name": {Property: "Name", Old: "Robin", New: "Sam"},
		"Tier": {Property: "Tier", Old: nil, New: "gold"},
	})

	assert.Equal(t, "Customer", cs.EntityName())
	assert.False(t, cs.Empty())
	assert.Equal(t, 2, cs.Len())

	change, ok := cs.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Sam", change.New)

	_, ok = cs.Get("Email")
	assert.False(t, ok)

	assert.Equal(t, []string{"Name", "Tier"}, cs.Properties())
}

func TestChangeSetIsolatedFromInput(t *testing.T) {
	source := map[string]PropertyChange{
		"Name": {Property: "Name", Old: "Robin", New: "Sam"},
	}
	cs := NewChangeSet("Customer", source)

	source["Tier"] = PropertyChange{Property: "Tier", New: "gold"}
	assert.Equal(t, 1, cs.Len())

	exported := cs.Changes()
	exported["Email"] = PropertyChange{Property: "Email"}
	assert.Equal(t, 1, cs.Len())
}

func TestEmptyChangeSet(t *testing.T) {
	cs := NewChangeSet("Customer", nil)

	assert.True(t, cs.Empty())
	assert.Zero(t, cs.Len())
	assert.Empty(t, cs.Properties())
}
