package unitofwork

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	registry := newTestRegistry()
	_, err := registry.Of(&Customer{})
	require.NoError(t, err)
	return NewDetector(registry, nil)
}

func TestExtractCurrentData(t *testing.T) {
	detector := newTestDetector(t)

	data, err := detector.ExtractCurrentData(&Customer{ID: 1, Name: "Robin", Tier: "gold"})
	require.NoError(t, err)

	assert.Equal(t, uint(1), data["ID"])
	assert.Equal(t, "Robin", data["Name"])
	assert.Equal(t, "gold", data["Tier"])
	assert.Contains(t, data, "Email")
}

func TestComputeChangeSetMinimality(t *testing.T) {
	detector := newTestDetector(t)
	customer := &Customer{ID: 1, Name: "Robin", Email: "robin@example.com", Tier: "gold"}

	snapshot, err := detector.ExtractCurrentData(customer)
	require.NoError(t, err)

	customer.Name = "Sam"

	cs, err := detector.ComputeChangeSet(customer, snapshot)
	require.NoError(t, err)

	require.Equal(t, 1, cs.Len())
	change, ok := cs.Get("Name")
	require.True(t, ok)
	assert.Equal(t, "Robin", change.Old)
	assert.Equal(t, "Sam", change.New)
	assert.True(t, change.IsModification())
}

func TestComputeChangeSetNoChanges(t *testing.T) {
	detector := newTestDetector(t)
	customer := &Customer{ID: 1, Name: "Robin"}

	snapshot, err := detector.ExtractCurrentData(customer)
	require.NoError(t, err)

	cs, err := detector.ComputeChangeSet(customer, snapshot)
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestComputeChangeSetAdditionsAgainstEmptySnapshot(t *testing.T) {
	detector := newTestDetector(t)
	customer := &Customer{Name: "Robin"}

	cs, err := detector.ComputeChangeSet(customer, map[string]interface{}{})
	require.NoError(t, err)

	change, ok := cs.Get("Name")
	require.True(t, ok)
	assert.True(t, change.IsAddition())

	// zero-valued scalars still differ from an absent snapshot entry
	_, ok = cs.Get("ID")
	assert.True(t, ok)
}

func TestComputeChangeSetRecordsSnapshotOnlyKeysAsRemovals(t *testing.T) {
	detector := newTestDetector(t)
	customer := &Customer{ID: 1, Name: "Robin"}

	snapshot, err := detector.ExtractCurrentData(customer)
	require.NoError(t, err)
	snapshot["Legacy"] = "value"

	cs, err := detector.ComputeChangeSet(customer, snapshot)
	require.NoError(t, err)

	change, ok := cs.Get("Legacy")
	require.True(t, ok)
	assert.True(t, change.IsRemoval())
}

func TestEqualScalars(t *testing.T) {
	detector := newTestDetector(t)

	tests := []struct {
		name  string
		a     interface{}
		b     interface{}
		equal bool
	}{
		{"nil both", nil, nil, true},
		{"nil one side", nil, "x", false},
		{"typed nil pointer", (*Customer)(nil), nil, true},
		{"strings", "a", "a", true},
		{"strings differ", "a", "b", false},
		{"bools", true, true, true},
		{"cross-width ints", int(5), int64(5), true},
		{"uint vs int", uint(5), int64(5), true},
		{"ints differ", 5, 6, false},
		{"floats within epsilon", 1.0, 1.0 + 1e-12, true},
		{"floats beyond epsilon", 1.0, 1.001, false},
		{"int vs float equal", int64(2), 2.0, true},
		{"bytes", []byte("ab"), []byte("ab"), true},
		{"bytes differ", []byte("ab"), []byte("ac"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, detector.Equal(tt.a, tt.b))
		})
	}
}

func TestEqualTimesByCanonicalForm(t *testing.T) {
	detector := newTestDetector(t)

	instant := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	sameInParis := instant.In(time.FixedZone("CET", 3600))

	assert.True(t, detector.Equal(instant, sameInParis))
	assert.True(t, detector.Equal(instant, &sameInParis))
	assert.False(t, detector.Equal(instant, instant.Add(time.Nanosecond)))
}

func TestEqualEntityReferencesByIdentity(t *testing.T) {
	detector := newTestDetector(t)

	saved := &Customer{ID: 7, Name: "Robin"}
	refetched := &Customer{ID: 7, Name: "Robin, refreshed"}
	other := &Customer{ID: 8}

	assert.True(t, detector.Equal(saved, saved))
	assert.True(t, detector.Equal(saved, refetched))
	assert.False(t, detector.Equal(saved, other))

	// unsaved references are only equal to themselves
	pendingA := &Customer{Name: "A"}
	pendingB := &Customer{Name: "A"}
	assert.True(t, detector.Equal(pendingA, pendingA))
	assert.False(t, detector.Equal(pendingA, pendingB))
}

func TestEqualEntityCollectionsIgnoreOrder(t *testing.T) {
	detector := newTestDetector(t)

	a := &Customer{ID: 1}
	b := &Customer{ID: 2}
	c := &Customer{ID: 3}

	assert.True(t, detector.Equal([]*Customer{a, b, c}, []*Customer{c, a, b}))
	assert.False(t, detector.Equal([]*Customer{a, b}, []*Customer{a, c}))
	assert.False(t, detector.Equal([]*Customer{a, b}, []*Customer{a, b, c}))
}

func TestEqualPlainSlicesAreOrderSensitive(t *testing.T) {
	detector := newTestDetector(t)

	assert.True(t, detector.Equal([]string{"a", "b"}, []string{"a", "b"}))
	assert.False(t, detector.Equal([]string{"a", "b"}, []string{"b", "a"}))
}

func TestEqualMaps(t *testing.T) {
	detector := newTestDetector(t)

	assert.True(t, detector.Equal(
		map[string]int{"a": 1, "b": 2},
		map[string]int{"b": 2, "a": 1}))
	assert.False(t, detector.Equal(
		map[string]int{"a": 1},
		map[string]int{"a": 2}))
}

func TestConfigurableEpsilon(t *testing.T) {
	registry := newTestRegistry()
	coarse := NewDetector(registry, &DetectorConfig{FloatEpsilon: 0.1})

	assert.True(t, coarse.Equal(1.0, 1.05))
	assert.False(t, coarse.Equal(1.0, 1.5))
}
