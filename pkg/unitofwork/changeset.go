package unitofwork

import (
	"fmt"
	"sort"
	"strings"
)

// PropertyChange is the immutable (old, new) delta of one property.
// A nil Old with a non-nil New is an addition, the reverse is a removal,
// and two differing non-nil values are a modification.
type PropertyChange struct {
	Property string
	Old      interface{}
	New      interface{}
}

// IsAddition reports a nil-to-value change
func (c PropertyChange) IsAddition() bool {
	return c.Old == nil && c.New != nil
}

// IsRemoval reports a value-to-nil change
func (c PropertyChange) IsRemoval() bool {
	return c.Old != nil && c.New == nil
}

// IsModification reports a value-to-different-value change
func (c PropertyChange) IsModification() bool {
	return c.Old != nil && c.New != nil
}

// String renders the change for logs and error context
func (c PropertyChange) String() string {
	return fmt.Sprintf("%s: %v -> %v", c.Property, c.Old, c.New)
}

// ChangeSet is the immutable aggregate delta for one entity. A property
// appears iff its current value differs from the snapshot under the
// detector's equality rules, which is what keeps UPDATE statements minimal.
type ChangeSet struct {
	entityName string
	changes    map[string]PropertyChange
}

// NewChangeSet builds a ChangeSet; the map is copied so later mutation of
// the argument cannot alter the set
func NewChangeSet(entityName string, changes map[string]PropertyChange) ChangeSet {
	cp := make(map[string]PropertyChange, len(changes))
	for k, v := range changes {
		cp[k] = v
	}
	return ChangeSet{entityName: entityName, changes: cp}
}

// EntityName returns the entity type tag the delta belongs to
func (cs ChangeSet) EntityName() string {
	return cs.entityName
}

// Empty reports whether no difference was detected
func (cs ChangeSet) Empty() bool {
	return len(cs.changes) == 0
}

// Len returns the number of changed properties
func (cs ChangeSet) Len() int {
	return len(cs.changes)
}

// Get returns the change recorded for a property, if any
func (cs ChangeSet) Get(property string) (PropertyChange, bool) {
	c, ok := cs.changes[property]
	return c, ok
}

// Properties returns the changed property names in stable order
func (cs ChangeSet) Properties() []string {
	names := make([]string, 0, len(cs.changes))
	for name := range cs.changes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Changes returns a copy of the per-property deltas
func (cs ChangeSet) Changes() map[string]PropertyChange {
	cp := make(map[string]PropertyChange, len(cs.changes))
	for k, v := range cs.changes {
		cp[k] = v
	}
	return cp
}

// String renders the set in property order
func (cs ChangeSet) String() string {
	var b strings.Builder
	b.WriteString(cs.entityName)
	b.WriteString("{")
	for i, name := range cs.Properties() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cs.changes[name].String())
	}
	b.WriteString("}")
	return b.String()
}
