package unitofwork

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"github.com/ammar0144/orm4go/pkg/metadata"
)

// DefaultFloatEpsilon is the tolerance applied to float comparisons.
// Exact binary comparison reports false positives after values round-trip
// through the driver or the snapshot codec; the tolerance is a documented
// compromise and is configurable rather than fixed.
const DefaultFloatEpsilon = 1e-9

// DetectorConfig tunes change detection
type DetectorConfig struct {
	// FloatEpsilon is the maximum difference under which two floats are
	// considered equal. Zero selects DefaultFloatEpsilon.
	FloatEpsilon float64 `json:"float_epsilon" yaml:"float_epsilon"`
}

// Detector computes property-level deltas between an entity's current
// values and its last-synchronized snapshot. Equality is type-aware:
// scalars compare exactly (floats within epsilon), temporal values by
// canonical sub-second form, entity references by business identity,
// collections of references after canonical ordering, and plain value
// objects by instance unless they expose a canonical string form.
type Detector struct {
	registry *metadata.Registry
	epsilon  float64
}

// NewDetector creates a detector over the given metadata registry
func NewDetector(registry *metadata.Registry, config *DetectorConfig) *Detector {
	epsilon := DefaultFloatEpsilon
	if config != nil && config.FloatEpsilon > 0 {
		epsilon = config.FloatEpsilon
	}
	return &Detector{registry: registry, epsilon: epsilon}
}

// ExtractCurrentData reads every mapped property of the entity into a
// snapshot map. Typed nils (nil pointers, slices, maps) are flattened to
// untyped nil so addition/removal classification works on the raw map.
func (d *Detector) ExtractCurrentData(entity interface{}) (map[string]interface{}, error) {
	meta, err := d.registry.Of(entity)
	if err != nil {
		return nil, err
	}
	data := make(map[string]interface{}, len(meta.Properties))
	for _, p := range meta.Properties {
		v, err := meta.Get(entity, p)
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s.%s: %w", meta.EntityName, p.Name, err)
		}
		data[p.Name] = flattenNil(v)
	}
	return data, nil
}

// ComputeChangeSet diffs the entity's current data against the supplied
// snapshot. Properties equal under the detector's rules are omitted;
// properties present only in the snapshot are recorded as removals.
func (d *Detector) ComputeChangeSet(entity interface{}, original map[string]interface{}) (ChangeSet, error) {
	meta, err := d.registry.Of(entity)
	if err != nil {
		return ChangeSet{}, err
	}
	current, err := d.ExtractCurrentData(entity)
	if err != nil {
		return ChangeSet{}, err
	}

	changes := make(map[string]PropertyChange)
	for _, p := range meta.Properties {
		newValue := current[p.Name]
		oldValue, known := original[p.Name]
		if !known {
			oldValue = nil
		}
		if d.Equal(oldValue, newValue) {
			continue
		}
		changes[p.Name] = PropertyChange{Property: p.Name, Old: oldValue, New: newValue}
	}
	for name, oldValue := range original {
		if _, extracted := current[name]; extracted {
			continue
		}
		if oldValue == nil {
			continue
		}
		changes[name] = PropertyChange{Property: name, Old: oldValue, New: nil}
	}
	return NewChangeSet(meta.EntityName, changes), nil
}

// Equal applies the detector's type-aware equality rules to two values
func (d *Detector) Equal(a, b interface{}) bool {
	a, b = flattenNil(a), flattenNil(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if at, ok := asTime(a); ok {
		bt, ok2 := asTime(b)
		return ok2 && at.UTC().Format(time.RFC3339Nano) == bt.UTC().Format(time.RFC3339Nano)
	}

	if ab, ok := a.([]byte); ok {
		bb, ok2 := b.([]byte)
		return ok2 && bytes.Equal(ab, bb)
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)

	if isNumeric(av.Kind()) && isNumeric(bv.Kind()) {
		return d.numericEqual(av, bv)
	}

	switch av.Kind() {
	case reflect.Bool:
		return bv.Kind() == reflect.Bool && av.Bool() == bv.Bool()
	case reflect.String:
		return bv.Kind() == reflect.String && av.String() == bv.String()
	case reflect.Ptr:
		return d.pointerEqual(av, bv)
	case reflect.Slice, reflect.Array:
		return d.sequenceEqual(av, bv)
	case reflect.Map:
		return d.mapEqual(av, bv)
	case reflect.Struct:
		return d.structEqual(av, bv)
	}

	return reflect.DeepEqual(a, b)
}

// pointerEqual handles entity references and pointer value objects.
// An entity reference compares by business identity: same concrete type
// and equal non-null identifiers, or identical instance when both sides
// are unsaved. Re-fetching the same related row therefore never looks
// like a change.
func (d *Detector) pointerEqual(av, bv reflect.Value) bool {
	if bv.Kind() != reflect.Ptr || av.Type() != bv.Type() {
		return false
	}
	if av.Pointer() == bv.Pointer() {
		return true
	}
	if av.Type().Elem().Kind() != reflect.Struct {
		return d.Equal(av.Elem().Interface(), bv.Elem().Interface())
	}

	if meta := d.entityMeta(av.Type()); meta != nil {
		ida, okA, _ := meta.IdentifierValue(av.Interface())
		idb, okB, _ := meta.IdentifierValue(bv.Interface())
		if okA && okB {
			return fmt.Sprintf("%v", ida) == fmt.Sprintf("%v", idb)
		}
		// both unsaved: only the same instance is the same pending row
		return false
	}

	// value object: canonical string form when the type declares one,
	// instance identity otherwise
	if sa, ok := canonicalString(av); ok {
		sb, ok2 := canonicalString(bv)
		return ok2 && sa == sb
	}
	return false
}

// sequenceEqual compares slices and arrays. Collections of entity
// references are compared after canonical ordering (type then id), so
// reordering related rows is not a change; everything else is compared
// elementwise with the same recursive rules.
func (d *Detector) sequenceEqual(av, bv reflect.Value) bool {
	if bv.Kind() != reflect.Slice && bv.Kind() != reflect.Array {
		return false
	}
	if av.Len() != bv.Len() {
		return false
	}
	if d.isEntityRefSequence(av) && d.isEntityRefSequence(bv) {
		as, bs := d.canonicalRefs(av), d.canonicalRefs(bv)
		for i := range as {
			if !d.Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	for i := 0; i < av.Len(); i++ {
		if !d.Equal(av.Index(i).Interface(), bv.Index(i).Interface()) {
			return false
		}
	}
	return true
}

func (d *Detector) mapEqual(av, bv reflect.Value) bool {
	if bv.Kind() != reflect.Map || av.Len() != bv.Len() {
		return false
	}
	iter := av.MapRange()
	for iter.Next() {
		bvV := bv.MapIndex(iter.Key())
		if !bvV.IsValid() {
			return false
		}
		if !d.Equal(iter.Value().Interface(), bvV.Interface()) {
			return false
		}
	}
	return true
}

// structEqual compares non-pointer structs fieldwise over exported
// fields with the same recursive rules
func (d *Detector) structEqual(av, bv reflect.Value) bool {
	if bv.Kind() != reflect.Struct || av.Type() != bv.Type() {
		return false
	}
	t := av.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).PkgPath != "" {
			// unexported fields are invisible to mapping; fall back to
			// DeepEqual for the whole value
			return reflect.DeepEqual(av.Interface(), bv.Interface())
		}
		if !d.Equal(av.Field(i).Interface(), bv.Field(i).Interface()) {
			return false
		}
	}
	return true
}

func (d *Detector) numericEqual(av, bv reflect.Value) bool {
	ak, bk := av.Kind(), bv.Kind()
	if isFloat(ak) || isFloat(bk) {
		return math.Abs(toFloat(av)-toFloat(bv)) <= d.epsilon
	}
	if isUint(ak) && isUint(bk) {
		return av.Uint() == bv.Uint()
	}
	if isUint(ak) {
		return av.Uint() <= math.MaxInt64 && int64(av.Uint()) == bv.Int()
	}
	if isUint(bk) {
		return bv.Uint() <= math.MaxInt64 && int64(bv.Uint()) == av.Int()
	}
	return av.Int() == bv.Int()
}

// entityMeta resolves metadata for a pointer type iff it describes an
// identifiable entity; value objects resolve to nil
func (d *Detector) entityMeta(ptrType reflect.Type) *metadata.EntityMetadata {
	meta := d.registry.Probe(ptrType)
	if meta == nil || meta.Identifier == nil {
		return nil
	}
	return meta
}

func (d *Detector) isEntityRefSequence(v reflect.Value) bool {
	if v.Len() == 0 {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		e := v.Index(i)
		if e.Kind() != reflect.Ptr || e.IsNil() || e.Type().Elem().Kind() != reflect.Struct {
			return false
		}
		if d.entityMeta(e.Type()) == nil {
			return false
		}
	}
	return true
}

// canonicalRefs orders a slice of entity references by (type, id), with
// unsaved references last by instance address for stability
func (d *Detector) canonicalRefs(v reflect.Value) []interface{} {
	type ref struct {
		sortKey string
		value   interface{}
	}
	refs := make([]ref, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		e := v.Index(i)
		meta := d.entityMeta(e.Type())
		id, present, _ := meta.IdentifierValue(e.Interface())
		key := meta.EntityName + "\x00"
		if present {
			key += fmt.Sprintf("0\x00%v", id)
		} else {
			key += fmt.Sprintf("1\x00%x", e.Pointer())
		}
		refs = append(refs, ref{sortKey: key, value: e.Interface()})
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].sortKey < refs[j].sortKey })
	out := make([]interface{}, len(refs))
	for i, r := range refs {
		out[i] = r.value
	}
	return out
}

// canonicalString returns the value's declared canonical form, when the
// type (or its pointer) implements fmt.Stringer
func canonicalString(v reflect.Value) (string, bool) {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}
	return "", false
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

// flattenNil converts typed nils to untyped nil so snapshot maps and
// PropertyChange classification see one kind of absence
func flattenNil(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return nil
		}
	}
	return v
}

func isNumeric(k reflect.Kind) bool {
	return isInt(k) || isUint(k) || isFloat(k)
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func toFloat(v reflect.Value) float64 {
	switch {
	case isFloat(v.Kind()):
		return v.Float()
	case isUint(v.Kind()):
		return float64(v.Uint())
	default:
		return float64(v.Int())
	}
}
