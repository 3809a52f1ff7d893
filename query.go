package objstore

import (
	"fmt"
	"reflect"
)

// Predicate filters query results. It receives each stored entity as
// returned by Get.
type Predicate func(obj any) bool

// GetAll decodes every stored entity and returns those matching all
// predicates, checked in order. With no predicates it returns nothing.
// Results follow storage iteration order.
func (db *DB) GetAll(preds ...Predicate) ([]any, error) {
	if err := db.lock(); err != nil {
		return nil, err
	}
	defer db.unlock()
	results, _, err := db.scan(preds)
	return results, err
}

// GetThe is GetAll for exactly one result. The result counts as loaded by
// Get: storing it again as a child updates it in place.
func (db *DB) GetThe(preds ...Predicate) (any, error) {
	if err := db.lock(); err != nil {
		return nil, err
	}
	defer db.unlock()

	results, ids, err := db.scan(preds)
	if err != nil {
		return nil, err
	}
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("objstore: no matching entity: %w", ErrNotFound)
	case 1:
		db.ident.remember(results[0], ids[0])
		return results[0], nil
	default:
		return nil, &AmbiguousMatchError{Count: len(results)}
	}
}

func (db *DB) getAll(preds []Predicate) ([]any, error) {
	results, _, err := db.scan(preds)
	return results, err
}

// scan decodes every entity and returns those matching preds along with
// their ids. Decoded objects are not added to the identity map.
func (db *DB) scan(preds []Predicate) ([]any, []EntityID, error) {
	results := []any{}
	if len(preds) == 0 {
		return results, nil, nil
	}
	ids, err := db.entities.ids()
	if err != nil {
		return nil, nil, err
	}
	var matched []EntityID
	for _, id := range ids {
		obj, err := db.loadNative(EntityID(id))
		if err != nil {
			return nil, nil, err
		}
		if matchAll(obj, preds) {
			results = append(results, obj)
			matched = append(matched, EntityID(id))
		}
	}
	if db.verbose {
		db.logf("db: SCAN %d entities => %d", len(ids), len(results))
	}
	return results, matched, nil
}

func matchAll(obj any, preds []Predicate) bool {
	for _, pred := range preds {
		if !pred(obj) {
			return false
		}
	}
	return true
}

func GetAllOf[T any](db *DB, preds ...Predicate) ([]*T, error) {
	results, err := db.GetAll(append([]Predicate{IsType[T]()}, preds...)...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(results))
	for _, obj := range results {
		if p, ok := obj.(*T); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func GetTheOf[T any](db *DB, preds ...Predicate) (*T, error) {
	obj, err := db.GetThe(append([]Predicate{IsType[T]()}, preds...)...)
	if err != nil {
		return nil, err
	}
	p, ok := obj.(*T)
	if !ok {
		return nil, fmt.Errorf("objstore: matched %T, not %v", obj, reflect.TypeOf((*T)(nil)))
	}
	return p, nil
}

// IsType matches values of type T or *T.
func IsType[T any]() Predicate {
	return func(obj any) bool {
		switch obj.(type) {
		case T, *T:
			return true
		default:
			return false
		}
	}
}

// IsRecord matches records of the named type, i.e. objects whose type has no
// Go type registered.
func IsRecord(typeName string) Predicate {
	return func(obj any) bool {
		rec, ok := obj.(*Record)
		return ok && rec.Type == typeName
	}
}

// HasField matches structs and records whose named field equals value.
// Numbers are compared by value regardless of their Go type.
func HasField(name string, value any) Predicate {
	return func(obj any) bool {
		got, ok := fieldOf(obj, name)
		return ok && nativeEqual(got, value)
	}
}

// nativeEqual compares a caller's value with a decoded one. Lists and dicts
// are compared item by item, so []int{1} equals the decoded []any{int64(1)}.
func nativeEqual(a, b any) bool {
	return valuesEqual(reflect.ValueOf(a), reflect.ValueOf(b))
}

func valuesEqual(av, bv reflect.Value) bool {
	for av.Kind() == reflect.Interface && !av.IsNil() {
		av = av.Elem()
	}
	for bv.Kind() == reflect.Interface && !bv.IsNil() {
		bv = bv.Elem()
	}
	if !av.IsValid() || !bv.IsValid() || isNilRef(av) || isNilRef(bv) {
		return (!av.IsValid() || isNilRef(av)) && (!bv.IsValid() || isNilRef(bv))
	}
	if av.Type() == recordType || bv.Type() == recordType {
		return recordsEqual(av, bv)
	}
	switch {
	case isNumber(av) && isNumber(bv):
		return numbersEqual(av, bv)
	case av.Kind() == reflect.String && bv.Kind() == reflect.String:
		return av.String() == bv.String()
	case av.Kind() == reflect.Bool && bv.Kind() == reflect.Bool:
		return av.Bool() == bv.Bool()
	case isSequence(av) && isSequence(bv):
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !valuesEqual(av.Index(i), bv.Index(i)) {
				return false
			}
		}
		return true
	case av.Kind() == reflect.Map && bv.Kind() == reflect.Map:
		return mapsEqual(av, bv)
	case av.Kind() == reflect.Pointer || bv.Kind() == reflect.Pointer:
		if av.Kind() == reflect.Pointer {
			av = av.Elem()
		}
		if bv.Kind() == reflect.Pointer {
			bv = bv.Elem()
		}
		return av.Kind() == reflect.Struct && bv.Kind() == reflect.Struct && structsEqual(av, bv)
	case av.Kind() == reflect.Struct && bv.Kind() == reflect.Struct:
		return structsEqual(av, bv)
	}
	return false
}

func isNilRef(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func isSequence(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

func mapsEqual(av, bv reflect.Value) bool {
	if av.Len() != bv.Len() {
		return false
	}
	iter := av.MapRange()
	for iter.Next() {
		matched := false
		inner := bv.MapRange()
		for inner.Next() {
			if valuesEqual(iter.Key(), inner.Key()) {
				matched = valuesEqual(iter.Value(), inner.Value())
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func structsEqual(av, bv reflect.Value) bool {
	if av.Type() != bv.Type() {
		return false
	}
	for _, f := range reflectStruct(av.Type()).fields {
		if !valuesEqual(av.FieldByIndex(f.index), bv.FieldByIndex(f.index)) {
			return false
		}
	}
	return true
}

func recordsEqual(av, bv reflect.Value) bool {
	if av.Type() != recordType || bv.Type() != recordType {
		return false
	}
	a, b := av.Interface().(*Record), bv.Interface().(*Record)
	if a.Type != b.Type || len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if !nativeEqual(a.Values[i], b.Values[i]) {
			return false
		}
	}
	return true
}

func isNumber(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func numbersEqual(a, b reflect.Value) bool {
	isFloat := func(v reflect.Value) bool { return v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64 }
	if isFloat(a) || isFloat(b) {
		return toFloat(a) == toFloat(b)
	}
	aNeg, bNeg := a.CanInt() && a.Int() < 0, b.CanInt() && b.Int() < 0
	if aNeg || bNeg {
		return aNeg && bNeg && a.Int() == b.Int()
	}
	return toUint(a) == toUint(b)
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanFloat():
		return v.Float()
	case v.CanInt():
		return float64(v.Int())
	default:
		return float64(v.Uint())
	}
}

func toUint(v reflect.Value) uint64 {
	if v.CanInt() {
		return uint64(v.Int())
	}
	return v.Uint()
}
