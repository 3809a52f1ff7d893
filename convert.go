package objstore

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf8"
)

var (
	valueType  = reflect.TypeOf((*Value)(nil)).Elem()
	recordType = reflect.TypeOf((*Record)(nil))
)

type visitKey struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// converter turns native Go values into Value trees. Containers currently
// being converted are tracked so that a structure reachable from itself is
// reported instead of recursing forever.
type converter struct {
	reg    *registry
	active map[visitKey]struct{}
}

func (db *DB) toValue(native any) (Value, error) {
	c := &converter{reg: db.types, active: make(map[visitKey]struct{})}
	return c.convert(reflect.ValueOf(native))
}

func (c *converter) enter(v reflect.Value, n int) (visitKey, error) {
	key := visitKey{v.Type(), v.Pointer(), n}
	if _, found := c.active[key]; found {
		return key, fmt.Errorf("%w: %v reachable from itself", ErrCycleDetected, v.Type())
	}
	c.active[key] = struct{}{}
	return key, nil
}

func (c *converter) leave(key visitKey) {
	delete(c.active, key)
}

func (c *converter) convert(v reflect.Value) (Value, error) {
	if !v.IsValid() {
		return nil, unsupportedf("nil")
	}
	if v.Type() == recordType {
		if v.IsNil() {
			return nil, unsupportedf("nil *Record")
		}
		return c.record(v)
	}
	if v.Type().Implements(valueType) && v.Kind() != reflect.Interface && v.Kind() != reflect.Pointer {
		return c.value(v)
	}

	switch v.Kind() {
	case reflect.Bool:
		return Bool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, unsupportedf("%v value %d does not fit a signed 64-bit int", v.Type(), u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Float(v.Float()), nil
	case reflect.String:
		s := v.String()
		if !utf8.ValidString(s) {
			return nil, unsupportedf("string %q is not valid UTF-8", s)
		}
		return String(s), nil
	case reflect.Slice:
		if v.Len() == 0 {
			return List{}, nil
		}
		key, err := c.enter(v, v.Len())
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		return c.items(v)
	case reflect.Array:
		return c.items(v)
	case reflect.Map:
		if v.Len() == 0 {
			return Dict{Pairs: []Pair{}}, nil
		}
		key, err := c.enter(v, 0)
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		return c.dict(v)
	case reflect.Pointer:
		if v.IsNil() {
			return nil, unsupportedf("nil %v", v.Type())
		}
		key, err := c.enter(v, 0)
		if err != nil {
			return nil, err
		}
		defer c.leave(key)
		if v.Elem().Kind() == reflect.Struct {
			return c.custom(v)
		}
		return c.convert(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return nil, unsupportedf("nil %v", v.Type())
		}
		return c.convert(v.Elem())
	case reflect.Struct:
		return c.custom(v)
	default:
		return nil, unsupportedf("%v", v.Type())
	}
}

// value accepts an already built Value, except refs, which only the codec
// may produce. Composites are walked so that no ref hides inside them.
func (c *converter) value(v reflect.Value) (Value, error) {
	switch val := v.Interface().(type) {
	case Ref:
		return nil, unsupportedf("raw %v", val)
	case List:
		return c.items(v)
	case Dict:
		if val.PairsRef != nil {
			return nil, unsupportedf("decoded %v", val)
		}
		out := Dict{Pairs: make([]Pair, len(val.Pairs))}
		for i, p := range val.Pairs {
			k, err := c.convert(reflect.ValueOf(p.Key))
			if err != nil {
				return nil, fmt.Errorf("dict key %d: %w", i, err)
			}
			switch k.(type) {
			case List, Dict:
				return nil, unsupportedf("dict key %v is not hashable", k)
			}
			pv, err := c.convert(reflect.ValueOf(p.Value))
			if err != nil {
				return nil, fmt.Errorf("dict value %v: %w", k, err)
			}
			out.Pairs[i] = Pair{k, pv}
		}
		return out, nil
	case Custom:
		if val.FieldsRef != nil {
			return nil, unsupportedf("decoded %v", val)
		}
		if val.TypeName == "" {
			return nil, unsupportedf("custom value without a type name")
		}
		out := Custom{TypeName: val.TypeName, Fields: make([]Value, len(val.Fields))}
		for i, f := range val.Fields {
			fv, err := c.convert(reflect.ValueOf(f))
			if err != nil {
				return nil, fmt.Errorf("%s field %d: %w", val.TypeName, i, err)
			}
			out.Fields[i] = fv
		}
		return out, nil
	case Value:
		return val, nil
	default:
		return nil, unsupportedf("%v", v.Type())
	}
}

func (c *converter) items(v reflect.Value) (Value, error) {
	n := v.Len()
	out := make(List, n)
	for i := 0; i < n; i++ {
		item, err := c.convert(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (c *converter) dict(v reflect.Value) (Value, error) {
	type sortablePair struct {
		Pair
		sortKey string
	}
	pairs := make([]sortablePair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := c.convert(iter.Key())
		if err != nil {
			return nil, err
		}
		switch k.(type) {
		case List, Dict:
			return nil, unsupportedf("dict key of type %v is not hashable", iter.Key().Type())
		}
		val, err := c.convert(iter.Value())
		if err != nil {
			return nil, err
		}
		sk := Render(iter.Key().Interface(), 1) + "\x00" + k.String()
		pairs = append(pairs, sortablePair{Pair{k, val}, sk})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].sortKey < pairs[j].sortKey
	})
	out := make([]Pair, len(pairs))
	for i, p := range pairs {
		out[i] = p.Pair
	}
	return Dict{Pairs: out}, nil
}

func (c *converter) custom(v reflect.Value) (Value, error) {
	def, err := c.reg.nativeDef(v.Type())
	if err != nil {
		return nil, err
	}
	obj := v.Interface()
	fields, err := def.Fields(obj)
	if err != nil {
		return nil, err
	}
	out := Custom{TypeName: def.Name, Fields: make([]Value, len(fields)), source: obj}
	for i, f := range fields {
		fv, err := c.convert(reflect.ValueOf(f))
		if err != nil {
			return nil, fieldErr(def, i, err)
		}
		out.Fields[i] = fv
	}
	return out, nil
}

func (c *converter) record(v reflect.Value) (Value, error) {
	rec := v.Interface().(*Record)
	key, err := c.enter(v, 0)
	if err != nil {
		return nil, err
	}
	defer c.leave(key)
	def, err := c.reg.recordDef(rec.Type, rec.Names)
	if err != nil {
		return nil, err
	}
	out := Custom{TypeName: def.Name, Fields: make([]Value, len(rec.Values)), source: rec}
	for i, f := range rec.Values {
		fv, err := c.convert(reflect.ValueOf(f))
		if err != nil {
			return nil, fieldErr(def, i, err)
		}
		out.Fields[i] = fv
	}
	return out, nil
}

func fieldErr(def *TypeDef, i int, err error) error {
	name := "#" + strconv.Itoa(i)
	if i < len(def.FieldNames) {
		name = def.FieldNames[i]
	}
	return fmt.Errorf("%s.%s: %w", def.Name, name, err)
}

// resolver turns stored entities back into native values, following refs.
// Entities currently being resolved are tracked; meeting one again means the
// stored graph has a loop, which the encoder never produces.
//
// Only a remembering resolver adds decoded objects to the identity map. Scans
// must not, or they would evict the objects callers actually hold.
type resolver struct {
	db       *DB
	visiting map[EntityID]struct{}
	remember bool
}

func newResolver(db *DB) *resolver {
	return &resolver{db: db, visiting: make(map[EntityID]struct{})}
}

func (db *DB) loadNative(id EntityID) (any, error) {
	return newResolver(db).entity(id)
}

// loadRemembered is loadNative for objects handed back to the caller.
func (db *DB) loadRemembered(id EntityID) (any, error) {
	r := newResolver(db)
	r.remember = true
	return r.entity(id)
}

func (r *resolver) entity(id EntityID) (any, error) {
	if _, found := r.visiting[id]; found {
		return nil, withEntity(corruptf(nil, 0, nil, "reference loop"), id)
	}
	nested := len(r.visiting) > 0
	data, err := r.db.entities.read(uint64(id))
	if err != nil {
		if nested && errors.Is(err, ErrNotFound) {
			return nil, withEntity(corruptf(nil, 0, nil, "dangling ref"), id)
		}
		return nil, err
	}
	r.db.ReadCount.Add(1)
	v, err := decodeValue(data, r.db.types)
	if err != nil {
		return nil, withEntity(err, id)
	}

	r.visiting[id] = struct{}{}
	defer delete(r.visiting, id)
	obj, err := r.native(v)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(Custom); ok && r.remember {
		r.db.ident.remember(obj, id)
	}
	return obj, nil
}

func (r *resolver) native(v Value) (any, error) {
	switch v := v.(type) {
	case Ref:
		return r.entity(EntityID(v))
	case Bool:
		return bool(v), nil
	case Int:
		return int64(v), nil
	case Float:
		return float64(v), nil
	case String:
		return string(v), nil
	case List:
		out := make([]any, len(v))
		for i, item := range v {
			obj, err := r.native(item)
			if err != nil {
				return nil, err
			}
			out[i] = obj
		}
		return out, nil
	case Dict:
		return r.dict(v)
	case Custom:
		return r.custom(v)
	default:
		return nil, unsupportedf("value %v", v)
	}
}

func (r *resolver) dict(v Dict) (any, error) {
	var pairs []any
	if v.PairsRef != nil {
		raw, err := r.entity(EntityID(*v.PairsRef))
		if err != nil {
			return nil, err
		}
		var ok bool
		pairs, ok = raw.([]any)
		if !ok {
			return nil, withEntity(corruptf(nil, 0, nil, "dict pairs are %T, wanted a list", raw), EntityID(*v.PairsRef))
		}
	} else {
		pairs = make([]any, len(v.Pairs))
		for i, p := range v.Pairs {
			k, err := r.native(p.Key)
			if err != nil {
				return nil, err
			}
			val, err := r.native(p.Value)
			if err != nil {
				return nil, err
			}
			pairs[i] = []any{k, val}
		}
	}

	out := make(map[any]any, len(pairs))
	for _, raw := range pairs {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, corruptf(nil, 0, nil, "dict pair is %T, wanted a 2-item list", raw)
		}
		k := pair[0]
		if k == nil || !reflect.TypeOf(k).Comparable() {
			return nil, corruptf(nil, 0, nil, "dict key %T is not hashable", k)
		}
		out[k] = pair[1]
	}
	return out, nil
}

func (r *resolver) custom(v Custom) (any, error) {
	desc := r.db.types.descriptorByName(v.TypeName)
	if desc == nil {
		return nil, corruptf(nil, 0, nil, "unknown type %s", v.TypeName)
	}
	var fields []any
	if v.FieldsRef != nil {
		raw, err := r.entity(EntityID(*v.FieldsRef))
		if err != nil {
			return nil, err
		}
		var ok bool
		fields, ok = raw.([]any)
		if !ok {
			return nil, withEntity(corruptf(nil, 0, nil, "%s fields are %T, wanted a list", v.TypeName, raw), EntityID(*v.FieldsRef))
		}
	} else {
		fields = make([]any, len(v.Fields))
		for i, f := range v.Fields {
			obj, err := r.native(f)
			if err != nil {
				return nil, err
			}
			fields[i] = obj
		}
	}
	def := r.db.types.decodeDef(desc)
	obj, err := def.New(fields)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", v.TypeName, err)
	}
	return obj, nil
}
