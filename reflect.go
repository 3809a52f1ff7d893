package objstore

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
)

var typeInfoCache sync.Map

func reflectTypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

type structField struct {
	name  string
	index []int
	typ   reflect.Type
}

type structInfo struct {
	typ    reflect.Type
	fields []structField
}

// reflectStruct describes the stored fields of a struct type: exported
// fields in declaration order, renamed by an `objstore:"name"` tag or
// skipped by `objstore:"-"`.
func reflectStruct(typ reflect.Type) *structInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*structInfo)
	}
	info := reflectStructWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*structInfo)
}

func reflectStructWithoutCache(typ reflect.Type) *structInfo {
	if typ.Kind() != reflect.Struct {
		panic(fmt.Errorf("%v not a struct", typ))
	}
	info := &structInfo{typ: typ}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("objstore"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		info.fields = append(info.fields, structField{name: name, index: f.Index, typ: f.Type})
	}
	return info
}

// field finds a field by stored name, falling back to a case-insensitive
// match so that "name" finds Name.
func (si *structInfo) field(name string) (structField, bool) {
	for _, f := range si.fields {
		if f.name == name {
			return f, true
		}
	}
	for _, f := range si.fields {
		if strings.EqualFold(f.name, name) {
			return f, true
		}
	}
	return structField{}, false
}

func (si *structInfo) names() []string {
	names := make([]string, len(si.fields))
	for i, f := range si.fields {
		names[i] = f.name
	}
	return names
}

// structValue dereferences pointers down to a struct, reporting false for
// anything else (including nil pointers).
func structValue(obj any) (reflect.Value, bool) {
	v := reflect.ValueOf(obj)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

// fieldOf returns the named field of a struct (or pointer to one) or a *Record.
func fieldOf(obj any, name string) (any, bool) {
	if rec, ok := obj.(*Record); ok {
		return rec.Field(name)
	}
	v, ok := structValue(obj)
	if !ok {
		return nil, false
	}
	f, ok := reflectStruct(v.Type()).field(name)
	if !ok {
		return nil, false
	}
	return v.FieldByIndex(f.index).Interface(), true
}

// assignNative stores a decoded native value into dst, converting between
// the generic decoded shapes ([]any, map[any]any, int64, float64, pointers
// to structs) and the destination's static type.
func assignNative(dst reflect.Value, src any) error {
	dt := dst.Type()
	if src == nil {
		dst.Set(reflect.Zero(dt))
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dt) {
		dst.Set(sv)
		return nil
	}

	switch dt.Kind() {
	case reflect.Bool:
		if sv.Kind() == reflect.Bool {
			dst.SetBool(sv.Bool())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if sv.Kind() == reflect.Int64 {
			n := sv.Int()
			if dst.OverflowInt(n) {
				return fmt.Errorf("%d overflows %v", n, dt)
			}
			dst.SetInt(n)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if sv.Kind() == reflect.Int64 {
			n := sv.Int()
			if n < 0 || dst.OverflowUint(uint64(n)) {
				return fmt.Errorf("%d overflows %v", n, dt)
			}
			dst.SetUint(uint64(n))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch sv.Kind() {
		case reflect.Float64:
			f := sv.Float()
			if dt.Kind() == reflect.Float32 && !math.IsInf(f, 0) && !math.IsNaN(f) && dst.OverflowFloat(f) {
				return fmt.Errorf("%g overflows %v", f, dt)
			}
			dst.SetFloat(f)
			return nil
		case reflect.Int64:
			dst.SetFloat(float64(sv.Int()))
			return nil
		}
	case reflect.String:
		if sv.Kind() == reflect.String {
			dst.SetString(sv.String())
			return nil
		}
	case reflect.Slice:
		if items, ok := src.([]any); ok {
			out := reflect.MakeSlice(dt, len(items), len(items))
			for i, item := range items {
				if err := assignNative(out.Index(i), item); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
			dst.Set(out)
			return nil
		}
	case reflect.Array:
		if items, ok := src.([]any); ok {
			if len(items) != dt.Len() {
				return fmt.Errorf("got %d items for %v", len(items), dt)
			}
			for i, item := range items {
				if err := assignNative(dst.Index(i), item); err != nil {
					return fmt.Errorf("[%d]: %w", i, err)
				}
			}
			return nil
		}
	case reflect.Map:
		if m, ok := src.(map[any]any); ok {
			out := reflect.MakeMapWithSize(dt, len(m))
			for k, v := range m {
				kv := reflect.New(dt.Key()).Elem()
				if err := assignNative(kv, k); err != nil {
					return fmt.Errorf("key %v: %w", k, err)
				}
				vv := reflect.New(dt.Elem()).Elem()
				if err := assignNative(vv, v); err != nil {
					return fmt.Errorf("[%v]: %w", k, err)
				}
				out.SetMapIndex(kv, vv)
			}
			dst.Set(out)
			return nil
		}
	case reflect.Struct:
		if sv.Kind() == reflect.Pointer && sv.Type().Elem() == dt {
			if sv.IsNil() {
				return fmt.Errorf("nil %v", sv.Type())
			}
			dst.Set(sv.Elem())
			return nil
		}
	case reflect.Pointer:
		if sv.Kind() != reflect.Pointer {
			p := reflect.New(dt.Elem())
			if err := assignNative(p.Elem(), src); err != nil {
				return err
			}
			dst.Set(p)
			return nil
		}
	}
	return fmt.Errorf("cannot assign %T to %v", src, dt)
}
