package objstore

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const renderedItems = 3

// Render formats a native value for diagnostics. indent is the nesting
// level of v: lists and maps show their first few items only at level 0,
// and custom objects two or more levels down show only their type name.
func Render(v any, indent int) string {
	r := renderer{typeName: goTypeName}
	var buf strings.Builder
	r.render(&buf, reflect.ValueOf(v), indent)
	return buf.String()
}

func (db *DB) render(v any) string {
	r := renderer{typeName: func(obj any) string {
		if name := db.types.nameOfNative(obj); name != "" {
			return name
		}
		return goTypeName(obj)
	}}
	var buf strings.Builder
	r.render(&buf, reflect.ValueOf(v), 0)
	return buf.String()
}

func goTypeName(obj any) string {
	if rec, ok := obj.(*Record); ok {
		return rec.Type
	}
	t := reflect.TypeOf(obj)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

type renderer struct {
	typeName func(obj any) string
}

func (r renderer) render(buf *strings.Builder, v reflect.Value, depth int) {
	if !v.IsValid() {
		buf.WriteString("nil")
		return
	}
	if v.Kind() != reflect.Interface && v.Kind() != reflect.Pointer && v.Type().Implements(valueType) {
		buf.WriteString(v.Interface().(Value).String())
		return
	}
	if v.Type() == recordType {
		if v.IsNil() {
			buf.WriteString("nil")
			return
		}
		rec := v.Interface().(*Record)
		r.custom(buf, rec.Type, rec.Names, rec.Values, depth)
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		buf.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case reflect.String:
		buf.WriteString(strconv.Quote(v.String()))
	case reflect.Slice, reflect.Array:
		if depth > 0 {
			buf.WriteString("<list>")
			return
		}
		buf.WriteByte('[')
		n := v.Len()
		for i := 0; i < n && i < renderedItems; i++ {
			if i > 0 {
				buf.WriteString(", ")
			}
			r.render(buf, v.Index(i), depth+1)
		}
		if n > renderedItems {
			buf.WriteString(", ...")
		}
		buf.WriteByte(']')
	case reflect.Map:
		if depth > 0 {
			buf.WriteString("<dict>")
			return
		}
		type entry struct{ k, v string }
		entries := make([]entry, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			var kb, vb strings.Builder
			r.render(&kb, iter.Key(), depth+1)
			r.render(&vb, iter.Value(), depth+1)
			entries = append(entries, entry{kb.String(), vb.String()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].k < entries[j].k })
		buf.WriteByte('{')
		for i, e := range entries {
			if i >= renderedItems {
				buf.WriteString(", ...")
				break
			}
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(e.k)
			buf.WriteString(": ")
			buf.WriteString(e.v)
		}
		buf.WriteByte('}')
	case reflect.Interface:
		if v.IsNil() {
			buf.WriteString("nil")
			return
		}
		r.render(buf, v.Elem(), depth)
	case reflect.Pointer:
		if v.IsNil() {
			buf.WriteString("nil")
			return
		}
		if v.Elem().Kind() == reflect.Struct {
			r.structValue(buf, v, depth)
			return
		}
		r.render(buf, v.Elem(), depth)
	case reflect.Struct:
		r.structValue(buf, v, depth)
	default:
		fmt.Fprintf(buf, "<%v>", v.Type())
	}
}

func (r renderer) structValue(buf *strings.Builder, v reflect.Value, depth int) {
	name := r.typeName(v.Interface())
	sv := v
	if sv.Kind() == reflect.Pointer {
		sv = sv.Elem()
	}
	si := reflectStruct(sv.Type())
	values := make([]any, len(si.fields))
	if depth < 2 {
		for i, f := range si.fields {
			values[i] = sv.FieldByIndex(f.index).Interface()
		}
	}
	r.custom(buf, name, si.names(), values, depth)
}

func (r renderer) custom(buf *strings.Builder, name string, names []string, values []any, depth int) {
	if depth >= 2 {
		buf.WriteString("<" + name + ">")
		return
	}
	buf.WriteString(name)
	buf.WriteString(" {")
	for i, val := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte(' ')
		if i < len(names) {
			buf.WriteString(names[i])
		} else {
			buf.WriteString("#" + strconv.Itoa(i))
		}
		buf.WriteString(": ")
		r.render(buf, reflect.ValueOf(val), depth+1)
	}
	buf.WriteString(" }")
}
