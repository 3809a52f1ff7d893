package objstore

import (
	"fmt"
	"reflect"
	"slices"
)

// Schema collects the Go types a DB knows how to construct. Types stored
// without registration are registered automatically (with no primary
// fields) the first time they are seen.
type Schema struct {
	types    []*TypeDef
	byName   map[string]*TypeDef
	byGoType map[reflect.Type]*TypeDef
}

// TypeDef is the native side of a custom type: how to take an instance
// apart into field values and how to build one back.
type TypeDef struct {
	Name          string
	PrimaryFields []string
	FieldNames    []string

	// GoType is the type produced by New, usually a pointer to a struct.
	// Values of GoType (and of its element type, for pointers) are encoded
	// with this definition.
	GoType reflect.Type

	Fields func(obj any) ([]any, error)
	New    func(fields []any) (any, error)
}

func (scm *Schema) init() {
	if scm.byName == nil {
		scm.byName = make(map[string]*TypeDef)
		scm.byGoType = make(map[reflect.Type]*TypeDef)
	}
}

func (scm *Schema) Types() []*TypeDef {
	return slices.Clone(scm.types)
}

func (scm *Schema) TypeNamed(name string) *TypeDef {
	return scm.byName[name]
}

// AddType registers a hand-written type definition.
func (scm *Schema) AddType(def *TypeDef) *TypeDef {
	scm.init()
	if def.Name == "" {
		panic("objstore: type name required")
	}
	if def.Fields == nil || def.New == nil {
		panic(fmt.Errorf("objstore: type %s: Fields and New are required", def.Name))
	}
	if scm.byName[def.Name] != nil {
		panic(fmt.Errorf("objstore: type %s already registered", def.Name))
	}
	for _, f := range def.PrimaryFields {
		if !slices.Contains(def.FieldNames, f) {
			panic(fmt.Errorf("objstore: type %s: primary field %q is not among fields %v", def.Name, f, def.FieldNames))
		}
	}
	scm.types = append(scm.types, def)
	scm.byName[def.Name] = def
	if def.GoType != nil {
		if scm.byGoType[def.GoType] != nil {
			panic(fmt.Errorf("objstore: Go type %v already registered", def.GoType))
		}
		scm.byGoType[def.GoType] = def
	}
	return def
}

// AddStruct registers struct type T under the given name (the Go type name
// if empty). Instances are decoded as *T.
func AddStruct[T any](scm *Schema, name string, primaryFields ...string) *TypeDef {
	typ := reflectTypeOf[T]()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("objstore: AddStruct type argument must be a struct, got %v", typ))
	}
	return scm.AddType(structTypeDef(typ, name, primaryFields))
}

func structTypeDef(typ reflect.Type, name string, primaryFields []string) *TypeDef {
	if name == "" {
		name = typ.Name()
	}
	si := reflectStruct(typ)
	def := &TypeDef{
		Name:       name,
		FieldNames: si.names(),
		GoType:     reflect.PointerTo(typ),
		Fields: func(obj any) ([]any, error) {
			v, ok := structValue(obj)
			if !ok || v.Type() != typ {
				return nil, unsupportedf("%T is not %v", obj, typ)
			}
			out := make([]any, len(si.fields))
			for i, f := range si.fields {
				out[i] = v.FieldByIndex(f.index).Interface()
			}
			return out, nil
		},
		New: func(fields []any) (any, error) {
			p := reflect.New(typ)
			for i, f := range si.fields {
				if i >= len(fields) {
					break
				}
				if err := assignNative(p.Elem().FieldByIndex(f.index), fields[i]); err != nil {
					return nil, fmt.Errorf("%s.%s: %w", name, f.name, err)
				}
			}
			return p.Interface(), nil
		},
	}
	for _, pf := range primaryFields {
		f, ok := si.field(pf)
		if !ok {
			panic(fmt.Errorf("objstore: type %s has no field %q", name, pf))
		}
		def.PrimaryFields = append(def.PrimaryFields, f.name)
	}
	return def
}

// Record is the decoded form of a custom type that has no Go type
// registered in the current process. It can also be stored directly.
type Record struct {
	Type   string
	Names  []string
	Values []any
}

func (rec *Record) Field(name string) (any, bool) {
	if i := slices.Index(rec.Names, name); i >= 0 && i < len(rec.Values) {
		return rec.Values[i], true
	}
	return nil, false
}

func recordTypeDef(name string, names []string) *TypeDef {
	return &TypeDef{
		Name:       name,
		FieldNames: names,
		Fields: func(obj any) ([]any, error) {
			rec, ok := obj.(*Record)
			if !ok {
				return nil, unsupportedf("%T is not a record", obj)
			}
			return rec.Values, nil
		},
		New: func(fields []any) (any, error) {
			return &Record{Type: name, Names: slices.Clone(names), Values: fields}, nil
		},
	}
}
