package objstore

import (
	"fmt"
	"reflect"
	"slices"
)

// TypeDescriptor is the persisted description of a custom type.
type TypeDescriptor struct {
	ID            TypeID
	Name          string
	PrimaryFields []string
	FieldNames    []string
	Entity        EntityID
}

// descriptorStore is the part of DB the registry needs to keep descriptors
// as ordinary entities.
type descriptorStore interface {
	storeValue(v Value, top bool) (EntityID, error)
	loadNative(id EntityID) (any, error)
}

// registry maps type names to type ids and to the Go side of each type.
// Type ids are allocated the same way entity ids are, in the types bucket,
// whose records point at descriptor entities.
type registry struct {
	pointers *repo
	logf     func(format string, args ...any)

	defs     map[string]*TypeDef
	byGoType map[reflect.Type]*TypeDef
	byName   map[string]*TypeDescriptor
	byID     map[TypeID]*TypeDescriptor
}

func newRegistry(scm *Schema, pointers *repo, logf func(format string, args ...any)) *registry {
	reg := &registry{
		pointers: pointers,
		logf:     logf,
		defs:     make(map[string]*TypeDef),
		byGoType: make(map[reflect.Type]*TypeDef),
		byName:   make(map[string]*TypeDescriptor),
		byID:     make(map[TypeID]*TypeDescriptor),
	}
	if scm != nil {
		for _, def := range scm.types {
			reg.addDef(def)
		}
	}
	return reg
}

func (reg *registry) addDef(def *TypeDef) {
	reg.defs[def.Name] = def
	if def.GoType != nil {
		reg.byGoType[def.GoType] = def
		if def.GoType.Kind() == reflect.Pointer {
			reg.byGoType[def.GoType.Elem()] = def
		}
	}
}

// load reads every persisted descriptor. Persisted primary fields win over
// the ones in the schema.
func (reg *registry) load(ds descriptorStore) error {
	ids, err := reg.pointers.ids()
	if err != nil {
		return err
	}
	for _, raw := range ids {
		id := TypeID(raw)
		data, err := reg.pointers.read(raw)
		if err != nil {
			return err
		}
		if len(data) != idSize {
			return fmt.Errorf("objstore: type %d: %w", id, corruptf(data, 0, nil, "type pointer of %d bytes", len(data)))
		}
		d := makeByteDecoder(data)
		ent, _ := d.FixedUint64()
		native, err := ds.loadNative(EntityID(ent))
		if err != nil {
			return fmt.Errorf("objstore: type %d: %w", id, err)
		}
		desc, err := parseDescriptor(native)
		if err != nil {
			return fmt.Errorf("objstore: type %d: %w", id, withEntity(err, EntityID(ent)))
		}
		desc.ID = id
		desc.Entity = EntityID(ent)
		if prev := reg.byName[desc.Name]; prev != nil {
			return fmt.Errorf("objstore: types %d and %d are both named %s", prev.ID, id, desc.Name)
		}
		if def := reg.defs[desc.Name]; def != nil {
			if !slices.Equal(def.PrimaryFields, desc.PrimaryFields) {
				reg.logf("objstore: type %s: persisted primary fields %v override %v", desc.Name, desc.PrimaryFields, def.PrimaryFields)
			}
		}
		reg.byName[desc.Name] = desc
		reg.byID[id] = desc
	}
	return nil
}

func parseDescriptor(native any) (*TypeDescriptor, error) {
	m, ok := native.(map[any]any)
	if !ok {
		return nil, corruptf(nil, 0, nil, "type descriptor is %T, wanted a dict", native)
	}
	name, ok := m["name"].(string)
	if !ok || name == "" {
		return nil, corruptf(nil, 0, nil, "type descriptor has no name")
	}
	desc := &TypeDescriptor{Name: name}
	var err error
	desc.PrimaryFields, err = stringList(m["primary_fields"])
	if err != nil {
		return nil, corruptf(nil, 0, err, "type %s: primary_fields", name)
	}
	if raw, ok := m["fields"]; ok {
		desc.FieldNames, err = stringList(raw)
		if err != nil {
			return nil, corruptf(nil, 0, err, "type %s: fields", name)
		}
	}
	return desc, nil
}

func stringList(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("got %T, wanted a list", raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("got %T item, wanted a string", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func (desc *TypeDescriptor) value() Value {
	return Dict{Pairs: []Pair{
		{String("name"), String(desc.Name)},
		{String("primary_fields"), stringsValue(desc.PrimaryFields)},
		{String("fields"), stringsValue(desc.FieldNames)},
	}}
}

func stringsValue(ss []string) List {
	out := make(List, len(ss))
	for i, s := range ss {
		out[i] = String(s)
	}
	return out
}

// resolveOrDefine returns the id of the named type, persisting a new
// descriptor first if the type has never been stored.
func (reg *registry) resolveOrDefine(ds descriptorStore, name string) (TypeID, error) {
	if desc := reg.byName[name]; desc != nil {
		return desc.ID, nil
	}
	if reg.pointers.full {
		return 0, fmt.Errorf("objstore: cannot define type %s: type id space exhausted", name)
	}
	desc := &TypeDescriptor{Name: name}
	if def := reg.defs[name]; def != nil {
		desc.PrimaryFields = slices.Clone(def.PrimaryFields)
		desc.FieldNames = slices.Clone(def.FieldNames)
	}
	if desc.PrimaryFields == nil {
		desc.PrimaryFields = []string{}
	}
	if desc.FieldNames == nil {
		desc.FieldNames = []string{}
	}

	ent, err := ds.storeValue(desc.value(), true)
	if err != nil {
		return 0, fmt.Errorf("objstore: storing descriptor of %s: %w", name, err)
	}
	bb := bytesBuilder{make([]byte, 0, idSize)}
	bb.AppendFixedUint64(uint64(ent))
	raw, err := reg.pointers.allocateAndWrite(bb.Buf)
	if err != nil {
		return 0, err
	}
	desc.ID = TypeID(raw)
	desc.Entity = ent
	reg.byName[name] = desc
	reg.byID[desc.ID] = desc
	return desc.ID, nil
}

func (reg *registry) typeName(id TypeID) (string, bool) {
	desc := reg.byID[id]
	if desc == nil {
		return "", false
	}
	return desc.Name, true
}

func (reg *registry) descriptorByName(name string) *TypeDescriptor {
	return reg.byName[name]
}

func (reg *registry) descriptors() []*TypeDescriptor {
	out := make([]*TypeDescriptor, 0, len(reg.byID))
	for _, desc := range reg.byID {
		out = append(out, desc)
	}
	slices.SortFunc(out, func(a, b *TypeDescriptor) int { return int(a.ID) - int(b.ID) })
	return out
}

// nativeDef finds how to encode a Go value of the given type, registering
// unknown struct types under their Go name.
func (reg *registry) nativeDef(typ reflect.Type) (*TypeDef, error) {
	if def := reg.byGoType[typ]; def != nil {
		return def, nil
	}
	st := typ
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, unsupportedf("%v", typ)
	}
	if st.Name() == "" {
		return nil, unsupportedf("anonymous struct %v", st)
	}
	if def := reg.defs[st.Name()]; def != nil && def.GoType != nil {
		return nil, unsupportedf("%v: type name %s is already used by %v", typ, st.Name(), def.GoType)
	}
	def := structTypeDef(st, "", nil)
	reg.addDef(def)
	if reg.logf != nil {
		reg.logf("objstore: registered %v as %s", st, def.Name)
	}
	return def, nil
}

// recordDef returns the definition used to store and decode records of the
// named type, creating one when no Go type is registered.
func (reg *registry) recordDef(name string, names []string) (*TypeDef, error) {
	if def := reg.defs[name]; def != nil {
		if def.GoType != nil {
			return nil, unsupportedf("record of type %s, which is registered as %v", name, def.GoType)
		}
		return def, nil
	}
	def := recordTypeDef(name, slices.Clone(names))
	reg.addDef(def)
	return def, nil
}

// decodeDef returns the definition used to construct decoded instances of
// the described type.
func (reg *registry) decodeDef(desc *TypeDescriptor) *TypeDef {
	def := reg.defs[desc.Name]
	if def == nil {
		def = recordTypeDef(desc.Name, desc.FieldNames)
		reg.defs[desc.Name] = def
	}
	return def
}

// nameOfNative returns the type name an object would be stored under, or
// "" if it is not a custom object.
func (reg *registry) nameOfNative(obj any) string {
	if rec, ok := obj.(*Record); ok {
		return rec.Type
	}
	if obj == nil {
		return ""
	}
	if def := reg.byGoType[reflect.TypeOf(obj)]; def != nil {
		return def.Name
	}
	return ""
}
