package objstore

import (
	"fmt"
	"slices"
)

// checkUnique fails an insertion of c if an object of the same type with the
// same primary field values is already stored.
func (db *DB) checkUnique(c Custom) error {
	desc := db.types.descriptorByName(c.TypeName)
	if desc == nil || len(desc.PrimaryFields) == 0 {
		// nothing of this type has been stored yet, or duplicates are fine
		return nil
	}

	preds := make([]Predicate, 0, 1+len(desc.PrimaryFields))
	preds = append(preds, db.isTypeNamed(c.TypeName))
	for _, name := range desc.PrimaryFields {
		want, err := db.customField(c, desc, name)
		if err != nil {
			return err
		}
		preds = append(preds, db.hasField(c.TypeName, name, want))
	}

	matches, err := db.getAll(preds)
	if err != nil {
		return fmt.Errorf("objstore: checking %s uniqueness: %w", c.TypeName, err)
	}
	if len(matches) > 0 {
		return &DuplicateKeyError{
			TypeName: c.TypeName,
			Fields:   slices.Clone(desc.PrimaryFields),
			Existing: db.render(matches[0]),
		}
	}
	return nil
}

func (db *DB) customField(c Custom, desc *TypeDescriptor, name string) (any, error) {
	if c.source != nil {
		if v, ok := db.nativeField(c.TypeName, c.source, name); ok {
			return v, nil
		}
	}
	if i := slices.Index(desc.FieldNames, name); i >= 0 && i < len(c.Fields) {
		return newResolver(db).native(c.Fields[i])
	}
	return nil, fmt.Errorf("objstore: %s has no primary field %q", c.TypeName, name)
}

func (db *DB) isTypeNamed(name string) Predicate {
	return func(obj any) bool {
		return db.types.nameOfNative(obj) == name
	}
}

func (db *DB) hasField(typeName, name string, want any) Predicate {
	return func(obj any) bool {
		got, ok := db.nativeField(typeName, obj, name)
		return ok && nativeEqual(got, want)
	}
}

// nativeField reads a field by reflection, falling back to the type's own
// Fields function for types whose fields are not visible to reflection.
func (db *DB) nativeField(typeName string, obj any, name string) (any, bool) {
	if v, ok := fieldOf(obj, name); ok {
		return v, true
	}
	def := db.types.defs[typeName]
	if def == nil {
		return nil, false
	}
	i := slices.Index(def.FieldNames, name)
	if i < 0 {
		return nil, false
	}
	values, err := def.Fields(obj)
	if err != nil || i >= len(values) {
		return nil, false
	}
	return values[i], true
}
