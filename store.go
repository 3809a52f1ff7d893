package objstore

import (
	"fmt"
	"reflect"
)

// Store converts v and stores it as a new entity, returning its id.
// Composite children are stored first, each as its own entity. Custom
// objects are checked against their type's primary fields before insertion.
func (db *DB) Store(v any) (EntityID, error) {
	if err := db.lock(); err != nil {
		return 0, err
	}
	defer db.unlock()

	val, err := db.toValue(v)
	if err != nil {
		return 0, err
	}
	return db.storeValue(val, true)
}

// StoreAt overwrites the entity at id with v. It is an update: primary field
// uniqueness is not checked for the top-level value.
func (db *DB) StoreAt(id EntityID, v any) error {
	if err := db.lock(); err != nil {
		return err
	}
	defer db.unlock()

	val, err := db.toValue(v)
	if err != nil {
		return err
	}
	_, err = db.writeValue(val, &id)
	return err
}

// Get loads the entity at id and every entity it refers to.
func (db *DB) Get(id EntityID) (any, error) {
	if err := db.lock(); err != nil {
		return nil, err
	}
	defer db.unlock()

	if db.verbose {
		db.logf("db: GET %s", formatID(uint64(id)))
	}
	return db.loadRemembered(id)
}

func GetAs[T any](db *DB, id EntityID) (*T, error) {
	obj, err := db.Get(id)
	if err != nil {
		return nil, err
	}
	p, ok := obj.(*T)
	if !ok {
		return nil, fmt.Errorf("objstore: entity %s is %T, not %v", formatID(uint64(id)), obj, reflect.TypeOf((*T)(nil)))
	}
	return p, nil
}

// storeValue inserts v. A custom object already known by identity is
// rewritten in place when it appears as a child.
func (db *DB) storeValue(v Value, top bool) (EntityID, error) {
	if c, ok := v.(Custom); ok {
		if !top {
			if id, found := db.ident.lookup(c.source); found {
				return db.writeValue(v, &id)
			}
		}
		if err := db.checkUnique(c); err != nil {
			return 0, err
		}
	}
	return db.writeValue(v, nil)
}

// writeValue encodes v (storing its children) and writes it at id, or at a
// freshly allocated id if at is nil.
func (db *DB) writeValue(v Value, at *EntityID) (EntityID, error) {
	data, err := encodeValue(nil, v, db)
	if err != nil {
		return 0, err
	}
	var id EntityID
	if at != nil {
		id = *at
		err = db.entities.writeAt(uint64(id), data)
	} else {
		var raw uint64
		raw, err = db.entities.allocateAndWrite(data)
		id = EntityID(raw)
	}
	if err != nil {
		return 0, err
	}
	db.WriteCount.Add(1)
	if db.verbose {
		db.logf("db: PUT %s => %v", formatID(uint64(id)), v)
	}
	if c, ok := v.(Custom); ok {
		db.ident.remember(c.source, id)
	}
	return id, nil
}

func (db *DB) storeChild(v Value) (EntityID, error) {
	return db.storeValue(v, false)
}

func (db *DB) resolveOrDefine(typeName string) (TypeID, error) {
	known := db.types.descriptorByName(typeName) != nil
	id, err := db.types.resolveOrDefine(db, typeName)
	if err != nil {
		return 0, err
	}
	if !known && db.verbose {
		db.logf("db: TYPE %s => %d", typeName, id)
	}
	return id, nil
}
