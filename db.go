package objstore

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("objstore: database closed")

// DB is an embedded object store. All public methods are safe for concurrent
// use; they are serialized.
type DB struct {
	st       storage
	path     string
	backend  Backend
	schema   *Schema
	entities *repo
	types    *registry
	ident    *identityMap
	logf     func(format string, args ...any)
	verbose  bool

	mu     sync.Mutex
	closed bool

	ReadCount  atomic.Uint64
	WriteCount atomic.Uint64
}

// Open opens (creating if needed) the store at path. Ids continue from the
// largest ones found, and every persisted type descriptor is loaded.
func Open(path string, schema *Schema, opt Options) (*DB, error) {
	opt.setDefaults()
	if schema == nil {
		schema = &Schema{}
	}

	st, err := openStorage(path, &opt)
	if err != nil {
		return nil, err
	}
	ident, err := newIdentityMap(opt.IdentityCacheSize)
	if err != nil {
		st.Close()
		return nil, err
	}

	db := &DB{
		st:      st,
		path:    path,
		backend: opt.Backend,
		schema:  schema,
		ident:   ident,
		logf:    opt.Logf,
		verbose: opt.Verbose,
	}

	db.entities, err = openRepo(st, entitiesBucket, math.MaxUint64)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("objstore: %w", err)
	}
	pointers, err := openRepo(st, typesBucket, math.MaxUint16)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("objstore: %w", err)
	}
	db.types = newRegistry(schema, pointers, db.logf)
	if err := db.types.load(db); err != nil {
		st.Close()
		return nil, err
	}
	if db.verbose {
		db.logf("db: OPEN %s (%s): next entity %s, %d types", path, opt.Backend, formatID(db.entities.next), len(db.types.byID))
	}
	return db, nil
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	db.ident.forget()
	if err := db.st.Close(); err != nil {
		return fmt.Errorf("objstore: closing: %w", err)
	}
	return nil
}

func (db *DB) Path() string {
	return db.path
}

func (db *DB) Backend() Backend {
	return db.backend
}

// Types lists the persisted type descriptors in id order.
func (db *DB) Types() []*TypeDescriptor {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.types.descriptors()
}

func (db *DB) lock() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return ErrClosed
	}
	return nil
}

func (db *DB) unlock() {
	db.mu.Unlock()
}
