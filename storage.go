package objstore

import "fmt"

// storage represents a key-value storage backend (Bolt, Badger, SQLite, in-memory).
type storage interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (storageTx, error)
	// Close closes the storage.
	Close() error
}

// storageTx represents a storage transaction.
type storageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Bucket returns a flat keyspace. Returns nil if the bucket doesn't exist.
	Bucket(name string) storageBucket

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (storageBucket, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. It should be safe to call multiple times
	// and after Commit.
	Rollback() error

	// Size returns the database size in bytes (0 if unknown / not applicable).
	Size() int64
}

// storageBucket represents a bucket (sorted key-value collection).
type storageBucket interface {
	// Get retrieves a value by key. Returns nil if not found. The returned
	// slice is only valid until the end of the transaction.
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair.
	Put(key, value []byte) error

	// ForEach calls fn for every pair in key order, stopping at the first error.
	ForEach(fn func(k, v []byte) error) error

	// Stats returns storage-specific bucket statistics.
	// Backends that don't track allocation sizes may return zero values except KeyN.
	Stats() (bucketStats, error)
}

type bucketStats struct {
	KeyN        int
	LeafInuse   int64
	LeafAlloc   int64
	BranchAlloc int64
}

func (s bucketStats) TotalAlloc() int64 { return s.BranchAlloc + s.LeafAlloc }

type Backend string

const (
	BackendBolt   Backend = "bolt"
	BackendBadger Backend = "badger"
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

func openStorage(path string, opt *Options) (storage, error) {
	switch opt.Backend {
	case BackendBolt, "":
		return openBoltStorage(path, opt)
	case BackendBadger:
		return openBadgerStorage(path, opt)
	case BackendSQLite:
		return openSQLiteStorage(path)
	case BackendMemory:
		return newMemStorage(), nil
	default:
		return nil, fmt.Errorf("objstore: unknown backend %q", opt.Backend)
	}
}

// update runs f in a writable transaction and commits it unless f fails.
func update(st storage, f func(tx storageTx) error) error {
	tx, err := st.BeginTx(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func view(st storage, f func(tx storageTx) error) error {
	tx, err := st.BeginTx(false)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}
