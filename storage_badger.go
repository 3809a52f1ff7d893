package objstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger has no buckets, so they are emulated by prefixing every key with
// the bucket name and a zero byte.
const badgerBucketSep = 0

type badgerStorage struct {
	bdb *badger.DB
}

func openBadgerStorage(path string, opt *Options) (storage, error) {
	bopt := badger.DefaultOptions(path)
	bopt = bopt.WithLogger(badgerLogger{logf: opt.Logf, verbose: opt.Verbose})
	if opt.IsTesting {
		bopt = bopt.WithSyncWrites(false).WithNumVersionsToKeep(1)
	}
	bdb, err := badger.Open(bopt)
	if err != nil {
		return nil, fmt.Errorf("objstore: badger: %w", err)
	}
	return &badgerStorage{bdb: bdb}, nil
}

func (s *badgerStorage) BeginTx(writable bool) (storageTx, error) {
	if s.bdb.IsClosed() {
		return nil, fmt.Errorf("storage closed")
	}
	return &badgerTx{db: s.bdb, txn: s.bdb.NewTransaction(writable), writable: writable}, nil
}

func (s *badgerStorage) Close() error {
	return s.bdb.Close()
}

type badgerTx struct {
	db       *badger.DB
	txn      *badger.Txn
	writable bool
}

func (tx *badgerTx) Writable() bool { return tx.writable }

func (tx *badgerTx) Bucket(name string) storageBucket {
	return badgerBucket{tx: tx, prefix: append([]byte(name), badgerBucketSep)}
}

func (tx *badgerTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	return tx.Bucket(name), nil
}

func (tx *badgerTx) Commit() error { return tx.txn.Commit() }

func (tx *badgerTx) Rollback() error {
	tx.txn.Discard()
	return nil
}

func (tx *badgerTx) Size() int64 {
	lsm, vlog := tx.db.Size()
	return lsm + vlog
}

type badgerBucket struct {
	tx     *badgerTx
	prefix []byte
}

func (b badgerBucket) key(k []byte) []byte {
	full := make([]byte, 0, len(b.prefix)+len(k))
	full = append(full, b.prefix...)
	return append(full, k...)
}

func (b badgerBucket) Get(key []byte) ([]byte, error) {
	item, err := b.tx.txn.Get(b.key(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	v, err := item.ValueCopy(nil)
	if err == nil && v == nil {
		v = []byte{}
	}
	return v, err
}

func (b badgerBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	return b.tx.txn.Set(b.key(key), append([]byte(nil), value...))
}

func (b badgerBucket) ForEach(fn func(k, v []byte) error) error {
	iopt := badger.DefaultIteratorOptions
	iopt.Prefix = b.prefix
	it := b.tx.txn.NewIterator(iopt)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil)[len(b.prefix):], v); err != nil {
			return err
		}
	}
	return nil
}

func (b badgerBucket) Stats() (bucketStats, error) {
	var s bucketStats
	iopt := badger.DefaultIteratorOptions
	iopt.Prefix = b.prefix
	iopt.PrefetchValues = false
	it := b.tx.txn.NewIterator(iopt)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		s.KeyN++
		s.LeafInuse += int64(len(item.Key())-len(b.prefix)) + item.ValueSize()
	}
	s.LeafAlloc = s.LeafInuse
	return s, nil
}

// badgerLogger routes Badger's internal messages to Options.Logf. Only
// errors and warnings are passed through unless running verbose.
type badgerLogger struct {
	logf    func(format string, args ...any)
	verbose bool
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log("ERROR", format, args)
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log("WARNING", format, args)
}

func (l badgerLogger) Infof(format string, args ...any) {
	if l.verbose {
		l.log("INFO", format, args)
	}
}

func (l badgerLogger) Debugf(format string, args ...any) {
	if l.verbose {
		l.log("DEBUG", format, args)
	}
}

func (l badgerLogger) log(level, format string, args []any) {
	if l.logf == nil {
		return
	}
	l.logf("badger: %s: %s", level, fmt.Sprintf(format, args...))
}
