package objstore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

type sqliteStorage struct {
	db *sql.DB
}

func openSQLiteStorage(path string) (storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("objstore: open sqlite: %w", err)
	}
	// single writer; also keeps reads inside a tx on the same connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		bucket TEXT NOT NULL,
		key BLOB NOT NULL,
		value BLOB NOT NULL,
		PRIMARY KEY (bucket, key)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("objstore: create kv table: %w", err)
	}
	return &sqliteStorage{db: db}, nil
}

func (s *sqliteStorage) BeginTx(writable bool) (storageTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, writable: writable}, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx       *sql.Tx
	writable bool
}

func (tx *sqliteTx) Writable() bool { return tx.writable }

func (tx *sqliteTx) Bucket(name string) storageBucket {
	return sqliteBucket{tx: tx, name: name}
}

func (tx *sqliteTx) CreateBucket(name string) (storageBucket, error) {
	if !tx.writable {
		return nil, fmt.Errorf("tx not writable")
	}
	return tx.Bucket(name), nil
}

func (tx *sqliteTx) Commit() error {
	if !tx.writable {
		return fmt.Errorf("tx not writable")
	}
	return tx.tx.Commit()
}

func (tx *sqliteTx) Rollback() error {
	err := tx.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (tx *sqliteTx) Size() int64 { return 0 }

type sqliteBucket struct {
	tx   *sqliteTx
	name string
}

func (b sqliteBucket) Get(key []byte) ([]byte, error) {
	var v []byte
	err := b.tx.tx.QueryRow(`SELECT value FROM kv WHERE bucket = ? AND key = ?`, b.name, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("select %s/%x: %w", b.name, key, err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (b sqliteBucket) Put(key, value []byte) error {
	if !b.tx.writable {
		return fmt.Errorf("tx not writable")
	}
	if value == nil {
		value = []byte{}
	}
	_, err := b.tx.tx.Exec(`INSERT INTO kv (bucket, key, value) VALUES (?, ?, ?)
		ON CONFLICT (bucket, key) DO UPDATE SET value = excluded.value`, b.name, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s/%x: %w", b.name, key, err)
	}
	return nil
}

// ForEach reads all rows before invoking fn, so fn may issue further queries
// on the same transaction.
func (b sqliteBucket) ForEach(fn func(k, v []byte) error) error {
	rows, err := b.tx.tx.Query(`SELECT key, value FROM kv WHERE bucket = ? ORDER BY key`, b.name)
	if err != nil {
		return fmt.Errorf("select %s: %w", b.name, err)
	}
	type raw struct {
		key, value []byte
	}
	var raws []raw
	for rows.Next() {
		var r raw
		if err := rows.Scan(&r.key, &r.value); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s: %w", b.name, err)
		}
		raws = append(raws, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, r := range raws {
		if err := fn(r.key, r.value); err != nil {
			return err
		}
	}
	return nil
}

func (b sqliteBucket) Stats() (bucketStats, error) {
	var s bucketStats
	err := b.tx.tx.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv WHERE bucket = ?`, b.name).Scan(&s.KeyN, &s.LeafInuse)
	if err != nil {
		return s, fmt.Errorf("stats %s: %w", b.name, err)
	}
	s.LeafAlloc = s.LeafInuse
	return s, nil
}
