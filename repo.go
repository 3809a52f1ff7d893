package objstore

import (
	"fmt"
	"slices"
	"strconv"
)

const (
	entitiesBucket = "entities"
	typesBucket    = "types"
)

// repo is a flat id -> bytes keyspace inside one storage bucket. Keys are
// the lowercase hex form of the id. It knows nothing about the bytes.
type repo struct {
	st     storage
	bucket string
	maxID  uint64
	next   uint64
	full   bool
}

func openRepo(st storage, bucket string, maxID uint64) (*repo, error) {
	r := &repo{st: st, bucket: bucket, maxID: maxID}
	err := update(st, func(tx storageTx) error {
		b, err := tx.CreateBucket(bucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			id, err := parseKey(k, maxID)
			if err != nil {
				return fmt.Errorf("%s: %w", bucket, err)
			}
			r.observe(id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func appendKey(buf []byte, id uint64) []byte {
	return strconv.AppendUint(buf, id, 16)
}

func parseKey(k []byte, maxID uint64) (uint64, error) {
	// ParseUint would accept upper case and "0x"-less junk we never write
	for _, c := range k {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return 0, fmt.Errorf("invalid key %q", k)
		}
	}
	if len(k) == 0 || (len(k) > 1 && k[0] == '0') {
		return 0, fmt.Errorf("invalid key %q", k)
	}
	id, err := strconv.ParseUint(string(k), 16, 64)
	if err != nil || id > maxID {
		return 0, fmt.Errorf("invalid key %q", k)
	}
	return id, nil
}

// allocateAndWrite stores data under a fresh id, one past the current maximum.
func (r *repo) allocateAndWrite(data []byte) (uint64, error) {
	id := r.next
	if r.full {
		return 0, fmt.Errorf("objstore: %s: id space exhausted", r.bucket)
	}
	if err := r.writeAt(id, data); err != nil {
		return 0, err
	}
	return id, nil
}

// writeAt overwrites (or creates) the record at id.
func (r *repo) writeAt(id uint64, data []byte) error {
	if id > r.maxID {
		return fmt.Errorf("objstore: %s: id %s out of range", r.bucket, formatID(id))
	}
	var keyBuf [16]byte
	err := update(r.st, func(tx storageTx) error {
		b, err := tx.CreateBucket(r.bucket)
		if err != nil {
			return err
		}
		return b.Put(appendKey(keyBuf[:0], id), data)
	})
	if err != nil {
		return fmt.Errorf("objstore: writing %s/%s: %w", r.bucket, formatID(id), err)
	}
	r.observe(id)
	return nil
}

func (r *repo) observe(id uint64) {
	if id == r.maxID {
		r.full = true
	} else if id >= r.next {
		r.next = id + 1
	}
}

func (r *repo) read(id uint64) ([]byte, error) {
	var keyBuf [16]byte
	var data []byte
	err := view(r.st, func(tx storageTx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return nil
		}
		v, err := b.Get(appendKey(keyBuf[:0], id))
		if err != nil {
			return err
		}
		if v != nil {
			data = slices.Clone(v)
			if data == nil {
				data = []byte{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: reading %s/%s: %w", r.bucket, formatID(id), err)
	}
	if data == nil {
		return nil, notFoundf("%s/%s", r.bucket, formatID(id))
	}
	return data, nil
}

// ids lists every id in backend iteration order (byte order of the hex keys,
// which is not numeric order).
func (r *repo) ids() ([]uint64, error) {
	var ids []uint64
	err := view(r.st, func(tx storageTx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			id, err := parseKey(k, r.maxID)
			if err != nil {
				return fmt.Errorf("%s: %w", r.bucket, err)
			}
			ids = append(ids, id)
			return nil
		})
	})
	return ids, err
}

func (r *repo) stats() (bucketStats, error) {
	var s bucketStats
	err := view(r.st, func(tx storageTx) error {
		b := tx.Bucket(r.bucket)
		if b == nil {
			return nil
		}
		var err error
		s, err = b.Stats()
		return err
	})
	return s, err
}
