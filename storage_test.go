package objstore

import (
	"errors"
	"path/filepath"
	"testing"
)

var allBackends = []Backend{BackendBolt, BackendBadger, BackendSQLite, BackendMemory}

func openTestStorage(t testing.TB, backend Backend, path string) storage {
	t.Helper()
	st := must(openStorage(path, &Options{Backend: backend, IsTesting: true}))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStorageContract(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			st := openTestStorage(t, backend, filepath.Join(t.TempDir(), "kv"))

			ensure(update(st, func(tx storageTx) error {
				if !tx.Writable() {
					t.Errorf("update tx not writable")
				}
				b, err := tx.CreateBucket("one")
				if err != nil {
					return err
				}
				ensure(b.Put([]byte("b"), []byte("2")))
				ensure(b.Put([]byte("a"), []byte("1")))
				ensure(b.Put([]byte("c"), []byte("3")))
				ensure(b.Put([]byte("b"), []byte("22")))

				other, err := tx.CreateBucket("two")
				if err != nil {
					return err
				}
				return other.Put([]byte("a"), []byte("other"))
			}))

			ensure(view(st, func(tx storageTx) error {
				b := tx.Bucket("one")
				deepEqual(t, string(must(b.Get([]byte("b")))), "22")
				if v := must(b.Get([]byte("zz"))); v != nil {
					t.Errorf("Get(missing) = %q, wanted nil", v)
				}

				var keys, values []string
				ensure(b.ForEach(func(k, v []byte) error {
					keys = append(keys, string(k))
					values = append(values, string(v))
					return nil
				}))
				deepEqual(t, keys, []string{"a", "b", "c"})
				deepEqual(t, values, []string{"1", "22", "3"})

				s := must(b.Stats())
				deepEqual(t, s.KeyN, 3)

				deepEqual(t, string(must(tx.Bucket("two").Get([]byte("a")))), "other")
				return nil
			}))
		})
	}
}

func TestStorageRollback(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			st := openTestStorage(t, backend, filepath.Join(t.TempDir(), "kv"))
			ensure(update(st, func(tx storageTx) error {
				_, err := tx.CreateBucket("b")
				return err
			}))

			failure := errors.New("failure")
			err := update(st, func(tx storageTx) error {
				b := must(tx.CreateBucket("b"))
				ensure(b.Put([]byte("k"), []byte("v")))
				return failure
			})
			isErr(t, err, failure)

			ensure(view(st, func(tx storageTx) error {
				if v := must(tx.Bucket("b").Get([]byte("k"))); v != nil {
					t.Errorf("Get after rollback = %q, wanted nil", v)
				}
				return nil
			}))
		})
	}
}

func TestStorageStopsForEach(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			st := openTestStorage(t, backend, filepath.Join(t.TempDir(), "kv"))
			ensure(update(st, func(tx storageTx) error {
				b := must(tx.CreateBucket("b"))
				ensure(b.Put([]byte("1"), []byte("x")))
				return b.Put([]byte("2"), []byte("y"))
			}))
			stop := errors.New("stop")
			var n int
			err := view(st, func(tx storageTx) error {
				return tx.Bucket("b").ForEach(func(k, v []byte) error {
					n++
					return stop
				})
			})
			isErr(t, err, stop)
			deepEqual(t, n, 1)
		})
	}
}

func TestOpenStorageUnknownBackend(t *testing.T) {
	_, err := openStorage(filepath.Join(t.TempDir(), "kv"), &Options{Backend: "floppy"})
	if err == nil {
		t.Fatalf("openStorage(floppy) succeeded")
	}
}

func TestRepo(t *testing.T) {
	for _, backend := range allBackends {
		t.Run(string(backend), func(t *testing.T) {
			st := openTestStorage(t, backend, filepath.Join(t.TempDir(), "kv"))
			r := must(openRepo(st, entitiesBucket, 1<<20))

			for i := uint64(0); i < 3; i++ {
				deepEqual(t, must(r.allocateAndWrite([]byte{byte(i)})), i)
			}
			ensure(r.writeAt(0x1a, []byte("x")))
			deepEqual(t, must(r.allocateAndWrite([]byte("y"))), uint64(0x1b))
			ensure(r.writeAt(1, []byte("overwritten")))

			deepEqual(t, string(must(r.read(1))), "overwritten")
			_, err := r.read(5)
			isErr(t, err, ErrNotFound)

			// hex keys sort as text, not as numbers
			deepEqual(t, must(r.ids()), []uint64{0, 1, 0x1a, 0x1b, 2})

			ensure(view(st, func(tx storageTx) error {
				v := must(tx.Bucket(entitiesBucket).Get([]byte("1a")))
				deepEqual(t, string(v), "x")
				return nil
			}))

			deepEqual(t, must(r.stats()).KeyN, 5)

			r2 := must(openRepo(st, entitiesBucket, 1<<20))
			deepEqual(t, r2.next, uint64(0x1c))
		})
	}
}

func TestRepoExhaustion(t *testing.T) {
	st := openTestStorage(t, BackendMemory, "")
	r := must(openRepo(st, typesBucket, 2))
	for i := uint64(0); i <= 2; i++ {
		deepEqual(t, must(r.allocateAndWrite(nil)), i)
	}
	if _, err := r.allocateAndWrite(nil); err == nil {
		t.Fatalf("allocateAndWrite succeeded past maxID")
	}
	if err := r.writeAt(3, nil); err == nil {
		t.Fatalf("writeAt succeeded past maxID")
	}
}

func TestParseKey(t *testing.T) {
	for _, k := range []string{"0", "9", "a", "ff", "1a2b", "ffffffffffffffff"} {
		if _, err := parseKey([]byte(k), ^uint64(0)); err != nil {
			t.Errorf("parseKey(%q) failed: %v", k, err)
		}
	}
	for _, k := range []string{"", "00", "0a", "A", "x", "-1", "10000000000000000", "1 "} {
		if id, err := parseKey([]byte(k), ^uint64(0)); err == nil {
			t.Errorf("parseKey(%q) = %d, wanted error", k, id)
		}
	}
	if _, err := parseKey([]byte("100"), 0xff); err == nil {
		t.Errorf("parseKey(100) accepted an id above maxID")
	}
	deepEqual(t, string(appendKey(nil, 0)), "0")
	deepEqual(t, string(appendKey(nil, 0xdeadbeef)), "deadbeef")
}

func TestMemStorageSnapshots(t *testing.T) {
	st := openTestStorage(t, BackendMemory, "")
	ensure(update(st, func(tx storageTx) error {
		b := must(tx.CreateBucket("b"))
		ensure(b.Put([]byte("k"), []byte("v1")))
		_ = must(tx.CreateBucket("other"))
		return nil
	}))

	reader := must(st.BeginTx(false))
	defer reader.Rollback()
	before := must(reader.Bucket("b").Get([]byte("k")))

	ensure(update(st, func(tx storageTx) error {
		b := tx.Bucket("b")
		ensure(b.Put([]byte("k"), []byte("v2")))
		deepEqual(t, string(must(b.Get([]byte("k")))), "v2")
		return b.Put([]byte("j"), []byte("new"))
	}))

	// the open reader keeps its view, including the value slice it already got
	deepEqual(t, string(before), "v1")
	deepEqual(t, string(must(reader.Bucket("b").Get([]byte("k")))), "v1")
	if v := must(reader.Bucket("b").Get([]byte("j"))); v != nil {
		t.Errorf("reader sees a later insert: %q", v)
	}

	ensure(view(st, func(tx storageTx) error {
		deepEqual(t, string(must(tx.Bucket("b").Get([]byte("k")))), "v2")
		deepEqual(t, must(tx.Bucket("b").Stats()).KeyN, 2)
		deepEqual(t, must(tx.Bucket("other").Stats()).KeyN, 0)
		return nil
	}))
}

func TestMemStorageLargeScan(t *testing.T) {
	db := must(Open("", basicSchema, Options{Backend: BackendMemory}))
	defer db.Close()
	const n = 500
	notes := make([]Note, n)
	for i := range notes {
		notes[i] = Note{Text: "x"}
	}
	must(db.Store(notes))
	deepEqual(t, len(must(db.GetAll(IsType[Note]()))), n)
}
