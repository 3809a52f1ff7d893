package objstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func storeScalars(t testing.TB, db *DB) {
	t.Helper()
	deepEqual(t, must(db.Store("hello")), EntityID(0))
	deepEqual(t, must(db.Store(int64(4))), EntityID(1))
	deepEqual(t, must(db.Store(math.Inf(1))), EntityID(2))
	deepEqual(t, must(db.Store([]any{"a"})), EntityID(4))
}

func TestExportJSON(t *testing.T) {
	db := setup(t, basicSchema)
	storeScalars(t, db)

	var buf bytes.Buffer
	ensure(db.Export(&buf, JSON))
	deepEqual(t, buf.String(), strings.Join([]string{
		`{"id":"0","kind":"string","value":"hello"}`,
		`{"id":"1","kind":"int","value":4}`,
		`{"id":"2","kind":"float","value":"+Inf"}`,
		`{"id":"3","kind":"string","value":"a"}`,
		`{"id":"4","kind":"list","value":null,"refs":["3"]}`,
	}, "\n")+"\n")

	dec := json.NewDecoder(&buf)
	for {
		var e ExportedEntity
		if err := dec.Decode(&e); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("decoding export: %v", err)
		}
	}
}

func TestExportMsgPack(t *testing.T) {
	db := setup(t, basicSchema)
	tom := &Person{Name: "Tom", Age: 4}
	must(db.Store(&Person{Name: "John", Age: 40, Children: []*Person{tom}}))

	var buf bytes.Buffer
	ensure(db.Export(&buf, MsgPack))

	var exported []ExportedEntity
	dec := msgpack.NewDecoder(&buf)
	for {
		var e ExportedEntity
		if err := dec.Decode(&e); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("decoding export: %v", err)
		}
		exported = append(exported, e)
	}

	s := must(db.Stats())
	deepEqual(t, len(exported), s.Entities)

	var people, toms int
	for _, e := range exported {
		if e.Kind == "custom" {
			deepEqual(t, e.Type, "Person")
			deepEqual(t, len(e.Refs), 1)
			people++
		}
		if e.Kind == "string" && e.Value == "Tom" {
			toms++
		}
	}
	deepEqual(t, people, 2)
	deepEqual(t, toms, 1)
}

func TestExportErrors(t *testing.T) {
	db := setup(t, nil)
	if err := db.Export(io.Discard, EncodingMethod(7)); err == nil {
		t.Errorf("Export accepted an unknown encoding")
	}
	deepEqual(t, EncodingMethod(7).String(), "encoding7")
	deepEqual(t, MsgPack.String(), "msgpack")

	ensure(db.Close())
	isErr(t, db.Export(io.Discard, JSON), ErrClosed)
}

func TestDump(t *testing.T) {
	db := setup(t, basicSchema)
	storeScalars(t, db)
	must(db.Store(&Person{Name: "Tom", Age: 4}))

	out := must(db.Dump(DumpAll))
	for _, want := range []string{
		"stats: entities = ",
		"type.0 = Person @ ",
		"primary=[name] fields=[name age children]",
		`0 = (11) String("hello") raw=0500680065006c006c006f`,
		"1 = (9) Int(4) raw=020000000000000004",
		"4 = (10) List[Ref(3)] raw=",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Dump output lacks %q:\n%s", want, out)
		}
	}

	out = must(db.Dump(DumpEntities))
	if strings.Contains(out, "raw=") || strings.Contains(out, "type.0") || strings.Contains(out, "stats:") {
		t.Errorf("Dump(DumpEntities) shows more than entities:\n%s", out)
	}
}

func TestDumpShowsCorruption(t *testing.T) {
	db := setup(t, nil)
	ensure(db.entities.writeAt(7, []byte{0x09}))
	out := must(db.Dump(DumpEntities))
	if !strings.Contains(out, "7 = (1) ** ERROR: corrupt encoding: entity 7: tag 0x09") {
		t.Errorf("Dump output lacks the corrupt entity:\n%s", out)
	}
}

func TestStats(t *testing.T) {
	db := setup(t, basicSchema)
	s := must(db.Stats())
	deepEqual(t, s.Entities, 0)
	deepEqual(t, s.Types, 0)

	storeScalars(t, db)
	must(db.Get(4))

	s = must(db.Stats())
	deepEqual(t, s.Entities, 5)
	deepEqual(t, s.Writes, uint64(5))
	deepEqual(t, s.Reads, uint64(2))
	if s.TotalSize() != s.EntitySize+s.TypeSize {
		t.Errorf("TotalSize = %d", s.TotalSize())
	}

	must(db.Store(&Person{Name: "Tom"}))
	s = must(db.Stats())
	deepEqual(t, s.Types, 1)
	deepEqual(t, s.IdentityCached, 1)
}
