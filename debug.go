package objstore

import (
	"fmt"
	"slices"
	"strings"
)

type DumpFlags uint64

const (
	DumpTypes = DumpFlags(1 << iota)
	DumpEntities
	DumpStats
	DumpRaw

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump describes the raw contents of the store, one line per type and per
// entity, with entities shown in their shallow decoded form.
func (db *DB) Dump(f DumpFlags) (string, error) {
	if err := db.lock(); err != nil {
		return "", err
	}
	defer db.unlock()

	var buf strings.Builder
	if f.Contains(DumpStats) {
		s, err := db.stats()
		if err != nil {
			return "", err
		}
		fmt.Fprintln(&buf, dumpSep1)
		fmt.Fprintf(&buf, "stats: entities = %d, types = %d, entity_size = %d, entity_alloc = %d, type_size = %d, identity_cached = %d\n", s.Entities, s.Types, s.EntitySize, s.EntityAlloc, s.TypeSize, s.IdentityCached)
	}
	if f.Contains(DumpTypes) {
		fmt.Fprintln(&buf, dumpSep1)
		for _, desc := range db.types.descriptors() {
			fmt.Fprintf(&buf, "type.%d = %s @ %s primary=%v fields=%v\n", desc.ID, desc.Name, formatID(uint64(desc.Entity)), desc.PrimaryFields, desc.FieldNames)
		}
	}
	if f.Contains(DumpEntities) {
		fmt.Fprintln(&buf, dumpSep2)
		ids, err := db.entities.ids()
		if err != nil {
			return "", err
		}
		slices.Sort(ids)
		for _, id := range ids {
			db.dumpEntity(&buf, f, id)
		}
	}
	return buf.String(), nil
}

func (db *DB) dumpEntity(w *strings.Builder, f DumpFlags, id uint64) {
	data, err := db.entities.read(id)
	if err != nil {
		fmt.Fprintf(w, "%s = ** ERROR: %v\n", formatID(id), err)
		return
	}
	v, err := decodeValue(data, db.types)
	if err != nil {
		fmt.Fprintf(w, "%s = (%d) ** ERROR: %v\n", formatID(id), len(data), withEntity(err, EntityID(id)))
		return
	}
	if f.Contains(DumpRaw) {
		fmt.Fprintf(w, "%s = (%d) %v raw=%s\n", formatID(id), len(data), v, hexstr(data))
	} else {
		fmt.Fprintf(w, "%s = (%d) %v\n", formatID(id), len(data), v)
	}
}
