package objstore

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

type EncodingMethod int

const (
	MsgPack EncodingMethod = iota
	JSON
)

func (enc EncodingMethod) String() string {
	switch enc {
	case MsgPack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return "encoding" + strconv.Itoa(int(enc))
	}
}

// ExportedEntity is the shallow, self-describing form of one entity written
// by Export. Composite values list the ids they refer to instead of nesting.
type ExportedEntity struct {
	ID    string   `json:"id" msgpack:"id"`
	Kind  string   `json:"kind" msgpack:"kind"`
	Type  string   `json:"type,omitempty" msgpack:"type,omitempty"`
	Value any      `json:"value" msgpack:"value"`
	Refs  []string `json:"refs,omitempty" msgpack:"refs,omitempty"`
}

// Export writes every entity in id order, as a stream of MsgPack maps or
// as JSON lines.
func (db *DB) Export(w io.Writer, enc EncodingMethod) error {
	if err := db.lock(); err != nil {
		return err
	}
	defer db.unlock()

	var encode func(v any) error
	switch enc {
	case MsgPack:
		e := msgpack.NewEncoder(w)
		e.SetSortMapKeys(true)
		encode = e.Encode
	case JSON:
		encode = json.NewEncoder(w).Encode
	default:
		return fmt.Errorf("objstore: unsupported export encoding %v", enc)
	}

	ids, err := db.entities.ids()
	if err != nil {
		return err
	}
	slices.Sort(ids)
	for _, id := range ids {
		data, err := db.entities.read(id)
		if err != nil {
			return err
		}
		v, err := decodeValue(data, db.types)
		if err != nil {
			return withEntity(err, EntityID(id))
		}
		if err := encode(exportEntity(EntityID(id), v)); err != nil {
			return fmt.Errorf("objstore: exporting %s as %v: %w", formatID(id), enc, err)
		}
	}
	return nil
}

func exportEntity(id EntityID, v Value) *ExportedEntity {
	e := &ExportedEntity{ID: formatID(uint64(id)), Kind: v.Kind().String()}
	switch v := v.(type) {
	case Ref:
		e.Refs = []string{formatID(uint64(v))}
	case Bool:
		e.Value = bool(v)
	case Int:
		e.Value = int64(v)
	case Float:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			e.Value = strconv.FormatFloat(f, 'g', -1, 64)
		} else {
			e.Value = f
		}
	case String:
		e.Value = string(v)
	case List:
		e.Refs = make([]string, 0, len(v))
		for _, item := range v {
			if ref, ok := item.(Ref); ok {
				e.Refs = append(e.Refs, formatID(uint64(ref)))
			}
		}
	case Dict:
		if v.PairsRef != nil {
			e.Refs = []string{formatID(uint64(*v.PairsRef))}
		}
	case Custom:
		e.Type = v.TypeName
		if v.FieldsRef != nil {
			e.Refs = []string{formatID(uint64(*v.FieldsRef))}
		}
	}
	return e
}
