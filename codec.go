package objstore

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// Tag values are part of the on-disk format. Never reorder them.
const (
	tagRef    byte = 0
	tagBool   byte = 1
	tagInt    byte = 2
	tagList   byte = 3
	tagFloat  byte = 4
	tagString byte = 5
	tagDict   byte = 6
	tagCustom byte = 7
)

const (
	idSize     = 8
	typeIDSize = 2
	refSize    = 1 + idSize
)

var utf16be = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// flattener stores composite children on behalf of encodeValue.
type flattener interface {
	storeChild(v Value) (EntityID, error)
	resolveOrDefine(typeName string) (TypeID, error)
}

// typeNamer maps persisted type ids back to names during decoding.
type typeNamer interface {
	typeName(id TypeID) (string, bool)
}

func encodeValue(buf []byte, v Value, fl flattener) ([]byte, error) {
	bb := bytesBuilder{buf}
	switch v := v.(type) {
	case Ref:
		appendRef(&bb, EntityID(v))
	case Bool:
		bb.AppendByte(tagBool)
		if v {
			bb.AppendByte(1)
		} else {
			bb.AppendByte(0)
		}
	case Int:
		bb.AppendByte(tagInt)
		bb.AppendFixedUint64(uint64(v))
	case Float:
		bb.AppendByte(tagFloat)
		bb.AppendFixedUint64(floatBits(float64(v)))
	case String:
		if !utf8.ValidString(string(v)) {
			return nil, unsupportedf("string %q is not valid UTF-8", string(v))
		}
		raw, err := utf16be.NewEncoder().Bytes([]byte(v))
		if err != nil {
			return nil, unsupportedf("string %q: %v", string(v), err)
		}
		bb.AppendByte(tagString)
		bb.Write(raw)
	case List:
		bb.AppendByte(tagList)
		for _, item := range v {
			id, err := fl.storeChild(item)
			if err != nil {
				return nil, err
			}
			appendRef(&bb, id)
		}
	case Dict:
		id, err := dictPairsID(v, fl)
		if err != nil {
			return nil, err
		}
		bb.AppendByte(tagDict)
		appendRef(&bb, id)
	case Custom:
		typeID, err := fl.resolveOrDefine(v.TypeName)
		if err != nil {
			return nil, err
		}
		var id EntityID
		if v.FieldsRef != nil {
			id = EntityID(*v.FieldsRef)
		} else {
			id, err = fl.storeChild(List(v.Fields))
			if err != nil {
				return nil, err
			}
		}
		bb.AppendByte(tagCustom)
		bb.AppendFixedUint16(uint16(typeID))
		appendRef(&bb, id)
	case nil:
		return nil, unsupportedf("nil value")
	default:
		return nil, unsupportedf("value kind %v", v.Kind())
	}
	return bb.Buf, nil
}

func dictPairsID(v Dict, fl flattener) (EntityID, error) {
	if v.PairsRef != nil {
		return EntityID(*v.PairsRef), nil
	}
	pairs := make(List, 0, len(v.Pairs))
	for _, p := range v.Pairs {
		switch p.Key.(type) {
		case List, Dict:
			return 0, unsupportedf("dict key %v is not hashable", p.Key)
		}
		pairs = append(pairs, List{p.Key, p.Value})
	}
	return fl.storeChild(pairs)
}

func appendRef(bb *bytesBuilder, id EntityID) {
	bb.AppendByte(tagRef)
	bb.AppendFixedUint64(uint64(id))
}

func decodeValue(data []byte, types typeNamer) (Value, error) {
	d := makeByteDecoder(data)
	tag, err := d.Byte()
	if err != nil {
		return nil, corruptf(data, 0, nil, "empty entity")
	}
	switch tag {
	case tagRef:
		id, err := decodeRefPayload(&d)
		if err != nil {
			return nil, err
		}
		return Ref(id), nil
	case tagBool:
		b, err := d.Byte()
		if err != nil {
			return nil, err
		}
		if err := d.End(); err != nil {
			return nil, err
		}
		switch b {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		default:
			return nil, corruptf(data, 1, nil, "invalid bool byte 0x%02x", b)
		}
	case tagInt:
		v, err := d.FixedUint64()
		if err != nil {
			return nil, err
		}
		if err := d.End(); err != nil {
			return nil, err
		}
		return Int(int64(v)), nil
	case tagFloat:
		v, err := d.FixedUint64()
		if err != nil {
			return nil, err
		}
		if err := d.End(); err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(v)), nil
	case tagString:
		if len(d.Buf)%2 != 0 {
			return nil, corruptf(data, 1, nil, "odd string payload size %d", len(d.Buf))
		}
		if off, ok := checkSurrogates(d.Buf); !ok {
			return nil, corruptf(data, 1+off, nil, "unpaired UTF-16 surrogate")
		}
		raw, err := utf16be.NewDecoder().Bytes(d.Buf)
		if err != nil {
			return nil, corruptf(data, 1, err, "invalid UTF-16")
		}
		return String(raw), nil
	case tagList:
		payload := d.Buf
		if len(payload)%refSize != 0 {
			return nil, corruptf(data, 1, nil, "list payload size %d is not a multiple of %d", len(payload), refSize)
		}
		items := make(List, 0, len(payload)/refSize)
		for off := 0; off < len(payload); off += refSize {
			chunk := makeByteDecoder(payload[off : off+refSize])
			if chunk.Buf[0] != tagRef {
				return nil, corruptf(data, 1+off, nil, "list item %d has tag 0x%02x, wanted a ref", off/refSize, chunk.Buf[0])
			}
			chunk.Buf = chunk.Buf[1:]
			id, err := chunk.FixedUint64()
			if err != nil {
				return nil, err
			}
			items = append(items, Ref(id))
		}
		return items, nil
	case tagDict:
		ref, err := decodeEmbeddedRef(&d, data)
		if err != nil {
			return nil, err
		}
		if err := d.End(); err != nil {
			return nil, err
		}
		return Dict{PairsRef: &ref}, nil
	case tagCustom:
		typeID, err := d.FixedUint16()
		if err != nil {
			return nil, err
		}
		ref, err := decodeEmbeddedRef(&d, data)
		if err != nil {
			return nil, err
		}
		if err := d.End(); err != nil {
			return nil, err
		}
		name, ok := types.typeName(TypeID(typeID))
		if !ok {
			return nil, corruptf(data, 1, nil, "unknown type id %d", typeID)
		}
		return Custom{TypeName: name, FieldsRef: &ref}, nil
	default:
		return nil, corruptf(data, 0, nil, "unknown tag")
	}
}

// checkSurrogates reports the offset of the first unpaired surrogate in a
// UTF-16BE payload. The decoder would silently replace it with U+FFFD.
func checkSurrogates(payload []byte) (int, bool) {
	for off := 0; off+1 < len(payload); off += 2 {
		u := rune(binary.BigEndian.Uint16(payload[off:]))
		if !utf16.IsSurrogate(u) {
			continue
		}
		if u >= 0xdc00 || off+3 >= len(payload) {
			return off, false
		}
		next := rune(binary.BigEndian.Uint16(payload[off+2:]))
		if next < 0xdc00 || next > 0xdfff {
			return off, false
		}
		off += 2
	}
	return 0, true
}

func decodeRefPayload(d *byteDecoder) (EntityID, error) {
	v, err := d.FixedUint64()
	if err != nil {
		return 0, err
	}
	if err := d.End(); err != nil {
		return 0, err
	}
	return EntityID(v), nil
}

func decodeEmbeddedRef(d *byteDecoder, data []byte) (Ref, error) {
	off := d.Off()
	tag, err := d.Byte()
	if err != nil {
		return 0, err
	}
	if tag != tagRef {
		return 0, corruptf(data, off, nil, "embedded tag 0x%02x, wanted a ref", tag)
	}
	v, err := d.FixedUint64()
	if err != nil {
		return 0, err
	}
	return Ref(v), nil
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}
