package objstore

import (
	"strconv"
	"strings"
)

// EntityID identifies a stored byte blob. Ids are dense and never reused.
type EntityID uint64

// TypeID identifies a persisted type descriptor.
type TypeID uint16

type Kind byte

const (
	KindRef Kind = iota
	KindBool
	KindInt
	KindList
	KindFloat
	KindString
	KindDict
	KindCustom
)

var kindNames = [...]string{
	KindRef:    "ref",
	KindBool:   "bool",
	KindInt:    "int",
	KindList:   "list",
	KindFloat:  "float",
	KindString: "string",
	KindDict:   "dict",
	KindCustom: "custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind" + strconv.Itoa(int(k))
}

// Value is the storable representation of a native value.
type Value interface {
	Kind() Kind
	String() string
	isValue()
}

type (
	Bool   bool
	Int    int64
	Float  float64
	String string
	List   []Value

	// Ref says that the real value lives in another entity. Only the codec
	// produces refs.
	Ref EntityID
)

// Dict is a mapping. Pairs keeps insertion order for encoding; equality
// ignores it. A decoded Dict has no Pairs and points at its pair list via
// PairsRef instead.
type Dict struct {
	Pairs    []Pair
	PairsRef *Ref
}

type Pair struct {
	Key   Value
	Value Value
}

// Custom is an instance of a registered type. Fields follow the type's
// constructor argument order. A decoded Custom has FieldsRef set instead.
type Custom struct {
	TypeName  string
	Fields    []Value
	FieldsRef *Ref

	source any
}

func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (List) Kind() Kind   { return KindList }
func (Dict) Kind() Kind   { return KindDict }
func (Custom) Kind() Kind { return KindCustom }
func (Ref) Kind() Kind    { return KindRef }

func (Bool) isValue()   {}
func (Int) isValue()    {}
func (Float) isValue()  {}
func (String) isValue() {}
func (List) isValue()   {}
func (Dict) isValue()   {}
func (Custom) isValue() {}
func (Ref) isValue()    {}

func (v Bool) String() string   { return "Bool(" + strconv.FormatBool(bool(v)) + ")" }
func (v Int) String() string    { return "Int(" + strconv.FormatInt(int64(v), 10) + ")" }
func (v Float) String() string  { return "Float(" + strconv.FormatFloat(float64(v), 'g', -1, 64) + ")" }
func (v String) String() string { return "String(" + strconv.Quote(string(v)) + ")" }
func (v Ref) String() string    { return "Ref(" + formatID(uint64(v)) + ")" }

func (v List) String() string {
	var buf strings.Builder
	buf.WriteString("List[")
	for i, item := range v {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(item.String())
	}
	buf.WriteByte(']')
	return buf.String()
}

func (v Dict) String() string {
	if v.PairsRef != nil {
		return "Dict@" + v.PairsRef.String()
	}
	var buf strings.Builder
	buf.WriteString("Dict{")
	for i, p := range v.Pairs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Key.String())
		buf.WriteString(": ")
		buf.WriteString(p.Value.String())
	}
	buf.WriteByte('}')
	return buf.String()
}

func (v Custom) String() string {
	if v.FieldsRef != nil {
		return "Custom(" + v.TypeName + ")@" + v.FieldsRef.String()
	}
	return "Custom(" + v.TypeName + ")" + List(v.Fields).String()[4:]
}

// Equal reports structural equality. Dict pairs are compared as a set, and
// Floats by bit pattern so that NaN equals itself.
func Equal(a, b Value) bool {
	switch a := a.(type) {
	case Float:
		b, ok := b.(Float)
		return ok && floatBits(float64(a)) == floatBits(float64(b))
	case List:
		b, ok := b.(List)
		return ok && equalSlices(a, b)
	case Dict:
		b, ok := b.(Dict)
		if !ok {
			return false
		}
		if a.PairsRef != nil || b.PairsRef != nil {
			return a.PairsRef != nil && b.PairsRef != nil && *a.PairsRef == *b.PairsRef
		}
		if len(a.Pairs) != len(b.Pairs) {
			return false
		}
		for _, p := range a.Pairs {
			q, found := b.lookup(p.Key)
			if !found || !Equal(p.Value, q) {
				return false
			}
		}
		return true
	case Custom:
		b, ok := b.(Custom)
		if !ok || a.TypeName != b.TypeName {
			return false
		}
		if a.FieldsRef != nil || b.FieldsRef != nil {
			return a.FieldsRef != nil && b.FieldsRef != nil && *a.FieldsRef == *b.FieldsRef
		}
		return equalSlices(a.Fields, b.Fields)
	case nil:
		return b == nil
	default:
		return a == b
	}
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (v Dict) lookup(key Value) (Value, bool) {
	for _, p := range v.Pairs {
		if Equal(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 16)
}
