package objstore

import (
	"math"
	"testing"
)

func TestEqual(t *testing.T) {
	r1, r2 := Ref(1), Ref(2)
	tests := []struct {
		a, b Value
		want bool
	}{
		{Int(1), Int(1), true},
		{Int(1), Int(2), false},
		{Int(1), Float(1), false},
		{Float(math.NaN()), Float(math.NaN()), true},
		{Float(0), Float(math.Copysign(0, -1)), false},
		{String("a"), String("a"), true},
		{Bool(true), Bool(false), false},
		{Ref(3), Ref(3), true},
		{List{}, List{}, true},
		{List{Int(1)}, List{}, false},
		{List{Int(1), String("x")}, List{Int(1), String("x")}, true},
		{
			Dict{Pairs: []Pair{{String("a"), Int(1)}, {String("b"), Int(2)}}},
			Dict{Pairs: []Pair{{String("b"), Int(2)}, {String("a"), Int(1)}}},
			true,
		},
		{
			Dict{Pairs: []Pair{{String("a"), Int(1)}}},
			Dict{Pairs: []Pair{{String("a"), Int(2)}}},
			false,
		},
		{Dict{PairsRef: &r1}, Dict{PairsRef: &r1}, true},
		{Dict{PairsRef: &r1}, Dict{PairsRef: &r2}, false},
		{Dict{PairsRef: &r1}, Dict{}, false},
		{Custom{TypeName: "A", Fields: []Value{Int(1)}}, Custom{TypeName: "A", Fields: []Value{Int(1)}}, true},
		{Custom{TypeName: "A", Fields: []Value{Int(1)}}, Custom{TypeName: "B", Fields: []Value{Int(1)}}, false},
		{Custom{TypeName: "A", FieldsRef: &r1}, Custom{TypeName: "A", FieldsRef: &r1}, true},
		{nil, nil, true},
		{nil, Int(0), false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("Equal(%v, %v) = %v, wanted %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestValueString(t *testing.T) {
	r := Ref(0x1a)
	tests := []struct {
		v    Value
		want string
	}{
		{Int(4), "Int(4)"},
		{Bool(true), "Bool(true)"},
		{Float(1.5), "Float(1.5)"},
		{String("a\"b"), `String("a\"b")`},
		{Ref(255), "Ref(ff)"},
		{List{Int(1), Ref(2)}, "List[Int(1), Ref(2)]"},
		{Dict{Pairs: []Pair{{String("k"), Int(1)}}}, `Dict{String("k"): Int(1)}`},
		{Dict{PairsRef: &r}, "Dict@Ref(1a)"},
		{Custom{TypeName: "P", Fields: []Value{Int(1)}}, "Custom(P)[Int(1)]"},
		{Custom{TypeName: "P", FieldsRef: &r}, "Custom(P)@Ref(1a)"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, wanted %q", got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	deepEqual(t, KindCustom.String(), "custom")
	deepEqual(t, Kind(42).String(), "kind42")
	deepEqual(t, Int(1).Kind(), KindInt)
	deepEqual(t, List{}.Kind(), KindList)
}
