package objstore

import (
	"testing"
)

func TestRender(t *testing.T) {
	tom := &Person{Name: "Tom", Age: 4}
	tests := []struct {
		v      any
		indent int
		want   string
	}{
		{nil, 0, "nil"},
		{true, 0, "true"},
		{int64(-4), 0, "-4"},
		{uint8(7), 0, "7"},
		{1.5, 0, "1.5"},
		{"hi \"there\"", 0, `"hi \"there\""`},
		{[]int{}, 0, "[]"},
		{[]int{1, 2}, 0, "[1, 2]"},
		{[]any{1, "a", true}, 0, `[1, "a", true]`},
		{[]any{1, 2, 3, 4, 5}, 0, "[1, 2, 3, ...]"},
		{[]any{[]int{1}, map[string]int{"a": 1}}, 0, "[<list>, <dict>]"},
		{[]int{1}, 1, "<list>"},
		{map[string]int{}, 0, "{}"},
		{map[string]int{"b": 2, "a": 1}, 0, `{"a": 1, "b": 2}`},
		{map[int]int{4: 0, 3: 0, 2: 0, 1: 0}, 0, "{1: 0, 2: 0, 3: 0, ...}"},
		{map[string]int{"a": 1}, 2, "<dict>"},
		{tom, 0, `Person { name: "Tom", age: 4, children: <list> }`},
		{*tom, 0, `Person { name: "Tom", age: 4, children: <list> }`},
		{tom, 1, `Person { name: "Tom", age: 4, children: <list> }`},
		{tom, 2, "<Person>"},
		{[]*Person{tom}, 0, `[Person { name: "Tom", age: 4, children: <list> }]`},
		{Box{Item: Box{Item: tom}}, 0, "Box { Item: Box { Item: <Person> } }"},
		{Box{}, 0, "Box { Item: nil }"},
		{(*Person)(nil), 0, "nil"},
		{&Record{Type: "T", Names: []string{"a", "b"}, Values: []any{int64(1), "x"}}, 0, `T { a: 1, b: "x" }`},
		{&Record{Type: "T", Values: []any{int64(1)}}, 0, "T { #0: 1 }"},
		{Int(4), 0, "Int(4)"},
		{List{String("a")}, 0, `List[String("a")]`},
	}
	for _, tt := range tests {
		if got := Render(tt.v, tt.indent); got != tt.want {
			t.Errorf("Render(%#v, %d) = %q, wanted %q", tt.v, tt.indent, got, tt.want)
		}
	}
}

func TestRenderUsesRegisteredNames(t *testing.T) {
	scm := &Schema{}
	AddStruct[Point](scm, "Coord")
	db := setup(t, scm)
	deepEqual(t, db.render(&Point{X: 1, Y: 2.5}), "Coord { X: 1, Y: 2.5 }")
	deepEqual(t, Render(&Point{X: 1, Y: 2.5}, 0), "Point { X: 1, Y: 2.5 }")
}
