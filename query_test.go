package objstore

import (
	"testing"
)

func TestNativeEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{nil, nil, true},
		{nil, 0, false},
		{1, int64(1), true},
		{uint8(1), 1.0, true},
		{-1, uint64(1<<64 - 1), false},
		{"a", "a", true},
		{"a", "b", false},
		{true, true, true},
		{true, 1, false},
		{[]int{1, 2}, []any{int64(1), int64(2)}, true},
		{[]int{1, 2}, []any{int64(2), int64(1)}, false},
		{[]int{1}, []any{int64(1), int64(2)}, false},
		{[2]string{"a", "b"}, []any{"a", "b"}, true},
		{[]int(nil), []any{}, true},
		{[]any{[]int{1}}, []any{[]any{int64(1)}}, true},
		{map[string]int{"x": 1}, map[any]any{"x": int64(1)}, true},
		{map[string]int{"x": 1}, map[any]any{"x": int64(2)}, false},
		{map[string]int{"x": 1}, map[any]any{"y": int64(1)}, false},
		{map[string]int{}, map[any]any{"x": int64(1)}, false},
		{Person{Name: "Tom", Age: 4}, &Person{Name: "Tom", Age: 4, Children: []*Person{}}, true},
		{&Person{Name: "Tom"}, &Person{Name: "Tim"}, false},
		{&Person{Name: "Tom"}, &Note{Text: "Tom"}, false},
		{(*Person)(nil), nil, true},
		{
			&Record{Type: "T", Values: []any{[]int{1}}},
			&Record{Type: "T", Names: []string{"a"}, Values: []any{[]any{int64(1)}}},
			true,
		},
		{&Record{Type: "T", Values: []any{1}}, &Record{Type: "U", Values: []any{1}}, false},
		{&Record{Type: "T"}, &Person{}, false},
	}
	for _, tt := range tests {
		if got := nativeEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("nativeEqual(%#v, %#v) = %v, wanted %v", tt.a, tt.b, got, tt.want)
		}
		if got := nativeEqual(tt.b, tt.a); got != tt.want {
			t.Errorf("nativeEqual(%#v, %#v) = %v, wanted %v", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestDBCompositePrimaryFields(t *testing.T) {
	scm := &Schema{}
	path := recordTypeDef("Path", []string{"parts"})
	path.PrimaryFields = []string{"parts"}
	scm.AddType(path)
	setting := recordTypeDef("Setting", []string{"scope", "value"})
	setting.PrimaryFields = []string{"scope"}
	scm.AddType(setting)
	db := setup(t, scm)

	must(db.Store(&Record{Type: "Path", Names: []string{"parts"}, Values: []any{[]any{1, "a"}}}))
	_, err := db.Store(&Record{Type: "Path", Names: []string{"parts"}, Values: []any{[]any{1, "a"}}})
	isErr(t, err, ErrDuplicateKey)
	must(db.Store(&Record{Type: "Path", Names: []string{"parts"}, Values: []any{[]any{2, "a"}}}))

	must(db.Store(&Record{Type: "Setting", Names: []string{"scope", "value"}, Values: []any{map[string]int{"x": 1}, "on"}}))
	_, err = db.Store(&Record{Type: "Setting", Names: []string{"scope", "value"}, Values: []any{map[string]int{"x": 1}, "off"}})
	isErr(t, err, ErrDuplicateKey)
	must(db.Store(&Record{Type: "Setting", Names: []string{"scope", "value"}, Values: []any{map[string]int{"x": 2}, "off"}}))

	deepEqual(t, len(must(db.GetAll(IsRecord("Path")))), 2)
	deepEqual(t, len(must(db.GetAll(IsRecord("Setting"), HasField("scope", map[string]int{"x": 2})))), 1)
}
