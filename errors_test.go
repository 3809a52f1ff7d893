package objstore

import (
	"errors"
	"strings"
	"testing"
)

func TestCorruptionError(t *testing.T) {
	t.Run("small data", func(t *testing.T) {
		inner := errors.New("inner")
		err := withEntity(corruptf([]byte{0x02, 0xBB}, 1, inner, "oops %d", 1), 0x1a)
		if !errors.Is(err, ErrCorruptEncoding) {
			t.Fatalf("errors.Is(err, ErrCorruptEncoding) = false, wanted true")
		}
		if !errors.Is(err, inner) {
			t.Fatalf("errors.Is(err, inner) = false, wanted true")
		}
		var ce *CorruptionError
		if !errors.As(err, &ce) {
			t.Fatalf("err = %T, wanted *CorruptionError", err)
		}
		deepEqual(t, ce.Tag, byte(0x02))
		deepEqual(t, ce.ID, EntityID(0x1a))
		deepEqual(t, err.Error(), "corrupt encoding: entity 1a: tag 0x02: oops 1: inner: (2) 02bb")
	})

	t.Run("first entity wins", func(t *testing.T) {
		err := withEntity(withEntity(corruptf(nil, 0, nil, "x"), 1), 2)
		var ce *CorruptionError
		errors.As(err, &ce)
		deepEqual(t, ce.ID, EntityID(1))
	})

	t.Run("large data includes prefix+suffix", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = byte(i)
		}
		s := corruptf(data, 0, nil, "oops").Error()
		if !strings.Contains(s, "(200)") || !strings.Contains(s, "...") {
			t.Fatalf("err.Error() = %q, wanted message with (200) and ...", s)
		}
		if strings.Contains(s, "entity") {
			t.Fatalf("err.Error() = %q, wanted no entity", s)
		}
	})

	t.Run("other errors untouched", func(t *testing.T) {
		plain := errors.New("plain")
		if withEntity(plain, 1) != plain {
			t.Fatalf("withEntity changed a non-corruption error")
		}
	})
}

func TestDuplicateKeyError(t *testing.T) {
	err := error(&DuplicateKeyError{TypeName: "Person", Fields: []string{"name", "age"}, Existing: `Person { name: "Tom" }`})
	isErr(t, err, ErrDuplicateKey)
	deepEqual(t, err.Error(), `duplicate key: Person(name, age) already stored as Person { name: "Tom" }`)
}

func TestAmbiguousMatchError(t *testing.T) {
	err := error(&AmbiguousMatchError{Count: 3})
	isErr(t, err, ErrAmbiguousMatch)
	deepEqual(t, err.Error(), "ambiguous match: wanted exactly one result, got 3")
}

func TestErrorHelpers(t *testing.T) {
	isErr(t, ErrCycleDetected, ErrUnsupportedType)
	isErr(t, unsupportedf("chan %d", 1), ErrUnsupportedType)
	deepEqual(t, unsupportedf("chan %d", 1).Error(), "unsupported type: chan 1")

	err := notFoundf("entity %s", formatID(0xff))
	isErr(t, err, ErrNotFound)
	deepEqual(t, err.Error(), "entity ff: not found")
}
