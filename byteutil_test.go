package objstore

import (
	"errors"
	"testing"
)

func TestBytesBuilder(t *testing.T) {
	var bb bytesBuilder
	off := bb.Grow(3)
	copy(bb.Buf[off:], []byte{1, 2, 3})
	bb.AppendByte(4)
	bb.AppendFixedUint16(0x0506)
	bb.AppendFixedUint64(0x0708090a0b0c0d0e)
	must(bb.Write([]byte{0xff}))

	deepEqual(t, hexstr(bb.Buf), "0102030405060708090a0b0c0d0eff")
	if cap(bb.Buf) < 16 {
		t.Errorf("cap = %d, wanted at least 16", cap(bb.Buf))
	}
}

func TestEnsureCapacity(t *testing.T) {
	buf := ensureCapacity([]byte{1, 2}, 100)
	deepEqual(t, buf, []byte{1, 2})
	deepEqual(t, cap(buf), 128)

	same := make([]byte, 0, 50)
	if got := ensureCapacity(same, 10); cap(got) != 50 {
		t.Errorf("ensureCapacity reallocated a large enough buffer")
	}
}

func TestByteDecoder(t *testing.T) {
	d := makeByteDecoder([]byte{0x07, 0x00, 0x05, 0, 0, 0, 0, 0, 0, 0, 0x2a})
	deepEqual(t, must(d.Byte()), byte(7))
	deepEqual(t, must(d.FixedUint16()), uint16(5))
	deepEqual(t, d.Off(), 3)
	deepEqual(t, must(d.FixedUint64()), uint64(0x2a))
	ensure(d.End())

	_, err := d.Byte()
	isErr(t, err, ErrCorruptEncoding)
	var ce *CorruptionError
	if !errors.As(err, &ce) || ce.Off != 11 || ce.Tag != 7 {
		t.Fatalf("err = %#v, wanted offset 11 and tag 7", err)
	}

	d = makeByteDecoder([]byte{1, 2, 3})
	must(d.Byte())
	isErr(t, d.End(), ErrCorruptEncoding)
	_, err = d.FixedUint64()
	isErr(t, err, ErrCorruptEncoding)
}

func TestHexstr(t *testing.T) {
	deepEqual(t, hexstr(nil), "<nil>")
	deepEqual(t, hexstr([]byte{}), "<empty>")
	deepEqual(t, hexstr([]byte{0xab, 1}), "ab01")
}
