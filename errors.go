package objstore

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported type")
	ErrCycleDetected   = fmt.Errorf("%w: cycle detected", ErrUnsupportedType)
	ErrCorruptEncoding = errors.New("corrupt encoding")
	ErrNotFound        = errors.New("not found")
	ErrAmbiguousMatch  = errors.New("ambiguous match")
	ErrDuplicateKey    = errors.New("duplicate key")
)

// CorruptionError describes bytes that could not be decoded. It matches
// ErrCorruptEncoding via errors.Is.
type CorruptionError struct {
	ID    EntityID
	HasID bool
	Tag   byte
	Data  []byte
	Off   int
	Err   error
	Msg   string
}

func corruptf(data []byte, off int, err error, format string, args ...any) *CorruptionError {
	var tag byte
	if len(data) > 0 {
		tag = data[0]
	}
	return &CorruptionError{Tag: tag, Data: data, Off: off, Err: err, Msg: fmt.Sprintf(format, args...)}
}

// withEntity attaches the id of the entity the bytes came from.
func withEntity(err error, id EntityID) error {
	var ce *CorruptionError
	if errors.As(err, &ce) && !ce.HasID {
		ce.ID, ce.HasID = id, true
	}
	return err
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorruptEncoding
}

func (e *CorruptionError) Error() string {
	const prefixLen = 64
	const suffixLen = 32

	var buf strings.Builder
	buf.WriteString(ErrCorruptEncoding.Error())
	if e.HasID {
		fmt.Fprintf(&buf, ": entity %s", formatID(uint64(e.ID)))
	}
	fmt.Fprintf(&buf, ": tag 0x%02x: %s", e.Tag, e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		fmt.Fprintf(&buf, ": (%d) %x", n, e.Data)
	} else {
		fmt.Fprintf(&buf, ": (%d) %x...%x", n, e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	return buf.String()
}

// DuplicateKeyError is returned when an insertion would repeat the primary
// field values of an already stored object.
type DuplicateKeyError struct {
	TypeName string
	Fields   []string
	Existing string
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%v: %s(%s) already stored as %s", ErrDuplicateKey, e.TypeName, strings.Join(e.Fields, ", "), e.Existing)
}

type AmbiguousMatchError struct {
	Count int
}

func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%v: wanted exactly one result, got %d", ErrAmbiguousMatch, e.Count)
}

func unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedType, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
