package varint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// MaxSize is the largest number of bytes a single varint occupies on
	// the wire.
	MaxSize = 9

	prefix16 = 0xfd
	prefix32 = 0xfe
	prefix64 = 0xff
)

// width returns the total encoded width, prefix included, implied by the
// given discriminant byte.
func width(discriminant byte) int {
	switch discriminant {
	case prefix16:
		return 3
	case prefix32:
		return 5
	case prefix64:
		return 9
	default:
		return 1
	}
}

// Decode reads one varint from c. The full width announced by the prefix byte
// must be available, otherwise ErrTruncatedInput is returned and c is left at
// the prefix byte.
//
// Non-minimal encodings such as 0xfd 0x01 0x00 are accepted.
func Decode(c *Cursor) (uint64, error) {
	discriminant, err := c.peek()
	if err != nil {
		return 0, err
	}

	b, err := c.Take(width(discriminant))
	if err != nil {
		return 0, err
	}

	switch discriminant {
	case prefix16:
		return uint64(binary.LittleEndian.Uint16(b[1:])), nil
	case prefix32:
		return uint64(binary.LittleEndian.Uint32(b[1:])), nil
	case prefix64:
		return binary.LittleEndian.Uint64(b[1:]), nil
	default:
		return uint64(discriminant), nil
	}
}

// DecodeBytes decodes a varint from the front of b and returns the value
// together with the number of bytes it occupied.
func DecodeBytes(b []byte) (uint64, int, error) {
	c := NewCursor(b)
	v, err := Decode(c)
	if err != nil {
		return 0, 0, err
	}

	return v, c.Pos(), nil
}

// Size returns the number of bytes the canonical encoding of v occupies.
func Size(v uint64) int {
	switch {
	case v < prefix16:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// IsCanonical reports whether a value that was decoded from encodedLen bytes
// used the narrowest form available. Decoding never enforces this; callers
// that must reject non-minimal encodings can check it themselves.
func IsCanonical(v uint64, encodedLen int) bool {
	return Size(v) == encodedLen
}

// Append appends the canonical encoding of v to dst and returns the extended
// slice.
func Append(dst []byte, v uint64) []byte {
	switch {
	case v < prefix16:
		return append(dst, byte(v))

	case v <= 0xffff:
		dst = append(dst, prefix16)
		return binary.LittleEndian.AppendUint16(dst, uint16(v))

	case v <= 0xffffffff:
		dst = append(dst, prefix32)
		return binary.LittleEndian.AppendUint32(dst, uint32(v))

	default:
		dst = append(dst, prefix64)
		return binary.LittleEndian.AppendUint64(dst, v)
	}
}

// Encode returns the canonical encoding of v.
func Encode(v uint64) []byte {
	return Append(make([]byte, 0, Size(v)), v)
}

// Read reads a varint from r using buf as scratch space. An empty stream
// yields an error matching both ErrTruncatedInput and io.EOF; a stream that
// ends after the prefix yields one matching io.ErrUnexpectedEOF.
func Read(r io.Reader, buf *[8]byte) (uint64, error) {
	_, err := io.ReadFull(r, buf[:1])
	switch {
	case errors.Is(err, io.EOF):
		return 0, fmt.Errorf("%w: %w", ErrTruncatedInput, err)
	case err != nil:
		return 0, err
	}
	discriminant := buf[0]

	n := width(discriminant) - 1
	if n == 0 {
		return uint64(discriminant), nil
	}

	_, err = io.ReadFull(r, buf[:n])
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return 0, fmt.Errorf("%w: %w", ErrTruncatedInput,
			io.ErrUnexpectedEOF)
	case err != nil:
		return 0, err
	}

	switch discriminant {
	case prefix16:
		return uint64(binary.LittleEndian.Uint16(buf[:2])), nil
	case prefix32:
		return uint64(binary.LittleEndian.Uint32(buf[:4])), nil
	default:
		return binary.LittleEndian.Uint64(buf[:]), nil
	}
}

// Write serializes v to w in its canonical form, using buf as scratch space.
func Write(w io.Writer, v uint64, buf *[8]byte) error {
	var length int
	switch {
	case v < prefix16:
		buf[0] = uint8(v)
		length = 1

	case v <= 0xffff:
		buf[0] = prefix16
		binary.LittleEndian.PutUint16(buf[1:3], uint16(v))
		length = 3

	case v <= 0xffffffff:
		buf[0] = prefix32
		binary.LittleEndian.PutUint32(buf[1:5], uint32(v))
		length = 5

	default:
		buf[0] = prefix64
		if _, err := w.Write(buf[:1]); err != nil {
			return err
		}

		binary.LittleEndian.PutUint64(buf[:], v)
		length = 8
	}

	_, err := w.Write(buf[:length])
	return err
}
