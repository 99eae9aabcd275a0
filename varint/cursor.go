package varint

import (
	"errors"
	"fmt"
)

// ErrTruncatedInput is returned when a read would advance past the end of the
// available bytes. The reader's position is left untouched when it is
// returned, so the caller may retry once more data has arrived.
var ErrTruncatedInput = errors.New("truncated input")

// Cursor is a read position into an immutable byte slice. The only way to
// move it forward is Take, which either consumes the full requested width or
// fails without consuming anything.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a Cursor positioned at the start of b. The slice is
// borrowed, not copied, and must not be modified while the cursor is in use.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int {
	return c.pos
}

// Remaining returns the number of bytes that can still be taken.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Take returns the next n bytes and advances past them. If fewer than n bytes
// remain, ErrTruncatedInput is returned and the cursor does not move. The
// returned slice aliases the underlying buffer.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative read width %d", n)
	}
	if n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d",
			ErrTruncatedInput, n, c.Remaining())
	}

	b := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n

	return b, nil
}

// peek returns the next byte without consuming it.
func (c *Cursor) peek() (byte, error) {
	if c.Remaining() < 1 {
		return 0, fmt.Errorf("%w: need 1 byte, have 0",
			ErrTruncatedInput)
	}

	return c.buf[c.pos], nil
}
