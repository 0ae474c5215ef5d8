package blob

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// BoundsError reports a read that would run past the end of the buffer.
type BoundsError struct {
	Offset int // cursor position when the read was attempted
	Want   int // bytes requested
	Have   int // bytes remaining
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer (%d remaining)",
		e.Want, e.Offset, e.Have)
}

// Reader is a cursor over a byte buffer. The zero value is an empty
// reader; use NewReader to wrap a buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf. The buffer is not copied and must not be
// modified while the Reader is in use.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int { return r.pos }

// Len returns the total buffer length.
func (r *Reader) Len() int { return len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) require(n int) error {
	if n < 0 || r.Remaining() < n {
		return &BoundsError{Offset: r.pos, Want: n, Have: r.Remaining()}
	}
	return nil
}

// ReadBytes returns the next n bytes and advances the cursor. The
// returned slice aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Peek returns the next n bytes without advancing the cursor.
func (r *Reader) Peek(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	return r.buf[r.pos : r.pos+n], nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadU16 reads a 2-byte unsigned integer in the given byte order.
func (r *Reader) ReadU16(order binary.ByteOrder) (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return order.Uint16(b), nil
}

// ReadU32 reads a 4-byte unsigned integer in the given byte order.
func (r *Reader) ReadU32(order binary.ByteOrder) (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return order.Uint32(b), nil
}

// ReadU64 reads an 8-byte unsigned integer in the given byte order.
func (r *Reader) ReadU64(order binary.ByteOrder) (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return order.Uint64(b), nil
}

// ReadString reads a fixed-length field of n bytes and returns it as a
// string with trailing NUL padding stripped.
func (r *Reader) ReadString(n int) (string, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

// ReadCString reads bytes up to (but not including) the next NUL and
// advances the cursor past the terminator.
func (r *Reader) ReadCString() (string, error) {
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			s := string(r.buf[r.pos:i])
			r.pos = i + 1
			return s, nil
		}
	}
	return "", &BoundsError{Offset: r.pos, Want: r.Remaining() + 1, Have: r.Remaining()}
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.require(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.buf) {
		return &BoundsError{Offset: off, Want: 0, Have: len(r.buf)}
	}
	r.pos = off
	return nil
}

// Align advances the cursor to the next multiple of n (no-op if the
// cursor is already aligned).
func (r *Reader) Align(n int) error {
	if n <= 0 {
		return nil
	}
	rem := r.pos % n
	if rem == 0 {
		return nil
	}
	return r.Skip(n - rem)
}
