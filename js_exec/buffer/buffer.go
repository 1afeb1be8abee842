// Package buffer implements DataBuffer, the mutable byte buffer scripts use to move binary data
// across the bridge.
package buffer

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrOutOfRange is wrapped by every failed bounds check.
var ErrOutOfRange = errors.New("index out of range")

// MaxLen bounds the length a buffer can be created with or grown to through SetLen.
const MaxLen = 1 << 30

// DataBuffer is owned by one context and is not safe for concurrent use.
type DataBuffer struct {
	data []byte
}

// New returns a zero-filled buffer of n bytes. n must be within [0, MaxLen].
func New(n int) (*DataBuffer, error) {
	if n < 0 || n > MaxLen {
		return nil, fmt.Errorf("%w: length %d", ErrOutOfRange, n)
	}
	return &DataBuffer{data: make([]byte, n)}, nil
}

// FromBytes wraps a copy of b.
func FromBytes(b []byte) *DataBuffer {
	return &DataBuffer{data: append([]byte(nil), b...)}
}

// FromHex decodes a hex string such as "00ffcc3e".
func FromHex(s string) (*DataBuffer, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return &DataBuffer{data: b}, nil
}

// Bytes returns the underlying bytes without copying.
func (b *DataBuffer) Bytes() []byte { return b.data }

func (b *DataBuffer) Len() int { return len(b.data) }

// SetLen truncates or zero-extends the buffer.
func (b *DataBuffer) SetLen(n int) error {
	if n < 0 || n > MaxLen {
		return fmt.Errorf("%w: length %d", ErrOutOfRange, n)
	}
	if n <= len(b.data) {
		b.data = b.data[:n]
		return nil
	}
	b.data = append(b.data, make([]byte, n-len(b.data))...)
	return nil
}

func (b *DataBuffer) check(i int) error {
	if i < 0 || i >= len(b.data) {
		return fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, i, len(b.data))
	}
	return nil
}

func (b *DataBuffer) checkSpan(start, n int) error {
	if start < 0 || n < 0 || start > len(b.data) || n > len(b.data)-start {
		return fmt.Errorf("%w: span %d+%d, length %d", ErrOutOfRange, start, n, len(b.data))
	}
	return nil
}

func (b *DataBuffer) Byte(i int) (byte, error) {
	if err := b.check(i); err != nil {
		return 0, err
	}
	return b.data[i], nil
}

func (b *DataBuffer) SetByte(i int, v byte) error {
	if err := b.check(i); err != nil {
		return err
	}
	b.data[i] = v
	return nil
}

// Hex returns the lowercase hex encoding.
func (b *DataBuffer) Hex() string {
	return hex.EncodeToString(b.data)
}

func (b *DataBuffer) Equal(o *DataBuffer) bool {
	return o != nil && bytes.Equal(b.data, o.data)
}

func (b *DataBuffer) Append(o *DataBuffer) {
	b.data = append(b.data, o.data...)
}

// Insert puts the contents of o before index at; at may equal Len.
func (b *DataBuffer) Insert(o *DataBuffer, at int) error {
	if at < 0 || at > len(b.data) {
		return fmt.Errorf("%w: index %d, length %d", ErrOutOfRange, at, len(b.data))
	}
	ins := append([]byte(nil), o.data...)
	out := make([]byte, 0, len(b.data)+len(ins))
	out = append(out, b.data[:at]...)
	out = append(out, ins...)
	b.data = append(out, b.data[at:]...)
	return nil
}

// Delete removes n bytes starting at start.
func (b *DataBuffer) Delete(start, n int) error {
	if err := b.checkSpan(start, n); err != nil {
		return err
	}
	b.data = append(b.data[:start], b.data[start+n:]...)
	return nil
}

// Sub returns a copy of n bytes starting at start.
func (b *DataBuffer) Sub(start, n int) (*DataBuffer, error) {
	if err := b.checkSpan(start, n); err != nil {
		return nil, err
	}
	return FromBytes(b.data[start : start+n]), nil
}

func (b *DataBuffer) Clone() *DataBuffer {
	return FromBytes(b.data)
}
