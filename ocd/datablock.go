package ocd

import (
	"bytes"
	"math"

	"github.com/cockroachdb/errors"
)

// DataBlock is an append-only byte buffer. Every write returns the length
// of the block before the write, which is the offset of the appended
// region, so a DataBlock doubles as a watermark allocator for records that
// are referenced by offset.
//
// Builders keep blocks 8-byte aligned between logical records so the bytes
// can later be reinterpreted as fixed-size records. The zero value is an
// empty block ready to use.
type DataBlock struct {
	buf []byte
}

// Len returns the number of bytes written so far.
func (b *DataBlock) Len() uint64 { return uint64(len(b.buf)) }

// Bytes returns the block contents. The slice aliases the block and is
// only valid until the next write.
func (b *DataBlock) Bytes() []byte { return b.buf }

// Reset empties the block, keeping its storage.
func (b *DataBlock) Reset() { b.buf = b.buf[:0] }

// Write appends p and returns its offset. Writing zero bytes leaves the
// block unchanged.
func (b *DataBlock) Write(p []byte) uint64 {
	off := b.Len()
	b.buf = append(b.buf, p...)
	return off
}

// WriteUint32 appends v in little-endian order.
func (b *DataBlock) WriteUint32(v uint32) uint64 {
	off := b.Len()
	b.buf = le.AppendUint32(b.buf, v)
	return off
}

// WriteUint64 appends v in little-endian order.
func (b *DataBlock) WriteUint64(v uint64) uint64 {
	off := b.Len()
	b.buf = le.AppendUint64(b.buf, v)
	return off
}

// WriteFloat32 appends the IEEE 754 bits of v in little-endian order.
func (b *DataBlock) WriteFloat32(v float32) uint64 {
	return b.WriteUint32(math.Float32bits(v))
}

// WriteString appends s followed by a NUL terminator and pads the block to
// the next 8-byte boundary.
func (b *DataBlock) WriteString(s string) uint64 {
	off := b.Len()
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	b.WritePadding64()
	return off
}

// WriteBlock appends the contents of other.
func (b *DataBlock) WriteBlock(other *DataBlock) uint64 {
	return b.Write(other.buf)
}

// WritePadding64 appends zero bytes up to the next 8-byte boundary.
func (b *DataBlock) WritePadding64() {
	if n := padding64(b.Len()); n > 0 {
		var zero [8]byte
		b.buf = append(b.buf, zero[:n]...)
	}
}

// padding64 returns the number of bytes needed to align n to 8.
func padding64(n uint64) uint64 {
	return (8 - n%8) % 8
}

// PutUint32At overwrites the 4 bytes at off.
func (b *DataBlock) PutUint32At(off uint64, v uint32) error {
	if off+4 > b.Len() {
		return errors.Wrapf(ErrInvalidArgs, "put u32 at %d past end %d", off, b.Len())
	}
	le.PutUint32(b.buf[off:], v)
	return nil
}

// PutUint64At overwrites the 8 bytes at off.
func (b *DataBlock) PutUint64At(off, v uint64) error {
	if off+8 > b.Len() {
		return errors.Wrapf(ErrInvalidArgs, "put u64 at %d past end %d", off, b.Len())
	}
	le.PutUint64(b.buf[off:], v)
	return nil
}

// Uint32At reads the 4 bytes at off.
func (b *DataBlock) Uint32At(off uint64) (uint32, error) {
	if off+4 > b.Len() {
		return 0, errors.Wrapf(ErrInvalidArgs, "read u32 at %d past end %d", off, b.Len())
	}
	return le.Uint32(b.buf[off:]), nil
}

// Uint64At reads the 8 bytes at off.
func (b *DataBlock) Uint64At(off uint64) (uint64, error) {
	if off+8 > b.Len() {
		return 0, errors.Wrapf(ErrInvalidArgs, "read u64 at %d past end %d", off, b.Len())
	}
	return le.Uint64(b.buf[off:]), nil
}

// addUint64At adds delta to the value stored at off.
func (b *DataBlock) addUint64At(off, delta uint64) error {
	v, err := b.Uint64At(off)
	if err != nil {
		return err
	}
	return b.PutUint64At(off, v+delta)
}

// StringAt reads the NUL-terminated string starting at off.
func (b *DataBlock) StringAt(off uint64) (string, error) {
	return cString(b.buf, off)
}

func cString(buf []byte, off uint64) (string, error) {
	if off >= uint64(len(buf)) {
		return "", errors.Wrapf(ErrCorrupt, "string offset %d past end %d", off, len(buf))
	}
	end := bytes.IndexByte(buf[off:], 0)
	if end < 0 {
		return "", errors.Wrapf(ErrCorrupt, "unterminated string at %d", off)
	}
	return string(buf[off : off+uint64(end)]), nil
}
