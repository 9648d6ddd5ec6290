package bytearray

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfRange is returned by a read that would run past the end of
// the written data, mirroring the source's std::out_of_range.
var ErrOutOfRange = errors.New("bytearray: read out of range")

// ByteArray is a growable byte buffer with an independent read/write
// cursor (position), so the same buffer can be filled by successive
// Write* calls and then drained by successive Read* calls, or grown
// incrementally while being parsed in place.
type ByteArray struct {
	buf   []byte
	pos   int
	order binary.ByteOrder
}

// New constructs an empty ByteArray in big-endian order (network byte
// order), matching the source's default before setIsLittleEndian.
func New() *ByteArray {
	return &ByteArray{order: binary.BigEndian}
}

// FromBytes wraps an existing slice for reading, with the cursor at 0;
// a write overwrites from the cursor and extends the buffer as needed.
func FromBytes(b []byte) *ByteArray {
	return &ByteArray{buf: b, order: binary.BigEndian}
}

// SetLittleEndian toggles the byte order used by the fixed-width
// Write*/Read* methods. Varint and string methods are order-independent.
func (a *ByteArray) SetLittleEndian(v bool) {
	if v {
		a.order = binary.LittleEndian
	} else {
		a.order = binary.BigEndian
	}
}

// IsLittleEndian reports the current byte order.
func (a *ByteArray) IsLittleEndian() bool {
	return a.order == binary.LittleEndian
}

// Position returns the current cursor offset.
func (a *ByteArray) Position() int { return a.pos }

// SetPosition moves the cursor, panicking if v exceeds Size() — the
// source's setPosition throws std::out_of_range for the analogous case.
func (a *ByteArray) SetPosition(v int) {
	if v > len(a.buf) {
		panic(fmt.Sprintf("bytearray: SetPosition(%d) beyond size %d", v, len(a.buf)))
	}
	a.pos = v
}

// Size returns the total amount of data written so far.
func (a *ByteArray) Size() int { return len(a.buf) }

// ReadSize returns how many unread bytes remain from the cursor to the end.
func (a *ByteArray) ReadSize() int { return len(a.buf) - a.pos }

// Bytes returns the full underlying buffer, ignoring the cursor.
func (a *ByteArray) Bytes() []byte { return a.buf }

// Reset clears the buffer and cursor.
func (a *ByteArray) Reset() {
	a.buf = a.buf[:0]
	a.pos = 0
}

func (a *ByteArray) grow(n int) []byte {
	if a.pos+n > len(a.buf) {
		a.buf = append(a.buf, make([]byte, a.pos+n-len(a.buf))...)
	}
	dst := a.buf[a.pos : a.pos+n]
	a.pos += n
	return dst
}

// Write copies buf into the buffer at the cursor, overwriting existing
// bytes and extending the buffer if necessary, and advances the cursor.
func (a *ByteArray) Write(buf []byte) {
	dst := a.grow(len(buf))
	copy(dst, buf)
}

// Read copies len(buf) bytes from the cursor into buf, returning
// ErrOutOfRange if fewer than len(buf) bytes remain.
func (a *ByteArray) Read(buf []byte) error {
	if a.ReadSize() < len(buf) {
		return ErrOutOfRange
	}
	copy(buf, a.buf[a.pos:a.pos+len(buf)])
	a.pos += len(buf)
	return nil
}

// ReadAt copies len(buf) bytes starting at position, without moving the
// cursor, mirroring the source's const read(buf, size, position).
func (a *ByteArray) ReadAt(buf []byte, position int) error {
	if position+len(buf) > len(a.buf) {
		return ErrOutOfRange
	}
	copy(buf, a.buf[position:position+len(buf)])
	return nil
}

func (a *ByteArray) WriteFUint8(v uint8) { a.grow(1)[0] = v }
func (a *ByteArray) WriteFInt8(v int8)   { a.WriteFUint8(uint8(v)) }

func (a *ByteArray) WriteFUint16(v uint16) { a.order.PutUint16(a.grow(2), v) }
func (a *ByteArray) WriteFInt16(v int16)   { a.WriteFUint16(uint16(v)) }

func (a *ByteArray) WriteFUint32(v uint32) { a.order.PutUint32(a.grow(4), v) }
func (a *ByteArray) WriteFInt32(v int32)   { a.WriteFUint32(uint32(v)) }

func (a *ByteArray) WriteFUint64(v uint64) { a.order.PutUint64(a.grow(8), v) }
func (a *ByteArray) WriteFInt64(v int64)   { a.WriteFUint64(uint64(v)) }

func (a *ByteArray) ReadFUint8() (uint8, error) {
	if a.ReadSize() < 1 {
		return 0, ErrOutOfRange
	}
	v := a.buf[a.pos]
	a.pos++
	return v, nil
}

func (a *ByteArray) ReadFInt8() (int8, error) {
	v, err := a.ReadFUint8()
	return int8(v), err
}

func (a *ByteArray) ReadFUint16() (uint16, error) {
	if a.ReadSize() < 2 {
		return 0, ErrOutOfRange
	}
	v := a.order.Uint16(a.buf[a.pos:])
	a.pos += 2
	return v, nil
}

func (a *ByteArray) ReadFInt16() (int16, error) {
	v, err := a.ReadFUint16()
	return int16(v), err
}

func (a *ByteArray) ReadFUint32() (uint32, error) {
	if a.ReadSize() < 4 {
		return 0, ErrOutOfRange
	}
	v := a.order.Uint32(a.buf[a.pos:])
	a.pos += 4
	return v, nil
}

func (a *ByteArray) ReadFInt32() (int32, error) {
	v, err := a.ReadFUint32()
	return int32(v), err
}

func (a *ByteArray) ReadFUint64() (uint64, error) {
	if a.ReadSize() < 8 {
		return 0, ErrOutOfRange
	}
	v := a.order.Uint64(a.buf[a.pos:])
	a.pos += 8
	return v, nil
}

func (a *ByteArray) ReadFInt64() (int64, error) {
	v, err := a.ReadFUint64()
	return int64(v), err
}

// WriteUvarint writes v as a LEB128-style varint (1-10 bytes),
// matching the source's writeUint64 variable-length encoding.
func (a *ByteArray) WriteUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	a.Write(tmp[:n])
}

// WriteVarint writes a zigzag-encoded signed varint, matching the
// source's writeInt64.
func (a *ByteArray) WriteVarint(v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	a.Write(tmp[:n])
}

// ReadUvarint reads a varint written by WriteUvarint.
func (a *ByteArray) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(a.buf[a.pos:])
	if n <= 0 {
		return 0, ErrOutOfRange
	}
	a.pos += n
	return v, nil
}

// ReadVarint reads a varint written by WriteVarint.
func (a *ByteArray) ReadVarint() (int64, error) {
	v, n := binary.Varint(a.buf[a.pos:])
	if n <= 0 {
		return 0, ErrOutOfRange
	}
	a.pos += n
	return v, nil
}

// WriteStringF16 writes s length-prefixed with a fixed uint16, matching
// the source's writeStringF16.
func (a *ByteArray) WriteStringF16(s string) {
	a.WriteFUint16(uint16(len(s)))
	a.Write([]byte(s))
}

// WriteStringF32 writes s length-prefixed with a fixed uint32.
func (a *ByteArray) WriteStringF32(s string) {
	a.WriteFUint32(uint32(len(s)))
	a.Write([]byte(s))
}

// WriteStringVint writes s length-prefixed with a varint, matching the
// source's writeStringVint.
func (a *ByteArray) WriteStringVint(s string) {
	a.WriteUvarint(uint64(len(s)))
	a.Write([]byte(s))
}

// ReadStringF16 reads a string written by WriteStringF16.
func (a *ByteArray) ReadStringF16() (string, error) {
	n, err := a.ReadFUint16()
	if err != nil {
		return "", err
	}
	return a.readStringOfLen(int(n))
}

// ReadStringF32 reads a string written by WriteStringF32.
func (a *ByteArray) ReadStringF32() (string, error) {
	n, err := a.ReadFUint32()
	if err != nil {
		return "", err
	}
	return a.readStringOfLen(int(n))
}

// ReadStringVint reads a string written by WriteStringVint.
func (a *ByteArray) ReadStringVint() (string, error) {
	n, err := a.ReadUvarint()
	if err != nil {
		return "", err
	}
	return a.readStringOfLen(int(n))
}

func (a *ByteArray) readStringOfLen(n int) (string, error) {
	if a.ReadSize() < n {
		return "", ErrOutOfRange
	}
	s := string(a.buf[a.pos : a.pos+n])
	a.pos += n
	return s, nil
}

// ToHexString renders the unread portion [Position, Size) as "FF FF FF".
func (a *ByteArray) ToHexString() string {
	rest := a.buf[a.pos:]
	out := make([]byte, 0, len(rest)*3)
	for i, b := range rest {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, fmt.Sprintf("%02X", b)...)
	}
	return string(out)
}
