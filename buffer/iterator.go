package buffer

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/quartzsim/core/simerr"
)

// ByteOrder selects how a multi-byte read or write atom lays its bytes
// out. NativeEndian resolves to whichever of LittleEndian/BigEndian
// matches the host at init time, protocol code that cares about wire
// order should name LittleEndian or BigEndian explicitly and reserve
// NativeEndian for host-local scratch data.
type ByteOrder int

const (
	NativeEndian ByteOrder = iota
	LittleEndian
	BigEndian
)

var hostEndian binary.ByteOrder

func init() {
	var probe uint16 = 1
	raw := (*[2]byte)(unsafe.Pointer(&probe))
	if raw[0] == 1 {
		hostEndian = binary.LittleEndian
	} else {
		hostEndian = binary.BigEndian
	}
}

func (o ByteOrder) impl() binary.ByteOrder {
	switch o {
	case LittleEndian:
		return binary.LittleEndian
	case BigEndian:
		return binary.BigEndian
	default:
		return hostEndian
	}
}

// Iterator is a cursor over a View's [start, end) window. It is
// invalidated by any mutation (AddAtStart, AddAtEnd, RemoveAtStart,
// RemoveAtEnd) performed on its view after the iterator was taken;
// using it afterward panics rather than silently reading stale
// geometry.
type Iterator struct {
	view *View
	pos  int
	gen  int
}

// Iterator returns a cursor positioned at v's start.
func (v *View) Iterator() *Iterator {
	return &Iterator{view: v, pos: v.start, gen: v.gen}
}

func (it *Iterator) checkValid() {
	if it.gen != it.view.gen {
		panic("buffer: iterator invalidated by a mutation to its view")
	}
}

// AtStart reports whether the cursor is at the view's first byte.
func (it *Iterator) AtStart() bool { it.checkValid(); return it.pos <= it.view.start }

// AtEnd reports whether the cursor has consumed the whole view.
func (it *Iterator) AtEnd() bool { it.checkValid(); return it.pos >= it.view.end }

// Next advances the cursor by n bytes.
func (it *Iterator) Next(n int) { it.checkValid(); it.pos += n }

// Prev moves the cursor back by n bytes.
func (it *Iterator) Prev(n int) { it.checkValid(); it.pos -= n }

func (it *Iterator) requireRange(n int) {
	if it.pos < it.view.start || it.pos+n > it.view.end {
		panic(fmt.Sprintf("buffer: iterator read/write of %d bytes at %d out of [%d,%d) range", n, it.pos, it.view.start, it.view.end))
	}
}

func (it *Iterator) inZero(p int) bool {
	return p >= it.view.zeroStart && p < it.view.zeroEnd
}

func (it *Iterator) readByte(p int) byte {
	if it.inZero(p) {
		return 0
	}
	return it.view.storage.data[p]
}

func (it *Iterator) writeByte(p int, b byte) error {
	if it.inZero(p) {
		return simerr.New("Iterator.Write", simerr.CodeInvalidArgument, "write into zero-compressed region")
	}
	it.view.storage.data[p] = b
	it.view.storage.markDirty(p, p+1)
	return nil
}

func (it *Iterator) readN(n int) []byte {
	it.requireRange(n)
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = it.readByte(it.pos + i)
	}
	it.pos += n
	return buf
}

func (it *Iterator) writeN(buf []byte) error {
	it.requireRange(len(buf))
	for i, b := range buf {
		if err := it.writeByte(it.pos+i, b); err != nil {
			return err
		}
	}
	it.pos += len(buf)
	return nil
}

// ReadU8 reads one byte and advances the cursor. Reading within the
// view's zero-compressed window always yields 0.
func (it *Iterator) ReadU8() uint8 {
	it.checkValid()
	buf := it.readN(1)
	return buf[0]
}

// WriteU8 writes one byte and advances the cursor. Writing into the
// zero-compressed window fails with InvalidArgument.
func (it *Iterator) WriteU8(val uint8) error {
	it.checkValid()
	return it.writeN([]byte{val})
}

// ReadU16 reads a 16-bit unsigned value in the given byte order.
func (it *Iterator) ReadU16(order ByteOrder) uint16 {
	it.checkValid()
	return order.impl().Uint16(it.readN(2))
}

// WriteU16 writes a 16-bit unsigned value in the given byte order.
func (it *Iterator) WriteU16(val uint16, order ByteOrder) error {
	it.checkValid()
	buf := make([]byte, 2)
	order.impl().PutUint16(buf, val)
	return it.writeN(buf)
}

// ReadU32 reads a 32-bit unsigned value in the given byte order.
func (it *Iterator) ReadU32(order ByteOrder) uint32 {
	it.checkValid()
	return order.impl().Uint32(it.readN(4))
}

// WriteU32 writes a 32-bit unsigned value in the given byte order.
func (it *Iterator) WriteU32(val uint32, order ByteOrder) error {
	it.checkValid()
	buf := make([]byte, 4)
	order.impl().PutUint32(buf, val)
	return it.writeN(buf)
}

// ReadU64 reads a 64-bit unsigned value in the given byte order.
func (it *Iterator) ReadU64(order ByteOrder) uint64 {
	it.checkValid()
	return order.impl().Uint64(it.readN(8))
}

// WriteU64 writes a 64-bit unsigned value in the given byte order.
func (it *Iterator) WriteU64(val uint64, order ByteOrder) error {
	it.checkValid()
	buf := make([]byte, 8)
	order.impl().PutUint64(buf, val)
	return it.writeN(buf)
}

// ReadI16, ReadI32 and ReadI64 are the signed counterparts of the
// unsigned atoms above, sharing their wire encoding.
func (it *Iterator) ReadI16(order ByteOrder) int16 { return int16(it.ReadU16(order)) }
func (it *Iterator) ReadI32(order ByteOrder) int32 { return int32(it.ReadU32(order)) }
func (it *Iterator) ReadI64(order ByteOrder) int64 { return int64(it.ReadU64(order)) }

func (it *Iterator) WriteI16(val int16, order ByteOrder) error { return it.WriteU16(uint16(val), order) }
func (it *Iterator) WriteI32(val int32, order ByteOrder) error { return it.WriteU32(uint32(val), order) }
func (it *Iterator) WriteI64(val int64, order ByteOrder) error { return it.WriteU64(uint64(val), order) }

// ReadFloat32 and ReadFloat64 bit-cast the wire representation; floats
// ride the same atoms as their same-width integers.
func (it *Iterator) ReadFloat32(order ByteOrder) float32 {
	return math.Float32frombits(it.ReadU32(order))
}

func (it *Iterator) WriteFloat32(val float32, order ByteOrder) error {
	return it.WriteU32(math.Float32bits(val), order)
}

func (it *Iterator) ReadFloat64(order ByteOrder) float64 {
	return math.Float64frombits(it.ReadU64(order))
}

func (it *Iterator) WriteFloat64(val float64, order ByteOrder) error {
	return it.WriteU64(math.Float64bits(val), order)
}

// ReadBytes copies n bytes from the cursor into a new slice.
func (it *Iterator) ReadBytes(n int) []byte {
	it.checkValid()
	return it.readN(n)
}

// WriteBytes writes buf verbatim at the cursor.
func (it *Iterator) WriteBytes(buf []byte) error {
	it.checkValid()
	return it.writeN(buf)
}
