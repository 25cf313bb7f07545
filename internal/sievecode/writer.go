// Package sievecode implements the L2 code-stream primitives: the
// variable-length integer codec, length-prefixed strings, fixed 32-bit
// offsets with deferred resolution, and the tagged operand/operation
// encoding used by every block body. It operates on raw byte buffers and has
// no dependency on the block/binary container (sievebin) that holds those
// buffers, so it may be used without sievebin; sievebin builds on it.
package sievecode

import "fmt"

// Writer accumulates an append-only code stream and hands back the starting
// address of each emission, matching the teacher's Chunk.Write /
// Chunk.WriteConstant shape (internal/vm/chunk.go) generalized to the
// sieve opcode/operand set.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty code-stream writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated stream. The slice is owned by the caller;
// further writes to w may or may not observe mutations made through it.
func (w *Writer) Bytes() []byte { return w.buf }

// Len reports the current stream length, i.e. the address the next
// emission will start at.
func (w *Writer) Len() uint32 { return uint32(len(w.buf)) }

// EmitByte appends a single byte and returns its address.
func (w *Writer) EmitByte(b byte) uint32 {
	addr := w.Len()
	w.buf = append(w.buf, b)
	return addr
}

// EmitData appends raw bytes and returns the starting address.
func (w *Writer) EmitData(d []byte) uint32 {
	addr := w.Len()
	w.buf = append(w.buf, d...)
	return addr
}

// EmitInteger writes v as an unsigned big-endian base-128 integer: the value
// is split into 7-bit groups, most-significant group first, with the
// continuation bit (0x80) set on every byte except the last one emitted.
// ReadInteger is its exact inverse (read_integer(emit_integer(v)) == v,
// spec §8).
func (w *Writer) EmitInteger(v uint64) uint32 {
	addr := w.Len()
	var groups []byte
	if v == 0 {
		groups = []byte{0}
	}
	for v > 0 {
		groups = append(groups, byte(v&0x7f))
		v >>= 7
	}
	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i != 0 {
			b |= 0x80
		}
		w.EmitByte(b)
	}
	return addr
}

// EmitCString writes integer(len(s)) || s || 0x00. The trailing zero is a
// sentinel checked on read, independent of any NUL bytes embedded in s
// itself (those are covered by the length prefix, not the sentinel).
func (w *Writer) EmitCString(s []byte) uint32 {
	addr := w.Len()
	w.EmitInteger(uint64(len(s)))
	w.EmitData(s)
	w.EmitByte(0x00)
	return addr
}

// EmitString is an alias for EmitCString using a Go string.
func (w *Writer) EmitString(s string) uint32 {
	return w.EmitCString([]byte(s))
}

// EmitStringList writes integer(count) followed by count EmitString calls.
func (w *Writer) EmitStringList(ss []string) uint32 {
	addr := w.Len()
	w.EmitInteger(uint64(len(ss)))
	for _, s := range ss {
		w.EmitString(s)
	}
	return addr
}

// EmitOffset reserves a fixed 4-byte slot for a later ResolveOffset call and
// returns its address (the "anchor" a relative jump target is computed
// from, per spec §4.2).
func (w *Writer) EmitOffset() uint32 {
	addr := w.Len()
	w.buf = append(w.buf, 0, 0, 0, 0)
	return addr
}

// EmitOffsetValue writes a known signed 32-bit big-endian offset directly,
// without a later resolve step.
func (w *Writer) EmitOffsetValue(v int32) uint32 {
	addr := w.Len()
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	return addr
}

// ResolveOffset patches the 4-byte slot at addr (previously returned by
// EmitOffset) with the signed distance from addr to the stream's current
// end.
func (w *Writer) ResolveOffset(addr uint32) error {
	if int(addr)+4 > len(w.buf) {
		return fmt.Errorf("sievecode: resolve offset %d out of range (len %d)", addr, len(w.buf))
	}
	delta := int64(w.Len()) - int64(addr)
	v := int32(delta)
	w.buf[addr] = byte(v >> 24)
	w.buf[addr+1] = byte(v >> 16)
	w.buf[addr+2] = byte(v >> 8)
	w.buf[addr+3] = byte(v)
	return nil
}

// Align4 pads the stream with zero bytes until its length is a multiple of
// four, matching the "all records and payloads begin on a 4-byte boundary"
// invariant (spec §4.1).
func (w *Writer) Align4() {
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}
