package sievecode

import "fmt"

// Reader decodes a code stream produced by Writer, refusing to read past the
// end of the active block and failing on any malformed sentinel. Every
// method that can run off the end of buf returns an error rather than
// panicking, since a truncated or hostile stream must surface as a
// reportable corruption (sieveerr.CorruptError), not a crash.
type Reader struct {
	buf []byte
	pos uint32
}

// NewReader wraps buf for sequential decoding starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor position.
func (r *Reader) Pos() uint32 { return r.pos }

// Seek moves the cursor to an absolute position. It does not itself validate
// the position against block bounds; callers (the interpreter) are expected
// to validate jump targets before seeking (spec §4.2).
func (r *Reader) Seek(pos uint32) { r.pos = pos }

// Len reports the total stream length.
func (r *Reader) Len() uint32 { return uint32(len(r.buf)) }

// Remaining reports how many bytes are left to read.
func (r *Reader) Remaining() uint32 {
	if r.pos >= uint32(len(r.buf)) {
		return 0
	}
	return uint32(len(r.buf)) - r.pos
}

var errShortRead = fmt.Errorf("sievecode: short read past end of block")

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= uint32(len(r.buf)) {
		return 0, errShortRead
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// PeekByte reads a byte without advancing the cursor.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= uint32(len(r.buf)) {
		return 0, errShortRead
	}
	return r.buf[r.pos], nil
}

// ReadData reads exactly n bytes.
func (r *Reader) ReadData(n uint32) ([]byte, error) {
	if uint64(r.pos)+uint64(n) > uint64(len(r.buf)) {
		return nil, errShortRead
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// ReadInteger is the exact inverse of Writer.EmitInteger.
func (r *Reader) ReadInteger() (uint64, error) {
	var v uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			break
		}
	}
	return v, nil
}

// ReadCString reads integer(len) || bytes || 0x00, failing if the trailing
// zero sentinel is missing or wrong (spec §8: "a missing trailing zero makes
// read_string fail").
func (r *Reader) ReadCString() ([]byte, error) {
	n, err := r.ReadInteger()
	if err != nil {
		return nil, err
	}
	data, err := r.ReadData(uint32(n))
	if err != nil {
		return nil, err
	}
	sentinel, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("sievecode: missing trailing zero after string: %w", err)
	}
	if sentinel != 0x00 {
		return nil, fmt.Errorf("sievecode: expected trailing zero sentinel, got 0x%02x", sentinel)
	}
	// Copy out: ReadData aliases the backing buffer, and the sentinel byte
	// must not be included.
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// ReadString is ReadCString returning a Go string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadCString()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadStringList is the inverse of Writer.EmitStringList.
func (r *Reader) ReadStringList() ([]string, error) {
	n, err := r.ReadInteger()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadOffset reads a fixed signed 32-bit big-endian offset.
func (r *Reader) ReadOffset() (int32, error) {
	data, err := r.ReadData(4)
	if err != nil {
		return 0, err
	}
	v := int32(data[0])<<24 | int32(data[1])<<16 | int32(data[2])<<8 | int32(data[3])
	return v, nil
}
