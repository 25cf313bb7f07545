package sievecode

import "fmt"

// OperandClass tags an "object operand" (spec §3): comparator, match-type,
// side-effect, or address-part. Boolean, number, string and string-list
// operands are read/written directly via the Writer/Reader primitives above
// and need no class tag of their own.
type OperandClass byte

const (
	ClassComparator OperandClass = iota
	ClassMatchType
	ClassSideEffect
	ClassAddressPart
)

func (c OperandClass) String() string {
	switch c {
	case ClassComparator:
		return "comparator"
	case ClassMatchType:
		return "match-type"
	case ClassSideEffect:
		return "side-effect"
	case ClassAddressPart:
		return "address-part"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// CustomThreshold is the boundary between core-defined object codes and
// extension-defined ones: any code >= CustomThreshold is emitted as the
// marker value CustomThreshold followed by (extension index, sub-code).
const CustomThreshold = 0x40

// Object is a decoded object operand: either a core code (Core == true) or
// an extension's own code, reached via the binary-local extension index and
// the extension's private sub-code space.
type Object struct {
	Class    OperandClass
	Core     bool
	Code     int // valid when Core
	ExtIndex int // valid when !Core
	SubCode  int // valid when !Core
}

// EmitObject writes a class tag followed by either the core code or the
// extension marker + (extIndex, subCode) pair.
func (w *Writer) EmitObject(obj Object) uint32 {
	addr := w.EmitByte(byte(obj.Class))
	if obj.Core {
		w.EmitInteger(uint64(obj.Code))
	} else {
		w.EmitInteger(CustomThreshold)
		w.EmitInteger(uint64(obj.ExtIndex))
		w.EmitInteger(uint64(obj.SubCode))
	}
	return addr
}

// ReadObject is the inverse of EmitObject. The class tag read must equal
// wantClass or the read fails — "the class must match the one the caller expected, else the read
// fails" (spec §4.1).
func (r *Reader) ReadObject(wantClass OperandClass) (Object, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return Object{}, err
	}
	class := OperandClass(tagByte)
	if class != wantClass {
		return Object{}, fmt.Errorf("sievecode: operand class mismatch: expected %s, got %s", wantClass, class)
	}
	code, err := r.ReadInteger()
	if err != nil {
		return Object{}, err
	}
	if code < CustomThreshold {
		return Object{Class: class, Core: true, Code: int(code)}, nil
	}
	extIdx, err := r.ReadInteger()
	if err != nil {
		return Object{}, err
	}
	subCode, err := r.ReadInteger()
	if err != nil {
		return Object{}, err
	}
	return Object{Class: class, Core: false, ExtIndex: int(extIdx), SubCode: int(subCode)}, nil
}

// Op is a decoded dispatchable operation: either a core opcode (Core ==
// true, identified by the single byte read) or an extension-extended
// opcode additionally carrying the owning extension's binary-local index
// and its own sub-code (spec §3, "Operation").
type Op struct {
	Core     bool
	Code     byte
	ExtIndex int
	SubCode  int
}

// ExtOpMarker is the core opcode byte reserved to introduce an
// extension-extended operation.
const ExtOpMarker = 0xFF

// EmitCoreOp writes a single-byte core opcode and returns its address (the
// Location.PC operations report errors against).
func (w *Writer) EmitCoreOp(code byte) uint32 {
	return w.EmitByte(code)
}

// EmitExtOp writes the extension-op marker followed by (extIndex, subCode).
func (w *Writer) EmitExtOp(extIndex, subCode int) uint32 {
	addr := w.EmitByte(ExtOpMarker)
	w.EmitInteger(uint64(extIndex))
	w.EmitInteger(uint64(subCode))
	return addr
}

// ReadOp decodes one operation at the current cursor.
func (r *Reader) ReadOp() (Op, error) {
	b, err := r.ReadByte()
	if err != nil {
		return Op{}, err
	}
	if b != ExtOpMarker {
		return Op{Core: true, Code: b}, nil
	}
	extIdx, err := r.ReadInteger()
	if err != nil {
		return Op{}, err
	}
	subCode, err := r.ReadInteger()
	if err != nil {
		return Op{}, err
	}
	return Op{Core: false, ExtIndex: int(extIdx), SubCode: int(subCode)}, nil
}
