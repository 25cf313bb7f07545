// Package sieveasm is a label-based bytecode assembler standing in for the
// AST-walking half of Compile (spec §1: "the core exposes a
// Generator/assembler surface that a generator (or a test, or a REPL)
// drives directly, bypassing the parser entirely"). Grounded on
// chronos-tachyon-go-peggy/peggyvm's Assembler{List, LabelsByName, Queue}
// fixup-queue pattern (peggyvm/assembler.go), simplified for this
// bytecode's fixed-width 32-bit offset fields — peggyvm's own instructions
// are variable-length and need a multi-pass length-fixing queue; this
// format's EmitOffset/ResolveOffset primitives are fixed-width by design,
// so a single deferred-fixup pass resolved at Link time suffices.
package sieveasm

import (
	"fmt"

	"github.com/funvibe/sievecore/internal/sievebin"
	"github.com/funvibe/sievecore/internal/sievecode"
	"github.com/funvibe/sievecore/internal/sievevm"
)

// fixup records a reserved 4-byte offset slot awaiting its target label's
// address, resolved once every label in the program has been emitted.
type fixup struct {
	slot  uint32
	label string
}

// Assembler builds one block's worth of code (normally destined for
// sievebin.MainBlock) with named labels standing in for addresses a
// generator can't know until the rest of the program has been emitted.
type Assembler struct {
	w      *sievecode.Writer
	labels map[string]uint32
	fixups []fixup

	extOrder []string
	extIndex map[string]int

	debug       []struct {
		Addr uint32
		Line int
	}
	pendingLine int
	haveLine    bool
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		w:        sievecode.NewWriter(),
		labels:   map[string]uint32{},
		extIndex: map[string]int{},
	}
}

// LinkExtension records name as used by this program, in first-use order,
// and returns the binary-local index later operand emissions reference it
// by. Calling it again for an already-linked name is a no-op that returns
// the existing index, matching sievebin.Binary.LinkExtension's own
// idempotence.
func (a *Assembler) LinkExtension(name string) int {
	if idx, ok := a.extIndex[name]; ok {
		return idx
	}
	idx := len(a.extOrder)
	a.extOrder = append(a.extOrder, name)
	a.extIndex[name] = idx
	return idx
}

// SetLine records the script source line the next emitted instruction maps
// to, consumed at Link time to build the optional debug block (spec §4.2
// "Entry": "a debug block id (optional metadata block mapping code address
// to script line)").
func (a *Assembler) SetLine(line int) {
	a.pendingLine = line
	a.haveLine = true
}

func (a *Assembler) markLine() {
	if a.haveLine {
		a.debug = append(a.debug, struct {
			Addr uint32
			Line int
		}{Addr: a.w.Len(), Line: a.pendingLine})
		a.haveLine = false
	}
}

// Addr returns the address the next emission will start at.
func (a *Assembler) Addr() uint32 { return a.w.Len() }

// Label binds name to the current address. Redefining a label is an
// error; referencing an undefined one is only caught at Link time, since
// forward references (a jmp-false to a label defined later in the
// program) are the common case.
func (a *Assembler) Label(name string) error {
	if _, ok := a.labels[name]; ok {
		return fmt.Errorf("sieveasm: label %q redefined", name)
	}
	a.labels[name] = a.w.Len()
	return nil
}

// Op emits a core opcode byte.
func (a *Assembler) Op(code byte) uint32 {
	a.markLine()
	return a.w.EmitCoreOp(code)
}

// ExtOp emits an extension-extended opcode for ext's sub-code subCode,
// linking ext if this is its first use.
func (a *Assembler) ExtOp(ext string, subCode int) uint32 {
	a.markLine()
	return a.w.EmitExtOp(a.LinkExtension(ext), subCode)
}

// Jump reserves a 4-byte offset field resolved to target once every label
// in the program is known (spec §4.2: the offset is "relative to the
// start of the jump instruction's offset field"). Call it immediately
// after emitting any opcode that reads an anchored offset — the jmp
// family, but also loop-start's end address and loop-next's begin
// address, which use the exact same anchor convention.
func (a *Assembler) Jump(target string) uint32 {
	slot := a.w.EmitOffset()
	a.fixups = append(a.fixups, fixup{slot: slot, label: target})
	return slot
}

// Byte emits a single raw byte (e.g. the size-test comparison code, which
// the interpreter reads with ReadByte rather than ReadInteger).
func (a *Assembler) Byte(b byte) uint32 { return a.w.EmitByte(b) }

// Int emits a variable-length unsigned integer operand.
func (a *Assembler) Int(v uint64) uint32 { return a.w.EmitInteger(v) }

// Str emits a length-prefixed string operand.
func (a *Assembler) Str(s string) uint32 { return a.w.EmitString(s) }

// StrList emits a string-list operand.
func (a *Assembler) StrList(ss []string) uint32 { return a.w.EmitStringList(ss) }

// ObjectCore emits a core-coded object operand (comparator, match-type,
// side-effect, or address-part).
func (a *Assembler) ObjectCore(class sievecode.OperandClass, code int) uint32 {
	return a.w.EmitObject(sievecode.Object{Class: class, Core: true, Code: code})
}

// ObjectExt emits an extension-coded object operand, linking ext if this
// is its first use.
func (a *Assembler) ObjectExt(class sievecode.OperandClass, ext string, subCode int) uint32 {
	idx := a.LinkExtension(ext)
	return a.w.EmitObject(sievecode.Object{Class: class, Core: false, ExtIndex: idx, SubCode: subCode})
}

// Link resolves every pending jump fixup against the label table, builds
// the interpreter-prelude-prefixed main block (spec §4.2 "Entry": the
// debug-block-presence flag, then the extensions list), and returns a
// binary with that block installed — plus a separate debug block if
// SetLine was ever called — and every used extension linked into the
// binary's manifest in first-use order.
func (a *Assembler) Link() (*sievebin.Binary, error) {
	buf := a.w.Bytes()
	for _, fx := range a.fixups {
		target, ok := a.labels[fx.label]
		if !ok {
			return nil, fmt.Errorf("sieveasm: undefined label %q", fx.label)
		}
		if int(fx.slot)+4 > len(buf) {
			return nil, fmt.Errorf("sieveasm: fixup slot %d out of range (len %d)", fx.slot, len(buf))
		}
		v := int32(int64(target) - int64(fx.slot))
		buf[fx.slot] = byte(v >> 24)
		buf[fx.slot+1] = byte(v >> 16)
		buf[fx.slot+2] = byte(v >> 8)
		buf[fx.slot+3] = byte(v)
	}

	bin := sievebin.New()
	for _, name := range a.extOrder {
		bin.LinkExtension(name)
	}

	var debugID uint32
	var debugBlk *sievebin.Block
	hasDebug := len(a.debug) > 0
	if hasDebug {
		debugBlk = bin.NewBlock(-1)
		debugID = uint32(debugBlk.ID)
	}

	pw := sievecode.NewWriter()
	if hasDebug {
		pw.EmitByte(1)
		pw.EmitInteger(uint64(debugID))
	} else {
		pw.EmitByte(0)
	}
	pw.EmitInteger(uint64(len(a.extOrder)))
	for _, name := range a.extOrder {
		idx, _ := bin.ExtensionIndex(name)
		pw.EmitInteger(uint64(idx))
	}
	if hasDebug {
		// SetLine addresses count from the start of the code; the
		// interpreter's PC counts from the start of the block, prelude
		// included.
		entries := append(a.debug[:0:0], a.debug...)
		for k := range entries {
			entries[k].Addr += pw.Len()
		}
		debugBlk.Data = sievevm.EncodeDebugMap(entries)
	}
	pw.EmitData(buf)

	bin.MainProgram().Data = pw.Bytes()
	return bin, nil
}
